// Package support relays contact-form tickets to the remote support API.
// One attempt per ticket, 30 second ceiling, and the remote status and
// message pass through to the caller unchanged. Submissions are capped per
// user per hour.
package support

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ctamanager/common"
	"ctamanager/config"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.SupportConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type Ticket struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Email   string `json:"email"`
	SiteURL string `json:"site_url"`
}

type RemoteResponse struct {
	StatusCode int
	Body       map[string]interface{}
}

// Submit sends the ticket once. Network failures surface as errors; any
// HTTP response, success or not, comes back for passthrough.
func (c *Client) Submit(ctx context.Context, ticket Ticket) (RemoteResponse, error) {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return RemoteResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets", bytes.NewReader(payload))
	if err != nil {
		return RemoteResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return RemoteResponse{}, err
	}
	defer resp.Body.Close()

	remote := RemoteResponse{StatusCode: resp.StatusCode, Body: map[string]interface{}{}}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RemoteResponse{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &remote.Body); err != nil {
			remote.Body = map[string]interface{}{"message": strings.TrimSpace(string(raw))}
		}
	}
	return remote, nil
}

// userLimiter hands out one token-bucket limiter per user id, refilling at
// the configured hourly rate.
type userLimiter struct {
	mu       sync.Mutex
	limiters map[int]*rate.Limiter
	limit    int
}

func newUserLimiter(hourlyLimit int) *userLimiter {
	if hourlyLimit <= 0 {
		hourlyLimit = 3
	}
	return &userLimiter{limiters: map[int]*rate.Limiter{}, limit: hourlyLimit}
}

func (u *userLimiter) allow(userID int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	limiter, ok := u.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(u.limit)), u.limit)
		u.limiters[userID] = limiter
	}
	return limiter.Allow()
}

type SupportModule struct {
	client  *Client
	limiter *userLimiter
}

func NewSupportModule(client *Client, cfg config.SupportConfig) *SupportModule {
	return &SupportModule{client: client, limiter: newUserLimiter(cfg.HourlyLimit)}
}

func (m *SupportModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/admin/support")
	group.Use(common.RequireAuthJSON, common.RequireNonce)
	{
		group.POST("/contact", m.contact)
	}
}

func (m *SupportModule) contact(c *gin.Context) {
	userID := common.CurrentUserID(c)
	if !m.limiter.allow(userID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many support requests, try again later"})
		return
	}

	var ticket Ticket
	if err := c.ShouldBindJSON(&ticket); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(ticket.Subject) == "" || strings.TrimSpace(ticket.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject and message are required"})
		return
	}

	remote, err := m.client.Submit(c.Request.Context(), ticket)
	if err != nil {
		log.Error().Err(err).Msg("Error reaching support API")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Support service unreachable"})
		return
	}

	// Remote verdict passes through as-is, status code included.
	c.JSON(remote.StatusCode, remote.Body)
}
