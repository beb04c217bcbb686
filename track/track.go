// Package track ingests frontend impression and click events. The endpoint
// is public (the widget posts from visitors' browsers); writes honor the
// analytics enabled flag and the retention window.
package track

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctamanager/analytics"
	"ctamanager/cta"
	"ctamanager/settings"
)

type TrackModule struct {
	events   *analytics.Repository
	ctas     *cta.Repository
	settings *settings.Repository
}

func NewTrackModule(events *analytics.Repository, ctas *cta.Repository, settingsRepo *settings.Repository) *TrackModule {
	return &TrackModule{events: events, ctas: ctas, settings: settingsRepo}
}

func (t *TrackModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/cta-manager/v1/track", t.track)
}

type trackRequest struct {
	CTAID     uint   `json:"cta_id"`
	EventType string `json:"event_type"`
	PageURL   string `json:"page_url"`
	PageTitle string `json:"page_title"`
	Referrer  string `json:"referrer"`
}

func (t *TrackModule) track(c *gin.Context) {
	if !t.settings.AnalyticsEnabled() {
		// tracking off: acknowledge without recording so widgets don't retry
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if req.EventType != analytics.EventImpression && req.EventType != analytics.EventClick {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event_type"})
		return
	}

	if t.ctas.GetByID(req.CTAID, false) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "CTA not found"})
		return
	}

	userAgent := c.Request.UserAgent()
	event := analytics.Event{
		CTAID:      req.CTAID,
		EventType:  req.EventType,
		PageURL:    req.PageURL,
		PageTitle:  req.PageTitle,
		Referrer:   req.Referrer,
		Device:     detectDevice(userAgent),
		IPAddress:  clientIP(c),
		UserAgent:  userAgent,
		OccurredAt: time.Now(),
	}

	// saved off the request path so slow disks don't delay the visitor
	go func() {
		if err := t.events.Insert(&event); err != nil {
			log.Error().Err(err).Msg("Error saving analytics event")
		}
	}()

	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

// clientIP returns the real client address, considering common proxy
// headers before falling back to the socket peer.
func clientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For may carry several addresses; the first is the client
		parts := strings.Split(ip, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// detectDevice buckets a user agent into desktop/mobile/tablet.
func detectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}
