// Package api exposes the cta-analytics/v1 REST surface consumed by the
// admin dashboard charts.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ctamanager/analytics"
	"ctamanager/common"
	"ctamanager/data"
)

type AnalyticsAPIModule struct {
	events *analytics.Repository
	facade *data.Facade
	gate   *common.FeatureGate
}

func NewAnalyticsAPIModule(events *analytics.Repository, facade *data.Facade, gate *common.FeatureGate) *AnalyticsAPIModule {
	return &AnalyticsAPIModule{events: events, facade: facade, gate: gate}
}

func (m *AnalyticsAPIModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/cta-analytics/v1")
	group.Use(common.RequireAuthJSON)
	{
		group.GET("/daily-stats", m.dailyStats)
		group.GET("/type-stats", m.typeStats)
		group.GET("/top-ctas", m.topCTAs)
		group.GET("/top-pages", m.topPages)
		group.GET("/events", m.listEvents)
	}
}

// parseWindow reads start_date/end_date, defaults to the last 30 days, and
// clamps the result to the retention floor.
func (m *AnalyticsAPIModule) parseWindow(c *gin.Context) (time.Time, time.Time, bool) {
	end := time.Now()
	start := end.AddDate(0, 0, -29)

	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date"})
			return start, end, false
		}
		start = parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date"})
			return start, end, false
		}
		end = parsed
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date before start_date"})
		return start, end, false
	}

	start, end = m.facade.ClampDateRangeToRetention(start, end)
	return start, end, true
}

func parseCTAID(c *gin.Context) uint {
	raw := c.Query("cta_id")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

func (m *AnalyticsAPIModule) dailyStats(c *gin.Context) {
	start, end, ok := m.parseWindow(c)
	if !ok {
		return
	}

	stats := m.events.GetDailyStats(start, end, parseCTAID(c))
	c.JSON(http.StatusOK, gin.H{
		"data":       stats,
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
	})
}

func (m *AnalyticsAPIModule) typeStats(c *gin.Context) {
	start, end, ok := m.parseWindow(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": m.events.GetTypeStats(start, end)})
}

func (m *AnalyticsAPIModule) topCTAs(c *gin.Context) {
	start, end, ok := m.parseWindow(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	c.JSON(http.StatusOK, gin.H{"data": m.events.GetTopCTAs(start, end, limit)})
}

func (m *AnalyticsAPIModule) topPages(c *gin.Context) {
	start, end, ok := m.parseWindow(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	c.JSON(http.StatusOK, gin.H{"data": m.events.GetTopPages(start, end, limit)})
}

// eventView is the client-facing event shape; identity fields are only
// present on Pro installs.
type eventView struct {
	ID         uint   `json:"id"`
	CTAID      uint   `json:"cta_id"`
	EventType  string `json:"event_type"`
	PageURL    string `json:"page_url"`
	PageTitle  string `json:"page_title"`
	Referrer   string `json:"referrer"`
	Device     string `json:"device"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

func (m *AnalyticsAPIModule) listEvents(c *gin.Context) {
	start, end, ok := m.parseWindow(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	events, total := m.events.GetEvents(analytics.EventQuery{
		Start:     start,
		End:       end,
		CTAID:     parseCTAID(c),
		EventType: c.Query("event_type"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      page,
		PerPage:   perPage,
	})

	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}

	views := make([]eventView, 0, len(events))
	for _, event := range events {
		view := eventView{
			ID:         event.ID,
			CTAID:      event.CTAID,
			EventType:  event.EventType,
			PageURL:    event.PageURL,
			PageTitle:  event.PageTitle,
			Referrer:   event.Referrer,
			Device:     event.Device,
			OccurredAt: event.OccurredAt.Format("2006-01-02 15:04:05"),
		}
		if m.gate.ExposeEventIdentity() {
			view.IPAddress = event.IPAddress
			view.UserAgent = event.UserAgent
		}
		views = append(views, view)
	}

	totalPages := (total + int64(perPage) - 1) / int64(perPage)
	c.JSON(http.StatusOK, gin.H{
		"data":        views,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": totalPages,
	})
}
