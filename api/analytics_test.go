package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ctamanager/analytics"
	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/data"
	"ctamanager/models"
	"ctamanager/settings"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	events   *analytics.Repository
	settings *settings.Repository
	module   *AnalyticsAPIModule
}

func setup(t *testing.T, pro bool) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.CTA{}, &models.Setting{})

	gate := common.NewFeatureGate(pro, 3)
	eventRepo := analytics.NewRepository(db)
	settingsRepo := settings.NewRepository(db, gate)
	facade := data.NewFacade(cta.NewRepository(db), eventRepo, settingsRepo, gate, nil)
	facade.SetClock(func() time.Time { return testNow })

	return &fixture{
		db:       db,
		events:   eventRepo,
		settings: settingsRepo,
		module:   NewAnalyticsAPIModule(eventRepo, facade, gate),
	}
}

func testRouter(module *AnalyticsAPIModule, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("secret"))))
	if authed {
		router.Use(func(c *gin.Context) {
			sessions.Default(c).Set(common.SessionUserKey, 1)
		})
	}
	module.RegisterRoutes(router)
	return router
}

func get(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedEvent(fx *fixture, ctaID uint, eventType string, daysAgo int) {
	fx.events.Insert(&analytics.Event{
		CTAID:      ctaID,
		EventType:  eventType,
		PageURL:    "/pricing",
		PageTitle:  "Pricing",
		Device:     "desktop",
		IPAddress:  "203.0.113.9",
		UserAgent:  "TestBrowser/1.0",
		OccurredAt: testNow.AddDate(0, 0, -daysAgo),
	})
}

func TestUnauthenticatedIs403(t *testing.T) {
	fx := setup(t, false)
	router := testRouter(fx.module, false)
	assert.Equal(t, http.StatusForbidden, get(router, "/cta-analytics/v1/daily-stats").Code)
}

func TestDailyStatsClampedToRetention(t *testing.T) {
	fx := setup(t, false)
	fx.settings.Set("analytics", map[string]interface{}{
		"retention":             "custom",
		"retention_custom_days": 7,
	})
	seedEvent(fx, 1, analytics.EventImpression, 2)

	router := testRouter(fx.module, true)
	start := testNow.AddDate(0, 0, -59).Format("2006-01-02")
	end := testNow.Format("2006-01-02")
	w := get(router, fmt.Sprintf("/cta-analytics/v1/daily-stats?start_date=%s&end_date=%s", start, end))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data      []analytics.DayStats `json:"data"`
		StartDate string               `json:"start_date"`
		EndDate   string               `json:"end_date"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	// A 60-day request under 7-day retention only yields days from the floor.
	assert.Equal(t, testNow.AddDate(0, 0, -7).Format("2006-01-02"), body.StartDate)
	assert.Equal(t, end, body.EndDate)
	assert.Len(t, body.Data, 7)
}

func TestDailyStatsRejectsBadDates(t *testing.T) {
	fx := setup(t, false)
	router := testRouter(fx.module, true)

	assert.Equal(t, http.StatusBadRequest, get(router, "/cta-analytics/v1/daily-stats?start_date=nope").Code)
	assert.Equal(t, http.StatusBadRequest,
		get(router, "/cta-analytics/v1/daily-stats?start_date=2026-08-20&end_date=2026-08-10").Code)
}

func TestEventsEnvelopeShape(t *testing.T) {
	fx := setup(t, false)
	for i := 0; i < 25; i++ {
		seedEvent(fx, 1, analytics.EventImpression, 1)
	}

	router := testRouter(fx.module, true)
	w := get(router, "/cta-analytics/v1/events?start_date=2026-08-01&end_date=2026-08-29&per_page=10&page=2")

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data       []map[string]interface{} `json:"data"`
		Total      int64                    `json:"total"`
		Page       int                      `json:"page"`
		PerPage    int                      `json:"per_page"`
		TotalPages int64                    `json:"total_pages"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(25), body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 10, body.PerPage)
	assert.Equal(t, int64(3), body.TotalPages)
	assert.Len(t, body.Data, 10)
}

func TestEventsHideIdentityOnFree(t *testing.T) {
	fx := setup(t, false)
	seedEvent(fx, 1, analytics.EventClick, 1)

	router := testRouter(fx.module, true)
	w := get(router, "/cta-analytics/v1/events?start_date=2026-08-01&end_date=2026-08-29")

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	assert.Len(t, body.Data, 1)
	_, hasIP := body.Data[0]["ip_address"]
	_, hasUA := body.Data[0]["user_agent"]
	assert.False(t, hasIP)
	assert.False(t, hasUA)
}

func TestEventsExposeIdentityOnPro(t *testing.T) {
	fx := setup(t, true)
	seedEvent(fx, 1, analytics.EventClick, 1)

	router := testRouter(fx.module, true)
	w := get(router, "/cta-analytics/v1/events?start_date=2026-08-01&end_date=2026-08-29")

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, "203.0.113.9", body.Data[0]["ip_address"])
	assert.Equal(t, "TestBrowser/1.0", body.Data[0]["user_agent"])
}

func TestTopCTAs(t *testing.T) {
	fx := setup(t, false)
	ctaRow := models.CTA{Name: "Call Us", Status: "publish", Type: "phone", Enabled: true}
	fx.db.Create(&ctaRow)

	seedEvent(fx, ctaRow.ID, analytics.EventImpression, 1)
	seedEvent(fx, ctaRow.ID, analytics.EventClick, 1)

	router := testRouter(fx.module, true)
	w := get(router, "/cta-analytics/v1/top-ctas?start_date=2026-08-01&end_date=2026-08-29&limit=5")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []analytics.CTAStats `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, "Call Us", body.Data[0].Name)
	assert.Equal(t, int64(1), body.Data[0].Impressions)
	assert.Equal(t, int64(1), body.Data[0].Clicks)
}
