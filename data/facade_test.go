package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ctamanager/analytics"
	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/models"
	"ctamanager/settings"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func setupFacade(t *testing.T, pro bool) (*Facade, *cta.Repository, *analytics.Repository, *settings.Repository) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.CTA{}, &models.Setting{})

	gate := common.NewFeatureGate(pro, 3)
	ctas := cta.NewRepository(db)
	events := analytics.NewRepository(db)
	settingsRepo := settings.NewRepository(db, gate)

	facade := NewFacade(ctas, events, settingsRepo, gate, nil)
	facade.SetClock(func() time.Time { return testNow })
	return facade, ctas, events, settingsRepo
}

func TestClampDateRangeToRetention(t *testing.T) {
	facade, _, _, settingsRepo := setupFacade(t, false)
	settingsRepo.Set("analytics", map[string]interface{}{"retention": "30"})

	floor := testNow.AddDate(0, 0, -30)
	end := testNow

	// start below the floor moves up to it; end is untouched
	start, gotEnd := facade.ClampDateRangeToRetention(testNow.AddDate(0, 0, -60), end)
	assert.Equal(t, floor, start)
	assert.Equal(t, end, gotEnd)

	// start at the floor is returned unchanged
	start, _ = facade.ClampDateRangeToRetention(floor, end)
	assert.Equal(t, floor, start)

	// start after the floor is returned unchanged
	after := testNow.AddDate(0, 0, -5)
	start, _ = facade.ClampDateRangeToRetention(after, end)
	assert.Equal(t, after, start)
}

func TestClampDateRangeToRetention_Forever(t *testing.T) {
	facade, _, _, settingsRepo := setupFacade(t, false)
	settingsRepo.Set("analytics", map[string]interface{}{"retention": "forever"})

	requested := testNow.AddDate(0, 0, -3650)
	start, _ := facade.ClampDateRangeToRetention(requested, testNow)
	assert.Equal(t, requested, start)
}

func TestQuotaExcludesDemo(t *testing.T) {
	facade, ctas, _, _ := setupFacade(t, false)

	for i := 0; i < 2; i++ {
		ctas.Create(&models.CTA{Name: "real", Status: models.StatusPublish})
	}
	for i := 0; i < 5; i++ {
		ctas.Create(&models.CTA{Name: "demo", Status: models.StatusPublish, IsDemo: true})
	}

	assert.Equal(t, int64(2), facade.GetCTACount())
	assert.Equal(t, int64(7), facade.GetTotalCTACount())
	assert.Equal(t, int64(5), facade.GetTotalCTACount()-facade.GetCTACount())

	// limit is 3 non-demo: one slot left despite five demo rows
	assert.True(t, facade.CanAddCTA())
	ctas.Create(&models.CTA{Name: "third", Status: models.StatusDraft})
	assert.False(t, facade.CanAddCTA())
}

func TestQuotaUnlimitedOnPro(t *testing.T) {
	facade, ctas, _, _ := setupFacade(t, true)
	for i := 0; i < 10; i++ {
		ctas.Create(&models.CTA{Name: "x", Status: models.StatusPublish})
	}
	assert.True(t, facade.CanAddCTA())
}

func TestSanitizeSVG(t *testing.T) {
	facade, _, _, _ := setupFacade(t, true)

	clean, ok := facade.SanitizeSVG(`<svg viewBox="0 0 24 24"><path d="M0 0h24"/></svg>`)
	assert.True(t, ok)
	assert.Contains(t, clean, "<path")

	_, ok = facade.SanitizeSVG(`<div>not svg</div>`)
	assert.False(t, ok)

	_, ok = facade.SanitizeSVG(`<svg><path/>`)
	assert.False(t, ok)

	clean, ok = facade.SanitizeSVG(`<svg onload="alert(1)"><script>alert(2)</script><path/></svg>`)
	assert.True(t, ok)
	assert.NotContains(t, clean, "script")
	assert.NotContains(t, clean, "onload")
}

func TestImportReplaceMode(t *testing.T) {
	facade, ctas, _, settingsRepo := setupFacade(t, false)

	ctas.Create(&models.CTA{Name: "old", Status: models.StatusPublish})
	settingsRepo.Set("analytics", map[string]interface{}{
		"enabled":               true,
		"retention":             "90",
		"retention_custom_days": float64(10),
	})

	payload := map[string]interface{}{
		"ctas": []interface{}{},
		"settings": map[string]interface{}{
			"analytics": map[string]interface{}{"enabled": false},
		},
	}

	result, err := facade.ImportAll(payload, false, false)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.CTAs)

	// every existing CTA is gone
	assert.Equal(t, int64(0), facade.GetTotalCTACount())
	assert.Empty(t, ctas.GetAll(cta.Filters{IncludeDeleted: true}))

	// settings were replaced, not merged: retention keys are absent
	stored := settingsRepo.Get("analytics")
	assert.Equal(t, false, stored["enabled"])
	assert.NotContains(t, stored, "retention")
	assert.NotContains(t, stored, "retention_custom_days")
}

func TestImportMergeModeRequiresPro(t *testing.T) {
	payload := map[string]interface{}{
		"ctas": []interface{}{
			map[string]interface{}{"name": "imported", "status": "publish"},
		},
		"settings": map[string]interface{}{},
	}

	// free: merge silently downgrades to replace
	facade, ctas, _, _ := setupFacade(t, false)
	ctas.Create(&models.CTA{Name: "existing", Status: models.StatusPublish})
	_, err := facade.ImportAll(payload, true, false)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), facade.GetTotalCTACount())

	// pro: merge is additive
	facade, ctas, _, _ = setupFacade(t, true)
	ctas.Create(&models.CTA{Name: "existing", Status: models.StatusPublish})
	_, err = facade.ImportAll(payload, true, false)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), facade.GetTotalCTACount())
}

func TestImportDowngradesProFields(t *testing.T) {
	facade, ctas, _, _ := setupFacade(t, false)

	payload := map[string]interface{}{
		"ctas": []interface{}{
			map[string]interface{}{
				"name":       "tampered",
				"status":     "publish",
				"type":       "popup",
				"layout":     "card",
				"visibility": "mobile_only",
			},
		},
		"settings": map[string]interface{}{},
	}

	_, err := facade.ImportAll(payload, false, false)
	assert.NoError(t, err)

	got := ctas.GetAll(cta.Filters{})[0]
	assert.Equal(t, models.TypeLink, got.Type)
	assert.Equal(t, models.LayoutButton, got.Layout)
	assert.Equal(t, models.VisibilityAll, got.Visibility)
}

func TestImportEvents(t *testing.T) {
	facade, _, events, _ := setupFacade(t, false)

	payload := map[string]interface{}{
		"ctas":     []interface{}{},
		"settings": map[string]interface{}{},
		"analytics": map[string]interface{}{
			"events": []interface{}{
				map[string]interface{}{
					"cta_id":      float64(1),
					"event_type":  "click",
					"page_url":    "/pricing",
					"occurred_at": "2026-08-20 10:00:00",
				},
				map[string]interface{}{
					"event_type": "bogus_type",
				},
			},
		},
	}

	result, err := facade.ImportAll(payload, false, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Events)
	assert.Equal(t, int64(1), events.CountEvents())
}

func TestExportRoundTripShape(t *testing.T) {
	facade, ctas, events, settingsRepo := setupFacade(t, false)

	ctas.Create(&models.CTA{Name: "call", Status: models.StatusPublish, Type: models.TypePhone})
	settingsRepo.Set("analytics", map[string]interface{}{"retention": "90"})
	events.Insert(&analytics.Event{CTAID: 1, EventType: analytics.EventClick, OccurredAt: testNow})

	envelope := facade.ExportAll()
	assert.NotEmpty(t, envelope.ExportID)
	assert.Len(t, envelope.CTAs, 1)
	assert.Contains(t, envelope.Settings, "analytics")
	assert.NotNil(t, envelope.Analytics)
	assert.Len(t, envelope.Analytics.Events, 1)

	// free tier never exports event identity fields
	assert.NotContains(t, envelope.Analytics.Events[0], "ip_address")
}

func TestDashboardStatsEmptyState(t *testing.T) {
	facade, _, _, _ := setupFacade(t, false)

	stats := facade.GetDashboardStats()
	assert.Equal(t, int64(0), stats.TotalCTAs)
	assert.Equal(t, "--", stats.TopPageURL)
	assert.Equal(t, "--", stats.TopCTAName)
	assert.Equal(t, int64(0), stats.Windows["7d"].Clicks)
	assert.Equal(t, int64(0), stats.Windows["30d"].Impressions)
}

func TestDashboardStatsCountsDemoInTotal(t *testing.T) {
	facade, ctas, _, _ := setupFacade(t, false)

	ctas.Create(&models.CTA{Name: "mine", Status: models.StatusPublish})
	ctas.Create(&models.CTA{Name: "sample", Status: models.StatusPublish, IsDemo: true})

	stats := facade.GetDashboardStats()
	assert.Equal(t, int64(2), stats.TotalCTAs)
	assert.Equal(t, int64(1), stats.ActiveCTAs)
}

func TestDashboardStatsWindows(t *testing.T) {
	facade, ctas, events, _ := setupFacade(t, false)

	record := &models.CTA{Name: "call", Status: models.StatusPublish}
	ctas.Create(record)

	events.BulkInsert([]analytics.Event{
		{CTAID: record.ID, EventType: analytics.EventClick, PageURL: "/home", OccurredAt: testNow.AddDate(0, 0, -1)},
		{CTAID: record.ID, EventType: analytics.EventImpression, PageURL: "/home", OccurredAt: testNow.AddDate(0, 0, -1)},
		{CTAID: record.ID, EventType: analytics.EventClick, PageURL: "/home", OccurredAt: testNow.AddDate(0, 0, -10)},
	})

	stats := facade.GetDashboardStats()
	assert.Equal(t, int64(1), stats.Windows["7d"].Clicks)
	assert.Equal(t, int64(1), stats.Windows["7d"].Impressions)
	assert.Equal(t, int64(2), stats.Windows["14d"].Clicks)
	assert.Equal(t, "/home", stats.TopPageURL)
	assert.Equal(t, "call", stats.TopCTAName)
}

func TestPurgeExpiredEvents(t *testing.T) {
	facade, _, events, settingsRepo := setupFacade(t, false)
	settingsRepo.Set("analytics", map[string]interface{}{"retention": "30"})

	events.BulkInsert([]analytics.Event{
		{CTAID: 1, EventType: analytics.EventClick, OccurredAt: testNow.AddDate(0, 0, -60)},
		{CTAID: 1, EventType: analytics.EventClick, OccurredAt: testNow.AddDate(0, 0, -5)},
	})

	removed, err := facade.PurgeExpiredEvents()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, int64(1), events.CountEvents())

	// forever retention: purge is a no-op
	settingsRepo.Set("analytics", map[string]interface{}{"retention": "forever"})
	removed, err = facade.PurgeExpiredEvents()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestClearScheduleIfUnused(t *testing.T) {
	record := &models.CTA{
		Status:        models.StatusDraft,
		ScheduleType:  models.ScheduleDateRange,
		ScheduleStart: "2026-09-01",
		ScheduleEnd:   "2026-09-30",
	}
	ClearScheduleIfUnused(record)
	assert.Empty(t, record.ScheduleStart)
	assert.Empty(t, record.ScheduleEnd)

	record = &models.CTA{
		Status:        models.StatusSchedule,
		ScheduleType:  models.ScheduleDateRange,
		ScheduleStart: "2026-09-01",
		ScheduleEnd:   "2026-09-30",
	}
	ClearScheduleIfUnused(record)
	assert.Equal(t, "2026-09-01", record.ScheduleStart)
}
