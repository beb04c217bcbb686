package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ctamanager/models"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) (*Repository, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.CTA{})
	return NewRepository(db), db
}

func seedEvents(t *testing.T, repo *Repository) {
	batch := []Event{
		{CTAID: 1, EventType: EventImpression, PageURL: "/home", PageTitle: "Home", Device: "desktop", OccurredAt: testNow.AddDate(0, 0, -1)},
		{CTAID: 1, EventType: EventClick, PageURL: "/home", PageTitle: "Home", Device: "mobile", OccurredAt: testNow.AddDate(0, 0, -1)},
		{CTAID: 2, EventType: EventClick, PageURL: "/pricing", PageTitle: "Pricing", Device: "desktop", OccurredAt: testNow.AddDate(0, 0, -2)},
		{CTAID: 2, EventType: EventClick, PageURL: "/pricing", PageTitle: "Pricing", Device: "desktop", OccurredAt: testNow.AddDate(0, 0, -3)},
	}
	assert.NoError(t, repo.BulkInsert(batch))
}

func TestGetDailyStatsZeroFills(t *testing.T) {
	repo, _ := setupRepo(t)
	seedEvents(t, repo)

	start := testNow.AddDate(0, 0, -6)
	stats := repo.GetDailyStats(start, testNow, 0)
	assert.Len(t, stats, 7)

	total := int64(0)
	zeroDays := 0
	for _, day := range stats {
		total += day.Impressions + day.Clicks
		if day.Impressions == 0 && day.Clicks == 0 {
			zeroDays++
		}
	}
	assert.Equal(t, int64(4), total)
	assert.Equal(t, 4, zeroDays)

	// per-CTA filter
	stats = repo.GetDailyStats(start, testNow, 2)
	total = 0
	for _, day := range stats {
		total += day.Impressions + day.Clicks
	}
	assert.Equal(t, int64(2), total)
}

func TestGetTypeStats(t *testing.T) {
	repo, db := setupRepo(t)
	db.Create(&models.CTA{Name: "call", Type: models.TypePhone, Status: models.StatusPublish})
	db.Create(&models.CTA{Name: "visit", Type: models.TypeLink, Status: models.StatusPublish})
	seedEvents(t, repo)

	stats := repo.GetTypeStats(testNow.AddDate(0, 0, -7), testNow)
	assert.Len(t, stats, 2)

	byType := map[string]TypeStats{}
	for _, s := range stats {
		byType[s.CTAType] = s
	}
	assert.Equal(t, int64(1), byType[models.TypePhone].Impressions)
	assert.Equal(t, int64(1), byType[models.TypePhone].Clicks)
	assert.Equal(t, int64(2), byType[models.TypeLink].Clicks)
}

func TestGetTopCTAsAndPages(t *testing.T) {
	repo, db := setupRepo(t)
	db.Create(&models.CTA{Name: "call", Type: models.TypePhone, Status: models.StatusPublish})
	db.Create(&models.CTA{Name: "visit", Type: models.TypeLink, Status: models.StatusPublish})
	seedEvents(t, repo)

	top := repo.GetTopCTAs(testNow.AddDate(0, 0, -7), testNow, 10)
	assert.Len(t, top, 2)
	assert.Equal(t, uint(2), top[0].CTAID)
	assert.Equal(t, "visit", top[0].Name)
	assert.Equal(t, int64(2), top[0].Clicks)

	pages := repo.GetTopPages(testNow.AddDate(0, 0, -7), testNow, 1)
	assert.Len(t, pages, 1)
	assert.Equal(t, "/pricing", pages[0].PageURL)
	assert.Equal(t, int64(2), pages[0].Count)
}

func TestGetEventsFilterSortPaginate(t *testing.T) {
	repo, _ := setupRepo(t)
	seedEvents(t, repo)

	base := EventQuery{Start: testNow.AddDate(0, 0, -7), End: testNow}

	q := base
	q.EventType = EventClick
	events, total := repo.GetEvents(q)
	assert.Equal(t, int64(3), total)
	assert.Len(t, events, 3)

	q = base
	q.Search = "pric"
	_, total = repo.GetEvents(q)
	assert.Equal(t, int64(2), total)

	q = base
	q.PerPage = 3
	q.Page = 2
	events, total = repo.GetEvents(q)
	assert.Equal(t, int64(4), total)
	assert.Len(t, events, 1)

	// created_at is a legacy alias for occurred_at
	q = base
	q.SortBy = "created_at"
	q.SortOrder = "asc"
	events, _ = repo.GetEvents(q)
	assert.Equal(t, uint(2), events[0].CTAID)

	// unknown sort column falls back to occurred_at DESC
	q = base
	q.SortBy = "ip_address; DROP TABLE cta_events"
	events, _ = repo.GetEvents(q)
	assert.Equal(t, uint(1), events[0].CTAID)
}

func TestDeleteByCTAIDsIsScoped(t *testing.T) {
	repo, _ := setupRepo(t)
	seedEvents(t, repo)

	removed, err := repo.DeleteByCTAIDs([]uint{2})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, int64(2), repo.CountEvents())

	removed, err = repo.DeleteByCTAIDs(nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestPurgeBefore(t *testing.T) {
	repo, _ := setupRepo(t)
	seedEvents(t, repo)

	removed, err := repo.PurgeBefore(testNow.AddDate(0, 0, -2))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, int64(3), repo.CountEvents())
}

func TestTableExistsGuard(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)

	repo := &Repository{db: db}
	db.Migrator().DropTable(&Event{})

	assert.False(t, repo.TableExists())
	assert.Empty(t, repo.GetDailyStats(testNow.AddDate(0, 0, -7), testNow, 0))
	assert.Equal(t, int64(0), repo.CountEvents())
	events, total := repo.GetEvents(EventQuery{Start: testNow.AddDate(0, 0, -7), End: testNow})
	assert.Empty(t, events)
	assert.Equal(t, int64(0), total)
}
