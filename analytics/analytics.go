// Package analytics owns the event store: ingestion, aggregation queries for
// the dashboard, and the retention purge. The Event model lives here rather
// than in models because nothing outside analytics writes event rows.
package analytics

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Event types.
const (
	EventImpression = "impression"
	EventClick      = "click"
)

// Event is one impression or click. Rows are never mutated; they are removed
// by the retention purge, demo deletion, or a full reset.
type Event struct {
	ID         uint      `gorm:"primary_key;autoIncrement" json:"id"`
	CTAID      uint      `gorm:"not null;index" json:"cta_id"` // not FK-enforced
	EventType  string    `gorm:"not null;index" json:"event_type"`
	PageURL    string    `json:"page_url"`
	PageTitle  string    `json:"page_title"`
	Referrer   string    `json:"referrer"`
	Device     string    `json:"device"`
	IPAddress  string    `json:"ip_address,omitempty"` // serialized to clients only on Pro
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
}

func (Event) TableName() string {
	return "cta_events"
}

type Repository struct {
	db *gorm.DB
}

// NewRepository migrates the events table and returns the repository.
// Migration failure is tolerated: TableExists guards every query so a
// not-yet-migrated install degrades to empty results instead of erroring.
func NewRepository(db *gorm.DB) *Repository {
	if err := db.AutoMigrate(&Event{}); err != nil {
		log.Error().Err(err).Msg("Error migrating cta_events table")
	}
	return &Repository{db: db}
}

// TableExists is the defensive check run before any analytics query.
func (r *Repository) TableExists() bool {
	return r.db.Migrator().HasTable(&Event{})
}

// DayStats is one zero-filled day slot in a daily series.
type DayStats struct {
	Date        string `json:"date"`
	Impressions int64  `json:"impressions"`
	Clicks      int64  `json:"clicks"`
}

// GetDailyStats returns one slot per day in [start, end], zero-filled for
// days without events. ctaID 0 means all CTAs.
func (r *Repository) GetDailyStats(start, end time.Time, ctaID uint) []DayStats {
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 || !r.TableExists() {
		return []DayStats{}
	}

	var rows []struct {
		Date      string
		EventType string
		Count     int64
	}

	query := r.db.Model(&Event{}).
		Select("DATE(occurred_at) as date, event_type, COUNT(*) as count").
		Where("occurred_at >= ? AND occurred_at < ?", start, end.AddDate(0, 0, 1)).
		Group("DATE(occurred_at), event_type")
	if ctaID != 0 {
		query = query.Where("cta_id = ?", ctaID)
	}
	query.Scan(&rows)

	stats := make([]DayStats, days)
	for i := 0; i < days; i++ {
		stats[i] = DayStats{Date: start.AddDate(0, 0, i).Format("2006-01-02")}
	}

	for _, row := range rows {
		for i := range stats {
			if stats[i].Date == row.Date {
				if row.EventType == EventClick {
					stats[i].Clicks = row.Count
				} else {
					stats[i].Impressions = row.Count
				}
				break
			}
		}
	}

	return stats
}

// TypeStats aggregates impressions and clicks per CTA type over a window.
type TypeStats struct {
	CTAType     string `json:"cta_type"`
	Impressions int64  `json:"impressions"`
	Clicks      int64  `json:"clicks"`
}

// GetTypeStats joins events against the ctas table to group by CTA type.
func (r *Repository) GetTypeStats(start, end time.Time) []TypeStats {
	if !r.TableExists() {
		return []TypeStats{}
	}

	var rows []struct {
		CTAType   string
		EventType string
		Count     int64
	}

	r.db.Table("cta_events").
		Select("ctas.type as cta_type, cta_events.event_type, COUNT(*) as count").
		Joins("INNER JOIN ctas ON ctas.id = cta_events.cta_id").
		Where("cta_events.occurred_at >= ? AND cta_events.occurred_at < ?", start, end.AddDate(0, 0, 1)).
		Group("ctas.type, cta_events.event_type").
		Scan(&rows)

	byType := map[string]*TypeStats{}
	var order []string
	for _, row := range rows {
		entry, seen := byType[row.CTAType]
		if !seen {
			entry = &TypeStats{CTAType: row.CTAType}
			byType[row.CTAType] = entry
			order = append(order, row.CTAType)
		}
		if row.EventType == EventClick {
			entry.Clicks = row.Count
		} else {
			entry.Impressions = row.Count
		}
	}

	stats := make([]TypeStats, 0, len(order))
	for _, key := range order {
		stats = append(stats, *byType[key])
	}
	return stats
}

// CTAStats ranks a CTA by click volume.
type CTAStats struct {
	CTAID       uint   `json:"cta_id"`
	Name        string `json:"name"`
	Impressions int64  `json:"impressions"`
	Clicks      int64  `json:"clicks"`
}

// GetTopCTAs returns the most-clicked CTAs over a window.
func (r *Repository) GetTopCTAs(start, end time.Time, limit int) []CTAStats {
	if !r.TableExists() {
		return []CTAStats{}
	}
	if limit <= 0 {
		limit = 10
	}

	var results []CTAStats
	r.db.Table("cta_events").
		Select("cta_events.cta_id as cta_id, ctas.name as name, "+
			"SUM(CASE WHEN cta_events.event_type = 'impression' THEN 1 ELSE 0 END) as impressions, "+
			"SUM(CASE WHEN cta_events.event_type = 'click' THEN 1 ELSE 0 END) as clicks").
		Joins("LEFT JOIN ctas ON ctas.id = cta_events.cta_id").
		Where("cta_events.occurred_at >= ? AND cta_events.occurred_at < ?", start, end.AddDate(0, 0, 1)).
		Group("cta_events.cta_id, ctas.name").
		Order("clicks DESC").
		Limit(limit).
		Scan(&results)

	return results
}

// PageStats ranks a page by event volume.
type PageStats struct {
	PageURL   string `json:"page_url"`
	PageTitle string `json:"page_title"`
	Count     int64  `json:"count"`
}

// GetTopPages returns the pages producing the most events over a window.
func (r *Repository) GetTopPages(start, end time.Time, limit int) []PageStats {
	if !r.TableExists() {
		return []PageStats{}
	}
	if limit <= 0 {
		limit = 10
	}

	var results []PageStats
	r.db.Model(&Event{}).
		Select("page_url, page_title, COUNT(*) as count").
		Where("occurred_at >= ? AND occurred_at < ? AND page_url != ''", start, end.AddDate(0, 0, 1)).
		Group("page_url, page_title").
		Order("count DESC").
		Limit(limit).
		Scan(&results)

	return results
}

// EventQuery filters the paginated event listing.
type EventQuery struct {
	Start     time.Time
	End       time.Time
	CTAID     uint
	EventType string
	Search    string // matched against page URL and title
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

// sortColumns is the allow-list for event sorting. "created_at" is accepted
// as a legacy alias for occurred_at.
var sortColumns = map[string]string{
	"occurred_at": "occurred_at",
	"created_at":  "occurred_at",
	"event_type":  "event_type",
	"cta_id":      "cta_id",
	"page_url":    "page_url",
	"device":      "device",
}

// GetEvents returns one page of events plus the total match count.
func (r *Repository) GetEvents(q EventQuery) ([]Event, int64) {
	if !r.TableExists() {
		return []Event{}, 0
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 100 {
		q.PerPage = 20
	}

	query := r.db.Model(&Event{}).
		Where("occurred_at >= ? AND occurred_at < ?", q.Start, q.End.AddDate(0, 0, 1))
	if q.CTAID != 0 {
		query = query.Where("cta_id = ?", q.CTAID)
	}
	if q.EventType == EventImpression || q.EventType == EventClick {
		query = query.Where("event_type = ?", q.EventType)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("page_url LIKE ? OR page_title LIKE ?", like, like)
	}

	var total int64
	query.Count(&total)

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "occurred_at"
	}
	direction := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		direction = "ASC"
	}

	var events []Event
	query.Order(column + " " + direction).
		Offset((q.Page - 1) * q.PerPage).
		Limit(q.PerPage).
		Find(&events)

	return events, total
}

// BulkInsert writes a batch of events in one statement.
func (r *Repository) BulkInsert(events []Event) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.Create(&events).Error
}

// Insert writes a single event.
func (r *Repository) Insert(event *Event) error {
	return r.db.Create(event).Error
}

// DeleteByCTAIDs removes all events belonging to the given CTAs.
func (r *Repository) DeleteByCTAIDs(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Where("cta_id IN ?", ids).Delete(&Event{})
	return result.RowsAffected, result.Error
}

// CountEvents returns the total number of stored events.
func (r *Repository) CountEvents() int64 {
	if !r.TableExists() {
		return 0
	}
	var count int64
	r.db.Model(&Event{}).Count(&count)
	return count
}

// PurgeBefore removes events older than the cutoff; the retention enforcer.
func (r *Repository) PurgeBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("occurred_at < ?", cutoff).Delete(&Event{})
	return result.RowsAffected, result.Error
}

// DeleteAll removes every event (full reset).
func (r *Repository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&Event{}).Error
}
