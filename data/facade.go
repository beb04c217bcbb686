// Package data is the single entry point controllers use for cross-entity
// operations: export/import, retention clamping, dashboard stats, and the
// free-tier CTA quota.
package data

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ctamanager/analytics"
	"ctamanager/cache"
	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/models"
	"ctamanager/sanitize"
	"ctamanager/settings"
)

type Facade struct {
	ctas     *cta.Repository
	events   *analytics.Repository
	settings *settings.Repository
	gate     *common.FeatureGate
	cache    *cache.Store

	// overridable in tests
	now func() time.Time
}

func NewFacade(ctas *cta.Repository, events *analytics.Repository, settingsRepo *settings.Repository, gate *common.FeatureGate, store *cache.Store) *Facade {
	return &Facade{
		ctas:     ctas,
		events:   events,
		settings: settingsRepo,
		gate:     gate,
		cache:    store,
		now:      time.Now,
	}
}

// SetClock replaces the facade clock; test hook only.
func (f *Facade) SetClock(now func() time.Time) {
	f.now = now
}

// Cache exposes the shared response cache so controllers can invalidate it
// after CTA writes.
func (f *Facade) Cache() *cache.Store {
	return f.cache
}

// ClampDateRangeToRetention adjusts a requested analytics window so it never
// reads below the configured retention floor. The end date passes through
// untouched; only a too-early start moves forward.
func (f *Facade) ClampDateRangeToRetention(start, end time.Time) (time.Time, time.Time) {
	floor, haveFloor := f.settings.RetentionFloor(f.now())
	if haveFloor && start.Before(floor) {
		start = floor
	}
	return start, end
}

// PurgeExpiredEvents enforces retention by deletion. A no-op when retention
// is forever.
func (f *Facade) PurgeExpiredEvents() (int64, error) {
	floor, haveFloor := f.settings.RetentionFloor(f.now())
	if !haveFloor {
		return 0, nil
	}
	return f.events.PurgeBefore(floor)
}

// GetCTACount counts live non-demo CTAs: the number that consumes the
// free-tier quota.
func (f *Facade) GetCTACount() int64 {
	return f.ctas.Count(true)
}

// GetTotalCTACount counts live CTAs, demo rows included.
func (f *Facade) GetTotalCTACount() int64 {
	return f.ctas.Count(false)
}

// CanAddCTA enforces the free-tier ceiling. Demo CTAs never consume quota.
func (f *Facade) CanAddCTA() bool {
	limit := f.gate.CTALimit()
	if limit == 0 {
		return true
	}
	return f.GetCTACount() < int64(limit)
}

var (
	svgScriptRe  = regexp.MustCompile(`(?is)<script.*?</script\s*>|<script[^>]*/\s*>`)
	svgHandlerRe = regexp.MustCompile(`(?i)\son[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	svgJSHrefRe  = regexp.MustCompile(`(?i)(href|xlink:href)\s*=\s*("javascript:[^"]*"|'javascript:[^']*')`)
)

// SanitizeSVG applies the light allow-list for custom icons: the document
// must begin with <svg and end with </svg>, and script blocks, inline event
// handlers, and javascript: hrefs are stripped. Returns ok=false on
// rejection; callers must treat that as failure, not as an empty icon.
func (f *Facade) SanitizeSVG(svg string) (string, bool) {
	trimmed := strings.TrimSpace(svg)
	if !strings.HasPrefix(trimmed, "<svg") || !strings.HasSuffix(trimmed, "</svg>") {
		return "", false
	}

	cleaned := svgScriptRe.ReplaceAllString(trimmed, "")
	cleaned = svgHandlerRe.ReplaceAllString(cleaned, "")
	cleaned = svgJSHrefRe.ReplaceAllString(cleaned, "")

	if !strings.HasPrefix(cleaned, "<svg") || !strings.HasSuffix(cleaned, "</svg>") {
		return "", false
	}
	return cleaned, true
}

// DashboardStats is the empty-state-friendly aggregate for the admin home
// screen: counters default to 0 and labels to "--", never null.
type DashboardStats struct {
	TotalCTAs    int64            `json:"total_ctas"`
	ActiveCTAs   int64            `json:"active_ctas"`
	Windows      map[string]Stats `json:"windows"` // keys: 7d, 14d, 30d
	TopPageURL   string           `json:"top_page_url"`
	TopPageTitle string           `json:"top_page_title"`
	TopCTAName   string           `json:"top_cta_name"`
	TopCTAClicks int64            `json:"top_cta_clicks"`
}

type Stats struct {
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
}

// GetDashboardStats aggregates counts over the fixed 7/14/30-day windows
// plus top-page and top-CTA lookups. Results are cached briefly.
func (f *Facade) GetDashboardStats() DashboardStats {
	cacheKey := cache.Key("dashboard_stats")
	if cached, found := f.cache.Get(cacheKey); found {
		if stats, ok := cached.(DashboardStats); ok {
			return stats
		}
	}

	now := f.now()
	stats := DashboardStats{
		TotalCTAs:    f.GetTotalCTACount(),
		ActiveCTAs:   f.ctas.CountActiveNonDemo(),
		Windows:      map[string]Stats{},
		TopPageURL:   "--",
		TopPageTitle: "--",
		TopCTAName:   "--",
	}

	for _, days := range []int{7, 14, 30} {
		start, end := f.ClampDateRangeToRetention(now.AddDate(0, 0, -days+1), now)
		var window Stats
		for _, day := range f.events.GetDailyStats(start, end, 0) {
			window.Impressions += day.Impressions
			window.Clicks += day.Clicks
		}
		stats.Windows[windowKey(days)] = window
	}

	start, end := f.ClampDateRangeToRetention(now.AddDate(0, 0, -29), now)
	if pages := f.events.GetTopPages(start, end, 1); len(pages) > 0 {
		stats.TopPageURL = pages[0].PageURL
		if pages[0].PageTitle != "" {
			stats.TopPageTitle = pages[0].PageTitle
		}
	}
	if top := f.events.GetTopCTAs(start, end, 1); len(top) > 0 {
		if top[0].Name != "" {
			stats.TopCTAName = top[0].Name
		}
		stats.TopCTAClicks = top[0].Clicks
	}

	f.cache.Set(cacheKey, stats)
	return stats
}

func windowKey(days int) string {
	switch days {
	case 7:
		return "7d"
	case 14:
		return "14d"
	default:
		return "30d"
	}
}

// ExportEnvelope is the import/export JSON file format.
type ExportEnvelope struct {
	ExportID   string                            `json:"export_id"`
	ExportedAt string                            `json:"exported_at"`
	CTAs       []map[string]interface{}          `json:"ctas"`
	Settings   map[string]map[string]interface{} `json:"settings"`
	Analytics  *AnalyticsExport                  `json:"analytics,omitempty"`
}

type AnalyticsExport struct {
	Events []map[string]interface{} `json:"events"`
}

// ExportAll snapshots ctas, settings, and analytics into one envelope.
// Event identity fields are included only when the gate allows it.
func (f *Facade) ExportAll() ExportEnvelope {
	envelope := ExportEnvelope{
		ExportID:   uuid.NewString(),
		ExportedAt: f.now().UTC().Format(time.RFC3339),
		CTAs:       []map[string]interface{}{},
		Settings:   f.settings.GetAll(),
	}

	for _, record := range f.ctas.GetAll(cta.Filters{IncludeDeleted: true}) {
		envelope.CTAs = append(envelope.CTAs, ctaToMap(record))
	}

	events, _ := f.events.GetEvents(analytics.EventQuery{
		Start:   time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		End:     f.now(),
		PerPage: 100,
		Page:    1,
	})
	if len(events) > 0 {
		exported := &AnalyticsExport{Events: []map[string]interface{}{}}
		page := 1
		for len(events) > 0 {
			for _, event := range events {
				exported.Events = append(exported.Events, f.eventToMap(event))
			}
			page++
			events, _ = f.events.GetEvents(analytics.EventQuery{
				Start:   time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
				End:     f.now(),
				PerPage: 100,
				Page:    page,
			})
		}
		envelope.Analytics = exported
	}

	return envelope
}

// ImportResult reports what one import applied.
type ImportResult struct {
	CTAs     int `json:"ctas"`
	Settings int `json:"settings"`
	Events   int `json:"events"`
}

// ImportAll applies a validated import payload. Replace mode (the only mode
// without Pro) discards existing CTAs before inserting; merge mode is
// additive. With backup set, the current settings are snapshotted first
// (single-slot, see settings.BackupDemoSettings).
func (f *Facade) ImportAll(payload map[string]interface{}, merge bool, backup bool) (ImportResult, error) {
	var result ImportResult

	if merge && !f.gate.AllowMergeImport() {
		merge = false
	}

	if backup {
		if err := f.settings.BackupDemoSettings(); err != nil {
			return result, err
		}
	}

	if !merge {
		if _, err := f.ctas.EmptyTrash(); err != nil {
			return result, err
		}
		for _, record := range f.ctas.GetAll(cta.Filters{IncludeDeleted: true}) {
			if err := f.ctas.Delete(record.ID, true); err != nil {
				return result, err
			}
		}
	}

	if ctasRaw, ok := payload["ctas"].([]interface{}); ok {
		for _, item := range ctasRaw {
			fields, isMap := item.(map[string]interface{})
			if !isMap {
				continue
			}
			record := f.CTAFromMap(fields)
			if err := f.ctas.Create(record); err != nil {
				return result, err
			}
			result.CTAs++
		}
	}

	if settingsRaw, ok := payload["settings"].(map[string]interface{}); ok {
		tree := sanitize.SettingsNested(settingsRaw)
		tree = f.settings.ApplySettingsRules(tree)
		if err := f.settings.ReplaceAll(tree); err != nil {
			return result, err
		}
		result.Settings = len(tree)
	}

	if analyticsRaw, ok := payload["analytics"].(map[string]interface{}); ok {
		if eventsRaw, hasEvents := analyticsRaw["events"].([]interface{}); hasEvents {
			batch := make([]analytics.Event, 0, len(eventsRaw))
			for _, item := range eventsRaw {
				fields, isMap := item.(map[string]interface{})
				if !isMap {
					continue
				}
				if event, ok := EventFromMap(fields, f.now()); ok {
					batch = append(batch, event)
				}
			}
			if err := f.events.BulkInsert(batch); err != nil {
				return result, err
			}
			result.Events = len(batch)
		}
	}

	f.cache.Clear()
	log.Info().Int("ctas", result.CTAs).Int("events", result.Events).Bool("merge", merge).Msg("import applied")
	return result, nil
}

// CTAFromMap builds a sanitized, gate-enforced record from an untyped map
// (import payloads, demo data). Unknown values fall back to defaults; the
// schedule is cleared when the status does not use it.
func (f *Facade) CTAFromMap(fields map[string]interface{}) *models.CTA {
	str := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}

	record := &models.CTA{
		Name:            strings.TrimSpace(str("name")),
		Status:          sanitize.Status(str("status")),
		Type:            sanitize.Type(str("type")),
		Layout:          sanitize.Layout(str("layout")),
		Visibility:      sanitize.Visibility(str("visibility")),
		ScheduleType:    sanitize.ScheduleType(str("schedule_type")),
		ScheduleStart:   sanitize.ScheduleDate(str("schedule_start")),
		ScheduleEnd:     sanitize.ScheduleDate(str("schedule_end")),
		PhoneNumber:     sanitize.PhoneNumber(str("phone_number")),
		LinkURL:         strings.TrimSpace(str("link_url")),
		EmailAddress:    strings.TrimSpace(str("email_address")),
		Icon:            str("icon"),
		ButtonAnimation: str("button_animation"),
		IconAnimation:   str("icon_animation"),
		Enabled:         true,
	}

	if enabled, ok := fields["enabled"].(bool); ok {
		record.Enabled = enabled
	}
	if demo, ok := fields["_demo"].(bool); ok {
		record.IsDemo = demo
	}

	style, _ := fields["style"].(map[string]interface{})
	record.StyleJSON = models.StyleToJSON(style)

	f.gate.ApplyToCTA(record)
	ClearScheduleIfUnused(record)
	return record
}

// ClearScheduleIfUnused blanks schedule dates when the schedule type is not
// date_range or the status makes scheduling meaningless.
func ClearScheduleIfUnused(record *models.CTA) {
	if record.ScheduleType != models.ScheduleDateRange {
		record.ScheduleStart = ""
		record.ScheduleEnd = ""
		return
	}
	switch record.Status {
	case models.StatusDraft, models.StatusArchived, models.StatusTrash:
		record.ScheduleStart = ""
		record.ScheduleEnd = ""
	}
}

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// EventFromMap builds an event row from an untyped map. Rows without a
// parseable timestamp get the current time.
func EventFromMap(fields map[string]interface{}, now time.Time) (analytics.Event, bool) {
	str := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}

	eventType := str("event_type")
	if eventType != analytics.EventImpression && eventType != analytics.EventClick {
		return analytics.Event{}, false
	}

	var ctaID uint
	switch v := fields["cta_id"].(type) {
	case float64:
		ctaID = uint(v)
	case int:
		ctaID = uint(v)
	}

	occurredAt := now
	if raw := str("occurred_at"); raw != "" {
		for _, layout := range eventTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				occurredAt = t
				break
			}
		}
	}

	return analytics.Event{
		CTAID:      ctaID,
		EventType:  eventType,
		PageURL:    str("page_url"),
		PageTitle:  str("page_title"),
		Referrer:   str("referrer"),
		Device:     str("device"),
		IPAddress:  str("ip_address"),
		UserAgent:  str("user_agent"),
		OccurredAt: occurredAt,
	}, true
}

func ctaToMap(record models.CTA) map[string]interface{} {
	raw, _ := json.Marshal(record)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	out["style"] = models.StyleFromJSON(record.StyleJSON)
	return out
}

func (f *Facade) eventToMap(event analytics.Event) map[string]interface{} {
	out := map[string]interface{}{
		"cta_id":      event.CTAID,
		"event_type":  event.EventType,
		"page_url":    event.PageURL,
		"page_title":  event.PageTitle,
		"referrer":    event.Referrer,
		"device":      event.Device,
		"occurred_at": event.OccurredAt.Format("2006-01-02 15:04:05"),
	}
	if f.gate.ExposeEventIdentity() {
		out["ip_address"] = event.IPAddress
		out["user_agent"] = event.UserAgent
	}
	return out
}
