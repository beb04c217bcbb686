// Package demo seeds and removes the bundled demo content. Both import and
// deletion are selective per scope (settings, ctas, analytics,
// notifications); a settings-scoped deletion restores the snapshot taken
// before the demo settings were applied.
package demo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"ctamanager/analytics"
	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/data"
	"ctamanager/models"
	"ctamanager/notifications"
	"ctamanager/sanitize"
	"ctamanager/settings"
)

// SeedFile is the on-disk demo bundle: one content set per tier.
type SeedFile struct {
	Free SeedContent `json:"free"`
	Pro  SeedContent `json:"pro"`
}

type SeedContent struct {
	CTAs          []map[string]interface{}          `json:"ctas"`
	Settings      map[string]map[string]interface{} `json:"settings"`
	Analytics     []SeedEvent                       `json:"analytics"`
	Notifications []SeedNotification                `json:"notifications"`
}

// SeedEvent references its CTA by position in the tier's ctas list, since
// database ids are only known after insertion. OccurredAt is a relative
// datetime ("-6 days 09:15:00", "today 07:00:00").
type SeedEvent struct {
	CTAIndex   int    `json:"cta_index"`
	EventType  string `json:"event_type"`
	PageURL    string `json:"page_url"`
	PageTitle  string `json:"page_title"`
	Referrer   string `json:"referrer"`
	Device     string `json:"device"`
	OccurredAt string `json:"occurred_at"`
}

type SeedNotification struct {
	Type    string                   `json:"type"`
	Title   string                   `json:"title"`
	Message string                   `json:"message"`
	Icon    string                   `json:"icon"`
	Actions []map[string]interface{} `json:"actions"`
}

var relativeDayRe = regexp.MustCompile(`^([+-]?\d+)$`)

// ParseRelativeDatetime resolves the seed bundle's relative timestamps
// against a reference time. Supported forms: "today", "yesterday", and
// "<signed N> days", each with an optional trailing clock time.
func ParseRelativeDatetime(raw string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) == 0 {
		return time.Time{}, false
	}

	var dayOffset int
	rest := fields[1:]
	switch fields[0] {
	case "today":
	case "yesterday":
		dayOffset = -1
	default:
		match := relativeDayRe.FindStringSubmatch(fields[0])
		if match == nil || len(fields) < 2 {
			return time.Time{}, false
		}
		unit := fields[1]
		if unit != "day" && unit != "days" {
			return time.Time{}, false
		}
		dayOffset, _ = strconv.Atoi(match[1])
		rest = fields[2:]
	}

	hour, minute, second := 0, 0, 0
	if len(rest) > 0 {
		clock, err := time.Parse("15:04:05", rest[0])
		if err != nil {
			clock, err = time.Parse("15:04", rest[0])
		}
		if err != nil {
			return time.Time{}, false
		}
		hour, minute, second = clock.Hour(), clock.Minute(), clock.Second()
	}

	day := now.AddDate(0, 0, dayOffset)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, now.Location()), true
}

// Scopes selects which parts of the bundle one import applies.
type Scopes struct {
	Settings      bool `json:"settings"`
	CTAs          bool `json:"ctas"`
	Analytics     bool `json:"analytics"`
	Notifications bool `json:"notifications"`
}

func (s Scopes) any() bool {
	return s.Settings || s.CTAs || s.Analytics || s.Notifications
}

type Seeder struct {
	db            *gorm.DB
	ctas          *cta.Repository
	events        *analytics.Repository
	settings      *settings.Repository
	notifications *notifications.Repository
	facade        *data.Facade
	gate          *common.FeatureGate
	dataPath      string

	now func() time.Time
}

func NewSeeder(db *gorm.DB, ctas *cta.Repository, events *analytics.Repository, settingsRepo *settings.Repository, notificationsRepo *notifications.Repository, facade *data.Facade, gate *common.FeatureGate, dataPath string) *Seeder {
	return &Seeder{
		db:            db,
		ctas:          ctas,
		events:        events,
		settings:      settingsRepo,
		notifications: notificationsRepo,
		facade:        facade,
		gate:          gate,
		dataPath:      dataPath,
		now:           time.Now,
	}
}

// SetClock replaces the seeder clock; test hook only.
func (s *Seeder) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Seeder) loadContent() (SeedContent, error) {
	raw, err := os.ReadFile(s.dataPath)
	if err != nil {
		return SeedContent{}, fmt.Errorf("reading demo bundle: %w", err)
	}
	var file SeedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return SeedContent{}, fmt.Errorf("parsing demo bundle: %w", err)
	}
	if s.gate.IsPro() {
		return file.Pro, nil
	}
	return file.Free, nil
}

// ImportResult reports what one demo import created.
type ImportResult struct {
	CTAs          int `json:"ctas"`
	Settings      int `json:"settings"`
	Events        int `json:"events"`
	Notifications int `json:"notifications"`
}

// Import applies the selected scopes. The analytics scope needs CTA ids to
// attach events to, so it implies seeding the demo CTAs when they are not
// already present.
func (s *Seeder) Import(userID int, scopes Scopes) (ImportResult, error) {
	var result ImportResult

	content, err := s.loadContent()
	if err != nil {
		return result, err
	}

	if scopes.Settings && len(content.Settings) > 0 {
		// One-shot snapshot so deletion can put the user's settings back.
		if err := s.settings.BackupDemoSettings(); err != nil {
			return result, err
		}
		nested := map[string]interface{}{}
		for group, fields := range content.Settings {
			nested[group] = map[string]interface{}(fields)
		}
		sanitized := s.settings.ApplySettingsRules(sanitize.SettingsNested(nested))
		for group, rawValues := range sanitized {
			values, ok := rawValues.(map[string]interface{})
			if !ok {
				continue
			}
			if err := s.settings.Set(group, values); err != nil {
				return result, err
			}
			result.Settings++
		}
	}

	var demoIDs []uint
	if scopes.CTAs || scopes.Analytics {
		demoIDs = s.ctas.GetDemoCTAIDs()
		if len(demoIDs) == 0 {
			for _, fields := range content.CTAs {
				record := s.facade.CTAFromMap(fields)
				record.IsDemo = true
				if err := s.ctas.Create(record); err != nil {
					return result, err
				}
				demoIDs = append(demoIDs, record.ID)
				result.CTAs++
			}
		}
	}

	if scopes.Analytics {
		now := s.now()
		floor, haveFloor := s.settings.RetentionFloor(now)

		batch := make([]analytics.Event, 0, len(content.Analytics))
		for _, seed := range content.Analytics {
			if seed.CTAIndex < 0 || seed.CTAIndex >= len(demoIDs) {
				continue
			}
			if seed.EventType != analytics.EventImpression && seed.EventType != analytics.EventClick {
				continue
			}
			occurredAt, ok := ParseRelativeDatetime(seed.OccurredAt, now)
			if !ok {
				continue
			}
			// Seeding never plants rows the retention purge would
			// immediately remove.
			if haveFloor && occurredAt.Before(floor) {
				continue
			}
			batch = append(batch, analytics.Event{
				CTAID:      demoIDs[seed.CTAIndex],
				EventType:  seed.EventType,
				PageURL:    seed.PageURL,
				PageTitle:  seed.PageTitle,
				Referrer:   seed.Referrer,
				Device:     seed.Device,
				OccurredAt: occurredAt,
			})
		}
		if err := s.events.BulkInsert(batch); err != nil {
			return result, err
		}
		result.Events = len(batch)
	}

	if scopes.Notifications {
		for _, seed := range content.Notifications {
			notificationType := seed.Type
			if !strings.HasPrefix(notificationType, "demo_") {
				notificationType = "demo_" + notificationType
			}
			actions, _ := json.Marshal(seed.Actions)
			row := &models.Notification{
				UserID:      userID,
				Type:        notificationType,
				Title:       seed.Title,
				Message:     seed.Message,
				Icon:        seed.Icon,
				ActionsJSON: string(actions),
				CreatedAt:   s.now(),
			}
			if err := s.notifications.Create(row); err != nil {
				return result, err
			}
			result.Notifications++
		}
	}

	if s.facade.Cache() != nil {
		s.facade.Cache().Clear()
	}
	return result, nil
}

// Delete removes the selected demo content. Deleting the demo CTAs also
// removes their events, so no orphaned event rows survive; the settings
// snapshot is restored only when the settings scope is selected. All steps
// run in one transaction so a mid-way failure never leaves a partial
// removal behind.
func (s *Seeder) Delete(userID int, scopes Scopes) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.CTA{}).Unscoped().Where("is_demo = ?", true).Pluck("id", &ids).Error; err != nil {
			return err
		}

		if len(ids) > 0 {
			if scopes.Analytics || scopes.CTAs {
				if err := tx.Where("cta_id IN ?", ids).Delete(&analytics.Event{}).Error; err != nil {
					return err
				}
			}
			if scopes.CTAs {
				if err := tx.Unscoped().Where("is_demo = ?", true).Delete(&models.CTA{}).Error; err != nil {
					return err
				}
			}
		}

		if scopes.Notifications {
			if err := tx.Where("user_id = ? AND type LIKE ?", userID, "demo_%").Delete(&models.Notification{}).Error; err != nil {
				return err
			}
		}

		if scopes.Settings {
			return restoreSettingsBackup(tx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.facade.Cache() != nil {
		s.facade.Cache().Clear()
	}
	return nil
}

// restoreSettingsBackup applies the demo-settings snapshot inside the demo
// deletion transaction. A missing snapshot (demo settings never imported)
// is not an error.
func restoreSettingsBackup(tx *gorm.DB) error {
	var backup models.Setting
	err := tx.Where("group_key = ?", settings.DemoSettingsBackupKey).First(&backup).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	var tree map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(backup.Value), &tree); err != nil {
		return err
	}

	if err := tx.Where("group_key NOT LIKE ?", settings.GroupBackup+"%").Delete(&models.Setting{}).Error; err != nil {
		return err
	}
	for group, values := range tree {
		raw, marshalErr := json.Marshal(values)
		if marshalErr != nil {
			return marshalErr
		}
		if err := tx.Create(&models.Setting{Group: group, Value: string(raw)}).Error; err != nil {
			return err
		}
	}
	return tx.Where("group_key = ?", settings.DemoSettingsBackupKey).Delete(&models.Setting{}).Error
}

type DemoModule struct {
	seeder *Seeder
}

func NewDemoModule(seeder *Seeder) *DemoModule {
	return &DemoModule{seeder: seeder}
}

func (m *DemoModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/admin/demo")
	group.Use(common.RequireAuthJSON, common.RequireNonce)
	{
		group.POST("/import", m.importDemo)
		group.POST("/delete", m.deleteDemo)
	}
}

func (m *DemoModule) importDemo(c *gin.Context) {
	var scopes Scopes
	if err := c.ShouldBindJSON(&scopes); err != nil || !scopes.any() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No import scopes selected"})
		return
	}

	result, err := m.seeder.Import(common.CurrentUserID(c), scopes)
	if err != nil {
		log.Error().Err(err).Msg("Error importing demo data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import demo data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imported": result})
}

func (m *DemoModule) deleteDemo(c *gin.Context) {
	var scopes Scopes
	if err := c.ShouldBindJSON(&scopes); err != nil || !scopes.any() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No delete scopes selected"})
		return
	}

	if err := m.seeder.Delete(common.CurrentUserID(c), scopes); err != nil {
		log.Error().Err(err).Msg("Error deleting demo data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete demo data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
