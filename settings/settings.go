// Package settings owns persistence for the grouped settings document.
package settings

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"ctamanager/common"
	"ctamanager/models"
)

// GroupBackup is the namespace prefix reserved for snapshot rows.
const GroupBackup = "backup:"

// DemoSettingsBackupKey is the single-slot snapshot taken before a
// demo-settings import and consumed on restore.
const DemoSettingsBackupKey = GroupBackup + "demo_settings_backup"

type Repository struct {
	db   *gorm.DB
	gate *common.FeatureGate
}

func NewRepository(db *gorm.DB, gate *common.FeatureGate) *Repository {
	return &Repository{db: db, gate: gate}
}

// Get returns the decoded settings group, or an empty map when absent.
func (r *Repository) Get(group string) map[string]interface{} {
	var row models.Setting
	if err := r.db.Where("group_key = ?", group).First(&row).Error; err != nil {
		return map[string]interface{}{}
	}

	var value map[string]interface{}
	if err := json.Unmarshal([]byte(row.Value), &value); err != nil {
		return map[string]interface{}{}
	}
	return value
}

// Set stores a settings group, replacing any previous value.
func (r *Repository) Set(group string, value map[string]interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var row models.Setting
	err = r.db.Where("group_key = ?", group).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&models.Setting{Group: group, Value: string(raw)}).Error
	}
	if err != nil {
		return err
	}

	row.Value = string(raw)
	return r.db.Save(&row).Error
}

// Delete removes a settings group. Deleting an absent group is a no-op.
func (r *Repository) Delete(group string) error {
	return r.db.Where("group_key = ?", group).Delete(&models.Setting{}).Error
}

// Exists reports whether a settings group is stored.
func (r *Repository) Exists(group string) bool {
	var count int64
	r.db.Model(&models.Setting{}).Where("group_key = ?", group).Count(&count)
	return count > 0
}

// GetAll returns every non-backup group keyed by name.
func (r *Repository) GetAll() map[string]map[string]interface{} {
	var rows []models.Setting
	if err := r.db.Where("group_key NOT LIKE ?", GroupBackup+"%").Find(&rows).Error; err != nil {
		return map[string]map[string]interface{}{}
	}

	out := make(map[string]map[string]interface{}, len(rows))
	for _, row := range rows {
		var value map[string]interface{}
		if err := json.Unmarshal([]byte(row.Value), &value); err != nil {
			continue
		}
		out[row.Group] = value
	}
	return out
}

// ReplaceAll swaps the entire non-backup settings document for the given
// tree. Groups not present in the tree are removed.
func (r *Repository) ReplaceAll(tree map[string]interface{}) error {
	if err := r.db.Where("group_key NOT LIKE ?", GroupBackup+"%").Delete(&models.Setting{}).Error; err != nil {
		return err
	}
	for group, value := range tree {
		fields, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		if err := r.Set(group, fields); err != nil {
			return err
		}
	}
	return nil
}

// BackupDemoSettings snapshots the current settings once. A second call
// while a backup exists is a no-op: the original snapshot is never
// overwritten.
func (r *Repository) BackupDemoSettings() error {
	if r.Exists(DemoSettingsBackupKey) {
		return nil
	}

	snapshot := r.GetAll()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.db.Create(&models.Setting{Group: DemoSettingsBackupKey, Value: string(raw)}).Error
}

// RestoreDemoSettings replaces current settings with the snapshot and
// consumes (deletes) it. Without a backup it does nothing.
func (r *Repository) RestoreDemoSettings() (bool, error) {
	var row models.Setting
	err := r.db.Where("group_key = ?", DemoSettingsBackupKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var snapshot map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(row.Value), &snapshot); err != nil {
		return false, err
	}

	tree := make(map[string]interface{}, len(snapshot))
	for group, fields := range snapshot {
		tree[group] = map[string]interface{}(fields)
	}
	if err := r.ReplaceAll(tree); err != nil {
		return false, err
	}

	return true, r.Delete(DemoSettingsBackupKey)
}

// ApplySettingsRules forces Pro-only settings back to free defaults when Pro
// is inactive, regardless of what the client stored.
func (r *Repository) ApplySettingsRules(tree map[string]interface{}) map[string]interface{} {
	if r.gate.IsPro() {
		return tree
	}
	if css, ok := tree["custom_css"].(map[string]interface{}); ok {
		css["enabled"] = false
	}
	if dm, ok := tree["data_management"].(map[string]interface{}); ok {
		dm["export_ip_addresses"] = false
	}
	return tree
}

// Retention returns the analytics retention window. ok is false when the
// window is "forever" (no floor).
func (r *Repository) Retention() (days int, ok bool) {
	analytics := r.Get("analytics")

	retention, _ := analytics["retention"].(string)
	switch retention {
	case "", "forever":
		return 0, false
	case "custom":
		raw, present := analytics["retention_custom_days"]
		if !present {
			return 0, false
		}
		switch v := raw.(type) {
		case float64:
			days = int(v)
		case int:
			days = v
		}
		if days < 1 || days > 3650 {
			return 0, false
		}
		return days, true
	case "30":
		return 30, true
	case "90":
		return 90, true
	case "180":
		return 180, true
	case "365":
		return 365, true
	}
	return 0, false
}

// RetentionFloor returns the earliest moment analytics queries may read.
// ok is false when retention is unlimited.
func (r *Repository) RetentionFloor(now time.Time) (time.Time, bool) {
	days, ok := r.Retention()
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

// AnalyticsEnabled reports whether event tracking is on. Defaults to true
// when the group has never been saved.
func (r *Repository) AnalyticsEnabled() bool {
	analytics := r.Get("analytics")
	enabled, present := analytics["enabled"]
	if !present {
		return true
	}
	b, ok := enabled.(bool)
	return ok && b
}

// DebugEnabled reports whether debug mode is on.
func (r *Repository) DebugEnabled() bool {
	debug := r.Get("debug")
	b, _ := debug["enabled"].(bool)
	return b
}
