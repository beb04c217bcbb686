// Package sanitize normalizes raw form input into canonical CTA values.
// Every function is a pure transform: unknown input maps to a documented
// default, nothing ever errors.
package sanitize

import (
	"strings"
	"time"

	"ctamanager/models"
)

// Status maps arbitrary input to a lifecycle state, defaulting to draft.
// "scheduled" is accepted as an alias for "schedule".
func Status(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.StatusPublish:
		return models.StatusPublish
	case models.StatusSchedule, "scheduled":
		return models.StatusSchedule
	case models.StatusArchived:
		return models.StatusArchived
	case models.StatusTrash:
		return models.StatusTrash
	default:
		return models.StatusDraft
	}
}

// Type maps arbitrary input to a CTA type, defaulting to link.
// "slide-in" is accepted alongside "slide_in".
func Type(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.TypePhone:
		return models.TypePhone
	case models.TypeEmail:
		return models.TypeEmail
	case models.TypePopup:
		return models.TypePopup
	case models.TypeSlideIn, "slide-in":
		return models.TypeSlideIn
	default:
		return models.TypeLink
	}
}

// Layout maps arbitrary input to a layout, defaulting to button.
func Layout(raw string) string {
	if strings.ToLower(strings.TrimSpace(raw)) == models.LayoutCard {
		return models.LayoutCard
	}
	return models.LayoutButton
}

// Visibility maps arbitrary input to a visibility value, defaulting to
// all_devices.
func Visibility(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.VisibilityDesktop:
		return models.VisibilityDesktop
	case models.VisibilityMobile:
		return models.VisibilityMobile
	default:
		return models.VisibilityAll
	}
}

// ScheduleType maps arbitrary input to a schedule type, defaulting to
// date_range.
func ScheduleType(raw string) string {
	if strings.ToLower(strings.TrimSpace(raw)) == models.ScheduleBusinessHours {
		return models.ScheduleBusinessHours
	}
	return models.ScheduleDateRange
}

var scheduleDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ScheduleDate accepts date-ish strings and returns the canonical
// YYYY-MM-DD form, or "" (unscheduled) on anything unparseable.
func ScheduleDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range scheduleDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// PhoneNumber strips input to a dialable-safe representation: digits plus
// the punctuation tel: links tolerate.
func PhoneNumber(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		switch r {
		case '+', '-', '(', ')', '.', ' ', '#', '*':
			return r
		}
		return -1
	}, strings.TrimSpace(raw))
}

// settingsGroups is the settings schema: per group, the known keys and the
// sanitizer applied to each. Unknown groups and keys are dropped.
var settingsGroups = map[string]map[string]func(interface{}) (interface{}, bool){
	"analytics": {
		"enabled":               asBool,
		"track_impressions":     asBool,
		"track_clicks":          asBool,
		"anonymize_ip":          asBool,
		"retention":             asRetention,
		"retention_custom_days": asPositiveInt,
	},
	"custom_css": {
		"enabled": asBool,
		"css":     asString,
	},
	"performance": {
		"cache_enabled":     asBool,
		"cache_ttl_seconds": asPositiveInt,
		"lazy_load":         asBool,
	},
	"data_management": {
		"delete_on_uninstall": asBool,
		"export_ip_addresses": asBool,
	},
	"debug": {
		"enabled":     asBool,
		"log_queries": asBool,
	},
	"onboarding": {
		"completed_steps": asStepList,
		"dismissed":       asBool,
	},
}

// SettingsNested recursively sanitizes a settings tree by group, preserving
// structure but removing unknown and unsafe values.
func SettingsNested(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for group, value := range raw {
		schema, known := settingsGroups[group]
		if !known {
			continue
		}
		fields, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		cleaned := make(map[string]interface{})
		for key, fieldValue := range fields {
			fn, knownKey := schema[key]
			if !knownKey {
				continue
			}
			if v, keep := fn(fieldValue); keep {
				cleaned[key] = v
			}
		}
		out[group] = cleaned
	}
	return out
}

// KnownSettingsGroup reports whether a group name is part of the schema.
func KnownSettingsGroup(group string) bool {
	_, ok := settingsGroups[group]
	return ok
}

func asBool(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(val) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off", "":
			return false, true
		}
	case float64:
		return val != 0, true
	}
	return nil, false
}

func asString(v interface{}) (interface{}, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return s, true
}

// RetentionValues are the accepted analytics retention windows, in days,
// with "forever" and "custom" as the two non-numeric choices.
var RetentionValues = []string{"forever", "30", "90", "180", "365", "custom"}

func asRetention(v interface{}) (interface{}, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	for _, allowed := range RetentionValues {
		if s == allowed {
			return s, true
		}
	}
	return nil, false
}

func asPositiveInt(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case float64:
		if val >= 1 && val == float64(int(val)) {
			return int(val), true
		}
	case int:
		if val >= 1 {
			return val, true
		}
	}
	return nil, false
}

func asStepList(v interface{}) (interface{}, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	var steps []int
	for _, item := range list {
		f, isNum := item.(float64)
		if !isNum {
			continue
		}
		step := int(f)
		if step >= 1 && step <= 4 {
			steps = append(steps, step)
		}
	}
	return steps, true
}
