// Package validate gates persistence on structural correctness. Validators
// return human-readable error strings and never mutate their input; a
// non-empty list means the whole operation is rejected, no partial apply.
package validate

import (
	"fmt"

	"ctamanager/sanitize"
)

// ImportData checks that an import payload's top-level keys and nested
// shapes match the expected export envelope schema.
func ImportData(data map[string]interface{}) []string {
	var errs []string

	if data == nil {
		return []string{"import payload is empty"}
	}

	ctasRaw, hasCTAs := data["ctas"]
	if !hasCTAs {
		errs = append(errs, "missing required key: ctas")
	} else if ctas, ok := ctasRaw.([]interface{}); !ok {
		errs = append(errs, "ctas must be a list")
	} else {
		for i, item := range ctas {
			cta, isMap := item.(map[string]interface{})
			if !isMap {
				errs = append(errs, fmt.Sprintf("ctas[%d] is not an object", i))
				continue
			}
			errs = append(errs, validateCTAShape(i, cta)...)
		}
	}

	settingsRaw, hasSettings := data["settings"]
	if !hasSettings {
		errs = append(errs, "missing required key: settings")
	} else if settings, ok := settingsRaw.(map[string]interface{}); !ok {
		errs = append(errs, "settings must be an object")
	} else {
		errs = append(errs, SettingsNested(settings)...)
	}

	// analytics is optional in the envelope; when present it must carry an
	// event list.
	if analyticsRaw, hasAnalytics := data["analytics"]; hasAnalytics {
		analytics, ok := analyticsRaw.(map[string]interface{})
		if !ok {
			errs = append(errs, "analytics must be an object")
		} else if eventsRaw, hasEvents := analytics["events"]; hasEvents {
			if events, ok := eventsRaw.([]interface{}); !ok {
				errs = append(errs, "analytics.events must be a list")
			} else {
				for i, item := range events {
					if _, isMap := item.(map[string]interface{}); !isMap {
						errs = append(errs, fmt.Sprintf("analytics.events[%d] is not an object", i))
					}
				}
			}
		}
	}

	return errs
}

func validateCTAShape(index int, cta map[string]interface{}) []string {
	var errs []string

	if name, ok := cta["name"].(string); !ok || name == "" {
		errs = append(errs, fmt.Sprintf("ctas[%d] missing name", index))
	}

	for _, key := range []string{"status", "type", "layout", "visibility", "schedule_type", "schedule_start", "schedule_end"} {
		if raw, present := cta[key]; present {
			if _, ok := raw.(string); !ok {
				errs = append(errs, fmt.Sprintf("ctas[%d].%s must be a string", index, key))
			}
		}
	}

	if raw, present := cta["style"]; present {
		if _, ok := raw.(map[string]interface{}); !ok {
			errs = append(errs, fmt.Sprintf("ctas[%d].style must be an object", index))
		}
	}

	return errs
}

// SettingsNested runs per-group field-type checks on a settings tree.
func SettingsNested(settings map[string]interface{}) []string {
	var errs []string

	for group, value := range settings {
		if !sanitize.KnownSettingsGroup(group) {
			errs = append(errs, fmt.Sprintf("unknown settings group: %s", group))
			continue
		}
		fields, ok := value.(map[string]interface{})
		if !ok {
			errs = append(errs, fmt.Sprintf("settings.%s must be an object", group))
			continue
		}
		if group == "analytics" {
			errs = append(errs, validateAnalyticsSettings(fields)...)
		}
	}

	return errs
}

func validateAnalyticsSettings(fields map[string]interface{}) []string {
	var errs []string

	if raw, present := fields["retention"]; present {
		s, ok := raw.(string)
		if !ok || !isAllowedRetention(s) {
			errs = append(errs, "analytics.retention must be one of forever, 30, 90, 180, 365, custom")
		}
	}

	if raw, present := fields["retention_custom_days"]; present {
		days, ok := toInt(raw)
		if !ok || days < 1 || days > 3650 {
			errs = append(errs, "analytics.retention_custom_days must be an integer between 1 and 3650")
		}
	}

	return errs
}

func isAllowedRetention(s string) bool {
	for _, allowed := range sanitize.RetentionValues {
		if s == allowed {
			return true
		}
	}
	return false
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		if val == float64(int(val)) {
			return int(val), true
		}
	}
	return 0, false
}
