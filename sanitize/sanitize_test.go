package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"publish", "publish"},
		{"schedule", "schedule"},
		{"scheduled", "schedule"},
		{"  Archived ", "archived"},
		{"trash", "trash"},
		{"draft", "draft"},
		{"bogus", "draft"},
		{"", "draft"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Status(tt.input))
		})
	}
}

func TestType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"phone", "phone"},
		{"email", "email"},
		{"popup", "popup"},
		{"slide_in", "slide_in"},
		{"slide-in", "slide_in"},
		{"link", "link"},
		{"whatever", "link"},
		{"", "link"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Type(tt.input))
		})
	}
}

func TestLayout(t *testing.T) {
	assert.Equal(t, "card", Layout("card"))
	assert.Equal(t, "button", Layout("button"))
	assert.Equal(t, "button", Layout("banner"))
	assert.Equal(t, "button", Layout(""))
}

func TestVisibility(t *testing.T) {
	assert.Equal(t, "desktop_only", Visibility("desktop_only"))
	assert.Equal(t, "mobile_only", Visibility("mobile_only"))
	assert.Equal(t, "all_devices", Visibility("all_devices"))
	assert.Equal(t, "all_devices", Visibility("tablet_only"))
	assert.Equal(t, "all_devices", Visibility(""))
}

func TestScheduleType(t *testing.T) {
	assert.Equal(t, "business_hours", ScheduleType("business_hours"))
	assert.Equal(t, "date_range", ScheduleType("date_range"))
	assert.Equal(t, "date_range", ScheduleType("lunar_cycle"))
}

func TestScheduleDate(t *testing.T) {
	assert.Equal(t, "2026-03-15", ScheduleDate("2026-03-15"))
	assert.Equal(t, "2026-03-15", ScheduleDate("2026/03/15"))
	assert.Equal(t, "2026-03-15", ScheduleDate("15/03/2026"))
	assert.Equal(t, "2026-03-15", ScheduleDate("2026-03-15 09:30:00"))
	assert.Equal(t, "", ScheduleDate("next tuesday"))
	assert.Equal(t, "", ScheduleDate("2026-13-45"))
	assert.Equal(t, "", ScheduleDate(""))
}

func TestPhoneNumber(t *testing.T) {
	assert.Equal(t, "+1 (555) 123-4567", PhoneNumber("+1 (555) 123-4567"))
	assert.Equal(t, "5551234567", PhoneNumber("call 5551234567 now"))
	assert.Equal(t, "555.123.4567", PhoneNumber("555.123.4567"))
	assert.Equal(t, "*67#", PhoneNumber("*67#"))
	assert.Equal(t, "", PhoneNumber("no digits here"))
}

func TestSettingsNested(t *testing.T) {
	raw := map[string]interface{}{
		"analytics": map[string]interface{}{
			"enabled":               "1",
			"retention":             "90",
			"retention_custom_days": float64(45),
			"made_up_key":           "x",
		},
		"custom_css": map[string]interface{}{
			"enabled": false,
			"css":     ".cta { color: red; }",
		},
		"unknown_group": map[string]interface{}{
			"anything": true,
		},
		"debug": "not-a-map",
	}

	out := SettingsNested(raw)

	analytics := out["analytics"].(map[string]interface{})
	assert.Equal(t, true, analytics["enabled"])
	assert.Equal(t, "90", analytics["retention"])
	assert.Equal(t, 45, analytics["retention_custom_days"])
	assert.NotContains(t, analytics, "made_up_key")

	css := out["custom_css"].(map[string]interface{})
	assert.Equal(t, false, css["enabled"])
	assert.Equal(t, ".cta { color: red; }", css["css"])

	assert.NotContains(t, out, "unknown_group")
	assert.NotContains(t, out, "debug")
}

func TestSettingsNested_InvalidRetention(t *testing.T) {
	out := SettingsNested(map[string]interface{}{
		"analytics": map[string]interface{}{
			"retention":             "42",
			"retention_custom_days": float64(-3),
		},
	})

	analytics := out["analytics"].(map[string]interface{})
	assert.NotContains(t, analytics, "retention")
	assert.NotContains(t, analytics, "retention_custom_days")
}

func TestSettingsNested_OnboardingSteps(t *testing.T) {
	out := SettingsNested(map[string]interface{}{
		"onboarding": map[string]interface{}{
			"completed_steps": []interface{}{float64(1), float64(3), float64(9), "two"},
			"dismissed":       true,
		},
	})

	onboarding := out["onboarding"].(map[string]interface{})
	assert.Equal(t, []int{1, 3}, onboarding["completed_steps"])
	assert.Equal(t, true, onboarding["dismissed"])
}
