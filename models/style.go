package models

import "encoding/json"

// DefaultStyle returns the hard-coded styling defaults applied to every CTA
// when a field is absent from its stored style document.
func DefaultStyle() map[string]interface{} {
	return map[string]interface{}{
		"background_color":     "#2271b1",
		"background_gradient":  "",
		"text_color":           "#ffffff",
		"hover_background":     "#135e96",
		"hover_text_color":     "#ffffff",
		"border_color":         "#2271b1",
		"border_width":         1,
		"border_style":         "solid",
		"border_radius":        4,
		"padding_top":          12,
		"padding_right":        24,
		"padding_bottom":       12,
		"padding_left":         24,
		"font_family":          "inherit",
		"font_size":            16,
		"font_weight":          "600",
		"letter_spacing":       0,
		"text_transform":       "none",
		"icon_size":            20,
		"icon_color":           "#ffffff",
		"icon_position":        "left",
		"icon_spacing":         8,
		"shadow_color":         "rgba(0,0,0,0.15)",
		"shadow_blur":          6,
		"shadow_offset_x":      0,
		"shadow_offset_y":      2,
		"position":             "bottom_right",
		"offset_x":             24,
		"offset_y":             24,
		"z_index":              9999,
		"max_width":            320,
		"label_visible":        true,
	}
}

// ApplyStyleDefaults merges a partial style document over the defaults.
// Unknown keys are dropped so the stored document stays canonical.
func ApplyStyleDefaults(style map[string]interface{}) map[string]interface{} {
	merged := DefaultStyle()
	if style == nil {
		return merged
	}
	for key, value := range style {
		if _, known := merged[key]; known {
			merged[key] = value
		}
	}
	return merged
}

// StyleFromJSON decodes a stored style document and fills in defaults.
// A broken or empty document yields the full default set.
func StyleFromJSON(raw string) map[string]interface{} {
	if raw == "" {
		return DefaultStyle()
	}
	var style map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &style); err != nil {
		return DefaultStyle()
	}
	return ApplyStyleDefaults(style)
}

// StyleToJSON encodes a style document after default merging.
func StyleToJSON(style map[string]interface{}) string {
	raw, err := json.Marshal(ApplyStyleDefaults(style))
	if err != nil {
		return ""
	}
	return string(raw)
}
