package common

import "ctamanager/models"

// FeatureGate is the single free/Pro policy object injected into every
// controller. Client payloads are downgraded server-side regardless of what
// the UI submitted, so a tampered request can never unlock a Pro field.
type FeatureGate struct {
	pro      bool
	ctaLimit int // free-tier ceiling on non-demo CTAs
}

func NewFeatureGate(pro bool, ctaLimit int) *FeatureGate {
	if ctaLimit <= 0 {
		ctaLimit = 3
	}
	return &FeatureGate{pro: pro, ctaLimit: ctaLimit}
}

func (g *FeatureGate) IsPro() bool {
	return g.pro
}

// CTALimit returns the maximum number of non-demo CTAs, or 0 for unlimited.
func (g *FeatureGate) CTALimit() int {
	if g.pro {
		return 0
	}
	return g.ctaLimit
}

// AllowType downgrades Pro-only CTA types to the free default.
func (g *FeatureGate) AllowType(ctaType string) string {
	if g.pro {
		return ctaType
	}
	switch ctaType {
	case models.TypePopup, models.TypeSlideIn:
		return models.TypeLink
	}
	return ctaType
}

// AllowLayout downgrades the card layout to button on free installs.
func (g *FeatureGate) AllowLayout(layout string) string {
	if !g.pro && layout == models.LayoutCard {
		return models.LayoutButton
	}
	return layout
}

// AllowVisibility forces all_devices on free installs.
func (g *FeatureGate) AllowVisibility(visibility string) string {
	if !g.pro && visibility != models.VisibilityAll {
		return models.VisibilityAll
	}
	return visibility
}

// AllowScheduleType downgrades business_hours scheduling to date_range.
func (g *FeatureGate) AllowScheduleType(scheduleType string) string {
	if !g.pro && scheduleType == models.ScheduleBusinessHours {
		return models.ScheduleDateRange
	}
	return scheduleType
}

// AllowAnimation clears animation fields on free installs.
func (g *FeatureGate) AllowAnimation(animation string) string {
	if !g.pro {
		return ""
	}
	return animation
}

// AllowIcon keeps only the built-in default icon on free installs.
func (g *FeatureGate) AllowIcon(icon string) string {
	if !g.pro {
		return ""
	}
	return icon
}

// AllowMergeImport reports whether additive import mode is available.
func (g *FeatureGate) AllowMergeImport() bool {
	return g.pro
}

// AllowCustomIcons reports whether the custom icon library is available.
func (g *FeatureGate) AllowCustomIcons() bool {
	return g.pro
}

// ExposeEventIdentity reports whether event IP/user-agent may be serialized
// to clients.
func (g *FeatureGate) ExposeEventIdentity() bool {
	return g.pro
}

// ApplyToCTA enforces the whole free-tier policy on one record in place.
func (g *FeatureGate) ApplyToCTA(c *models.CTA) {
	c.Type = g.AllowType(c.Type)
	c.Layout = g.AllowLayout(c.Layout)
	c.Visibility = g.AllowVisibility(c.Visibility)
	c.ScheduleType = g.AllowScheduleType(c.ScheduleType)
	c.ButtonAnimation = g.AllowAnimation(c.ButtonAnimation)
	c.IconAnimation = g.AllowAnimation(c.IconAnimation)
	c.Icon = g.AllowIcon(c.Icon)
}
