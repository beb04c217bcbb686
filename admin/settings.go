package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctamanager/sanitize"
	"ctamanager/validate"
)

func (a *AdminModule) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.settings.GetAll()})
}

// saveSettings replaces the whole settings document with the submitted tree.
// Rejected trees are never partially applied.
func (a *AdminModule) saveSettings(c *gin.Context) {
	var tree map[string]interface{}
	if err := c.ShouldBindJSON(&tree); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings payload"})
		return
	}

	if errs := validate.SettingsNested(tree); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "errors": errs})
		return
	}

	cleaned := sanitize.SettingsNested(tree)
	cleaned = a.settings.ApplySettingsRules(cleaned)

	if err := a.settings.ReplaceAll(cleaned); err != nil {
		log.Error().Err(err).Msg("Error saving settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	// a shrunk retention window takes effect immediately
	if removed, err := a.facade.PurgeExpiredEvents(); err != nil {
		log.Error().Err(err).Msg("Error purging expired events")
	} else if removed > 0 {
		log.Info().Int64("removed", removed).Msg("retention purge after settings save")
	}

	a.facade.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": a.settings.GetAll()})
}

// resetSettings drops every stored group, returning the install to defaults.
func (a *AdminModule) resetSettings(c *gin.Context) {
	if err := a.settings.ReplaceAll(map[string]interface{}{}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset settings"})
		return
	}

	a.facade.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AdminModule) toggleDebug(c *gin.Context) {
	enabled := a.settings.DebugEnabled()
	debug := a.settings.Get("debug")
	debug["enabled"] = !enabled

	if err := a.settings.Set("debug", debug); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle debug mode"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "enabled": !enabled})
}
