// Package exportimport handles the snapshot/restore tooling: export
// download, import dry-run validation, and the import itself.
package exportimport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctamanager/common"
	"ctamanager/data"
	"ctamanager/validate"
)

type ExportImportModule struct {
	facade *data.Facade
	gate   *common.FeatureGate
}

func NewExportImportModule(facade *data.Facade, gate *common.FeatureGate) *ExportImportModule {
	return &ExportImportModule{facade: facade, gate: gate}
}

func (m *ExportImportModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/admin")
	group.Use(common.RequireAuthJSON)
	{
		group.GET("/export", m.export)

		mutating := group.Group("")
		mutating.Use(common.RequireNonce)
		{
			mutating.POST("/import/validate", m.validateImport)
			mutating.POST("/import", m.importData)
		}
	}
}

func (m *ExportImportModule) export(c *gin.Context) {
	envelope := m.facade.ExportAll()

	filename := fmt.Sprintf("cta-export-%s.json", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, envelope)
}

// validateImport is the dry-run: it runs the same schema checks as the real
// import and reports errors without touching storage.
func (m *ExportImportModule) validateImport(c *gin.Context) {
	payload, ok := m.readPayload(c)
	if !ok {
		return
	}

	if errs := validate.ImportData(payload); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "errors": errs})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (m *ExportImportModule) importData(c *gin.Context) {
	payload, ok := m.readPayload(c)
	if !ok {
		return
	}

	if errs := validate.ImportData(payload); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "errors": errs})
		return
	}

	merge := c.Query("merge") == "1"
	if merge && !m.gate.AllowMergeImport() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Merge import requires Pro"})
		return
	}

	result, err := m.facade.ImportAll(payload, merge, false)
	if err != nil {
		log.Error().Err(err).Msg("Error importing data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "imported": result})
}

func (m *ExportImportModule) readPayload(c *gin.Context) (map[string]interface{}, bool) {
	var payload map[string]interface{}
	if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return nil, false
	}
	return payload, true
}
