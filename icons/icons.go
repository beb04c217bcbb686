// Package icons is the Pro custom-icon library: uploaded SVGs, sanitized
// and stored under uuid ids. CTAs reference icons by id; deleting an icon
// leaves those references dangling on purpose (the render layer falls back
// to no icon).
package icons

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"ctamanager/common"
	"ctamanager/data"
	"ctamanager/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetAll() []models.CustomIcon {
	var rows []models.CustomIcon
	r.db.Order("created_at DESC").Find(&rows)
	return rows
}

func (r *Repository) GetByID(id string) (*models.CustomIcon, error) {
	var row models.CustomIcon
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(row *models.CustomIcon) error {
	return r.db.Create(row).Error
}

func (r *Repository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.CustomIcon{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type IconsModule struct {
	repo   *Repository
	facade *data.Facade
	gate   *common.FeatureGate
}

func NewIconsModule(repo *Repository, facade *data.Facade, gate *common.FeatureGate) *IconsModule {
	return &IconsModule{repo: repo, facade: facade, gate: gate}
}

func (m *IconsModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/admin/icons")
	group.Use(common.RequireAuthJSON, m.requirePro)
	{
		group.GET("", m.list)

		mutating := group.Group("")
		mutating.Use(common.RequireNonce)
		{
			mutating.POST("", m.upload)
			mutating.DELETE("/:id", m.delete)
		}
	}
}

func (m *IconsModule) requirePro(c *gin.Context) {
	if !m.gate.AllowCustomIcons() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Custom icons require Pro"})
		return
	}
	c.Next()
}

func (m *IconsModule) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"icons": m.repo.GetAll()})
}

func (m *IconsModule) upload(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
		SVG  string `json:"svg"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Icon name is required"})
		return
	}

	cleaned, ok := m.facade.SanitizeSVG(body.SVG)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid SVG document"})
		return
	}

	row := &models.CustomIcon{
		ID:        uuid.NewString(),
		Name:      name,
		SVG:       cleaned,
		CreatedAt: time.Now(),
	}
	if err := m.repo.Create(row); err != nil {
		log.Error().Err(err).Msg("Error saving custom icon")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save icon"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "icon": row})
}

func (m *IconsModule) delete(c *gin.Context) {
	err := m.repo.Delete(c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Icon not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Error deleting custom icon")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete icon"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
