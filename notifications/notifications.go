// Package notifications stores per-user notices: list with rendered
// markdown bodies, read-state tracking, deletion, and demo purge.
package notifications

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"

	"ctamanager/common"
	"ctamanager/models"
)

const readStateKey = "cta_notifications_read"

// Notification bodies are markdown; rendered without raw-HTML passthrough
// since demo seeds and remote notices are not trusted content.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetForUser(userID int) []models.Notification {
	var rows []models.Notification
	r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&rows)
	return rows
}

func (r *Repository) GetByID(id uint, userID int) (*models.Notification, error) {
	var row models.Notification
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(row *models.Notification) error {
	return r.db.Create(row).Error
}

func (r *Repository) Delete(id uint, userID int) error {
	return r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{}).Error
}

// DeleteDemo removes every seeded notification for the user; demo rows are
// marked by the "demo_" type prefix.
func (r *Repository) DeleteDemo(userID int) (int64, error) {
	result := r.db.Where("user_id = ? AND type LIKE ?", userID, "demo_%").Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// ReadIDs returns the ids the user has already seen.
func (r *Repository) ReadIDs(userID int) []uint {
	var meta models.UserMeta
	err := r.db.Where("user_id = ? AND key = ?", userID, readStateKey).First(&meta).Error
	if err != nil {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(meta.Value), &ids); err != nil {
		return nil
	}
	return ids
}

// MarkRead merges the given ids into the stored read-state.
func (r *Repository) MarkRead(userID int, ids []uint) error {
	seen := map[uint]bool{}
	for _, id := range r.ReadIDs(userID) {
		seen[id] = true
	}
	for _, id := range ids {
		seen[id] = true
	}

	merged := make([]uint, 0, len(seen))
	for id := range seen {
		merged = append(merged, id)
	}
	raw, _ := json.Marshal(merged)

	var meta models.UserMeta
	err := r.db.Where("user_id = ? AND key = ?", userID, readStateKey).First(&meta).Error
	if err != nil {
		return r.db.Create(&models.UserMeta{UserID: userID, Key: readStateKey, Value: string(raw)}).Error
	}
	meta.Value = string(raw)
	return r.db.Save(&meta).Error
}

type NotificationsModule struct {
	repo *Repository
}

func NewNotificationsModule(repo *Repository) *NotificationsModule {
	return &NotificationsModule{repo: repo}
}

func (m *NotificationsModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/admin/notifications")
	group.Use(common.RequireAuthJSON)
	{
		group.GET("", m.list)

		mutating := group.Group("")
		mutating.Use(common.RequireNonce)
		{
			mutating.POST("/read", m.markRead)
			mutating.DELETE("/:id", m.delete)
		}
	}
}

type notificationView struct {
	ID        uint                     `json:"id"`
	Type      string                   `json:"type"`
	Title     string                   `json:"title"`
	HTML      string                   `json:"html"`
	Icon      string                   `json:"icon"`
	Actions   []map[string]interface{} `json:"actions"`
	Read      bool                     `json:"read"`
	Deletable bool                     `json:"deletable"`
	CreatedAt string                   `json:"created_at"`
}

func (m *NotificationsModule) list(c *gin.Context) {
	userID := common.CurrentUserID(c)

	seen := map[uint]bool{}
	for _, id := range m.repo.ReadIDs(userID) {
		seen[id] = true
	}

	views := []notificationView{}
	for _, row := range m.repo.GetForUser(userID) {
		views = append(views, notificationView{
			ID:        row.ID,
			Type:      row.Type,
			Title:     row.Title,
			HTML:      renderMarkdown(row.Message),
			Icon:      row.Icon,
			Actions:   parseActions(row.ActionsJSON),
			Read:      seen[row.ID],
			Deletable: models.IsNotificationDeletable(row.Type),
			CreatedAt: row.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"notifications": views})
}

func (m *NotificationsModule) markRead(c *gin.Context) {
	userID := common.CurrentUserID(c)

	var body struct {
		IDs []uint `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No notification ids given"})
		return
	}

	if err := m.repo.MarkRead(userID, body.IDs); err != nil {
		log.Error().Err(err).Msg("Error saving notification read-state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save read-state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (m *NotificationsModule) delete(c *gin.Context) {
	userID := common.CurrentUserID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	row, err := m.repo.GetByID(uint(id), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if !models.IsNotificationDeletable(row.Type) {
		c.JSON(http.StatusForbidden, gin.H{"error": "This notification cannot be removed"})
		return
	}

	if err := m.repo.Delete(row.ID, userID); err != nil {
		log.Error().Err(err).Msg("Error deleting notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func renderMarkdown(message string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(message), &buf); err != nil {
		return message
	}
	return strings.TrimSpace(buf.String())
}

func parseActions(raw string) []map[string]interface{} {
	actions := []map[string]interface{}{}
	if raw == "" {
		return actions
	}
	_ = json.Unmarshal([]byte(raw), &actions)
	return actions
}
