// Package admin carries the authenticated management surface: login, the
// CTA manager (create/update/trash/restore), settings persistence, and the
// dashboard stats feed. Mutating endpoints check, in order: session, nonce,
// input, persistence — failures map to 403/403/400/500.
package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/data"
	"ctamanager/models"
	"ctamanager/sanitize"
	"ctamanager/settings"
)

type AdminModule struct {
	db       *gorm.DB
	ctas     *cta.Repository
	facade   *data.Facade
	gate     *common.FeatureGate
	settings *settings.Repository
}

func NewAdminModule(db *gorm.DB, ctas *cta.Repository, facade *data.Facade, gate *common.FeatureGate, settingsRepo *settings.Repository) *AdminModule {
	return &AdminModule{db: db, ctas: ctas, facade: facade, gate: gate, settings: settingsRepo}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/admin/login", a.loginPage)
	router.POST("/admin/login", a.loginPost)
	router.GET("/admin/logout", a.logout)

	group := router.Group("/admin")
	group.Use(a.requireAuth)
	{
		group.GET("", a.home)
		group.GET("/nonce", a.nonce)
		group.GET("/ctas", a.listCTAs)
		group.GET("/ctas/:id", a.getCTA)
		group.GET("/dashboard-stats", a.dashboardStats)
		group.GET("/settings", a.getSettings)

		mutating := group.Group("")
		mutating.Use(common.RequireNonce)
		{
			mutating.POST("/cta/save", a.createCTA)
			mutating.POST("/cta/:id", a.updateCTA)
			mutating.DELETE("/cta/:id", a.deleteCTA)
			mutating.POST("/cta/:id/restore", a.restoreCTA)
			mutating.POST("/trash/empty", a.emptyTrash)
			mutating.POST("/settings", a.saveSettings)
			mutating.POST("/settings/reset", a.resetSettings)
			mutating.POST("/debug/toggle", a.toggleDebug)
		}
	}
}

// requireAuth guards admin screens; unauthenticated browsers are sent to the
// login page rather than getting the API's bare 403.
func (a *AdminModule) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get(common.SessionUserKey)

	if userID == nil {
		c.Redirect(http.StatusFound, "/admin/login")
		c.Abort()
		return
	}

	c.Set(common.SessionUserKey, userID)
	c.Next()
}

// loginPage serves the minimal login form that the auth redirects land on.
func (a *AdminModule) loginPage(c *gin.Context) {
	page := loginFormHTML
	if c.Query("message") == "invalid_credentials" {
		page = strings.Replace(page, "<!--message-->", "<p>Invalid email or password.</p>", 1)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

const loginFormHTML = `<!DOCTYPE html>
<html>
<head><title>CTA Manager Login</title></head>
<body>
<h1>CTA Manager</h1>
<!--message-->
<form method="post" action="/admin/login">
<label>Email <input type="email" name="email" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Log in</button>
</form>
</body>
</html>`

// home is the post-login landing screen.
func (a *AdminModule) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": a.facade.GetDashboardStats(),
	})
}

func (a *AdminModule) loginPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.Redirect(http.StatusFound, "/admin/login?message=invalid_credentials")
		return
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		c.Redirect(http.StatusFound, "/admin/login?message=invalid_credentials")
		return
	}

	session := sessions.Default(c)
	session.Set(common.SessionUserKey, user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/admin")
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/admin/login")
}

// nonce hands the per-session CSRF token to the admin UI.
func (a *AdminModule) nonce(c *gin.Context) {
	token, err := common.EnsureNonce(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": token})
}

func (a *AdminModule) listCTAs(c *gin.Context) {
	filters := cta.Filters{
		Status:         sanitizeStatusFilter(c.Query("status")),
		ExcludeDemo:    c.Query("exclude_demo") == "1",
		IncludeDeleted: c.Query("include_deleted") == "1",
		OrderBy:        c.Query("order_by"),
	}
	if raw := c.Query("is_enabled"); raw != "" {
		enabled := raw == "1"
		filters.Enabled = &enabled
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  a.ctas.GetAll(filters),
		"count": a.facade.GetCTACount(),
		"total": a.facade.GetTotalCTACount(),
	})
}

// sanitizeStatusFilter keeps only real lifecycle states; "" means no filter,
// so the sanitizer's draft fallback would be wrong here.
func sanitizeStatusFilter(raw string) string {
	if raw == "" {
		return ""
	}
	return sanitize.Status(raw)
}

func (a *AdminModule) getCTA(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	record := a.ctas.GetByID(id, true)
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "CTA not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record, "style": models.StyleFromJSON(record.StyleJSON)})
}

func (a *AdminModule) dashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.facade.GetDashboardStats()})
}

// ctaFromForm builds a sanitized, gate-enforced record from the manager
// form. All Pro downgrades happen here, server-side.
func (a *AdminModule) ctaFromForm(c *gin.Context) *models.CTA {
	record := &models.CTA{
		Name:            c.PostForm("name"),
		Status:          sanitize.Status(c.PostForm("status")),
		Type:            sanitize.Type(c.PostForm("type")),
		Layout:          sanitize.Layout(c.PostForm("layout")),
		Visibility:      sanitize.Visibility(c.PostForm("visibility")),
		ScheduleType:    sanitize.ScheduleType(c.PostForm("schedule_type")),
		ScheduleStart:   sanitize.ScheduleDate(c.PostForm("schedule_start")),
		ScheduleEnd:     sanitize.ScheduleDate(c.PostForm("schedule_end")),
		PhoneNumber:     sanitize.PhoneNumber(c.PostForm("phone_number")),
		LinkURL:         c.PostForm("link_url"),
		EmailAddress:    c.PostForm("email_address"),
		Icon:            c.PostForm("icon"),
		ButtonAnimation: c.PostForm("button_animation"),
		IconAnimation:   c.PostForm("icon_animation"),
		Enabled:         c.DefaultPostForm("enabled", "1") == "1",
	}

	style := map[string]interface{}{}
	for key := range models.DefaultStyle() {
		if value, ok := c.GetPostForm("style_" + key); ok {
			style[key] = value
		}
	}
	record.StyleJSON = models.StyleToJSON(style)

	a.gate.ApplyToCTA(record)
	return record
}

// validateSchedule returns a redirect message code, or "" when valid.
func validateSchedule(record *models.CTA) string {
	if record.Status != models.StatusSchedule || record.ScheduleType != models.ScheduleDateRange {
		return ""
	}
	if record.ScheduleStart == "" || record.ScheduleEnd == "" {
		return "missing_schedule_dates"
	}
	if record.ScheduleStart > record.ScheduleEnd {
		return "invalid_schedule_range"
	}
	return ""
}

func (a *AdminModule) createCTA(c *gin.Context) {
	record := a.ctaFromForm(c)

	if record.Name == "" {
		c.Redirect(http.StatusFound, "/admin/ctas?message=missing_name")
		return
	}
	if msg := validateSchedule(record); msg != "" {
		c.Redirect(http.StatusFound, "/admin/ctas?message="+msg)
		return
	}
	if !a.facade.CanAddCTA() {
		c.Redirect(http.StatusFound, "/admin/ctas?message=cta_limit_reached")
		return
	}

	data.ClearScheduleIfUnused(record)
	if err := a.ctas.Create(record); err != nil {
		log.Error().Err(err).Msg("Error creating CTA")
		c.Redirect(http.StatusFound, "/admin/ctas?message=save_failed")
		return
	}

	a.facade.Cache().Clear()
	c.Redirect(http.StatusFound, "/admin/ctas?message=created")
}

func (a *AdminModule) updateCTA(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Redirect(http.StatusFound, "/admin/ctas?message=invalid_id")
		return
	}

	existing := a.ctas.GetByID(id, false)
	if existing == nil {
		c.Redirect(http.StatusFound, "/admin/ctas?message=not_found")
		return
	}

	record := a.ctaFromForm(c)
	if record.Name == "" {
		c.Redirect(http.StatusFound, "/admin/ctas?message=missing_name")
		return
	}
	if msg := validateSchedule(record); msg != "" {
		c.Redirect(http.StatusFound, "/admin/ctas?message="+msg)
		return
	}

	// full replace of configuration fields; identity and demo flag survive
	record.ID = existing.ID
	record.IsDemo = existing.IsDemo
	record.CreatedAt = existing.CreatedAt

	data.ClearScheduleIfUnused(record)
	if err := a.ctas.Update(record); err != nil {
		log.Error().Err(err).Msg("Error updating CTA")
		c.Redirect(http.StatusFound, "/admin/ctas?message=save_failed")
		return
	}

	a.facade.Cache().Clear()
	c.Redirect(http.StatusFound, "/admin/ctas?message=updated")
}

func (a *AdminModule) deleteCTA(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	permanent := c.Query("permanent") == "1"
	if err := a.ctas.Delete(id, permanent); err != nil {
		if cta.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "CTA not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete CTA"})
		return
	}

	a.facade.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "permanent": permanent})
}

func (a *AdminModule) restoreCTA(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return
	}

	if err := a.ctas.Restore(id); err != nil {
		if cta.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "CTA not found in trash"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to restore CTA"})
		return
	}

	a.facade.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AdminModule) emptyTrash(c *gin.Context) {
	removed, err := a.ctas.EmptyTrash()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to empty trash"})
		return
	}

	a.facade.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "removed": removed})
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HashPassword is used by user provisioning at bootstrap.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}
