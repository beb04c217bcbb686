package main

import (
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"ctamanager/admin"
	"ctamanager/analytics"
	"ctamanager/api"
	"ctamanager/cache"
	"ctamanager/common"
	"ctamanager/config"
	"ctamanager/cta"
	"ctamanager/data"
	"ctamanager/database"
	"ctamanager/demo"
	"ctamanager/exportimport"
	"ctamanager/icons"
	"ctamanager/logger"
	"ctamanager/models"
	"ctamanager/notifications"
	"ctamanager/onboarding"
	"ctamanager/settings"
	"ctamanager/site"
	"ctamanager/support"
	"ctamanager/track"
)

func main() {
	logger.Initialize()
	cfg := config.MustLoadConfig()

	db := common.ConnectDb(cfg.Database.Path)
	if db == nil {
		log.Fatal().Msg("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	gate := common.NewFeatureGate(cfg.Features.Pro, cfg.Features.CTALimit)

	store := cache.NewStore(cfg.Cache.Enabled, cfg.Cache.MaxSizeMB, time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	ctaRepo := cta.NewRepository(db)
	eventRepo := analytics.NewRepository(db)
	settingsRepo := settings.NewRepository(db, gate)
	notificationRepo := notifications.NewRepository(db)
	iconRepo := icons.NewRepository(db)

	facade := data.NewFacade(ctaRepo, eventRepo, settingsRepo, gate, store)

	router := gin.Default()

	if cfg.WebServer.SessionSecret == "" {
		log.Fatal().Msg("webserver.session_secret not set")
	}
	sessionStore := cookie.NewStore([]byte(cfg.WebServer.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})
	router.Use(sessions.Sessions("ctamanager-session", sessionStore))

	seeder := demo.NewSeeder(db, ctaRepo, eventRepo, settingsRepo, notificationRepo, facade, gate, cfg.Demo.DataPath)

	modules := []interface{ RegisterRoutes(*gin.Engine) }{
		admin.NewAdminModule(db, ctaRepo, facade, gate, settingsRepo),
		api.NewAnalyticsAPIModule(eventRepo, facade, gate),
		site.NewSiteModule(ctaRepo, store),
		track.NewTrackModule(eventRepo, ctaRepo, settingsRepo),
		exportimport.NewExportImportModule(facade, gate),
		demo.NewDemoModule(seeder),
		onboarding.NewOnboardingModule(onboarding.NewService(settingsRepo, ctaRepo)),
		notifications.NewNotificationsModule(notificationRepo),
		icons.NewIconsModule(iconRepo, facade, gate),
		support.NewSupportModule(support.NewClient(cfg.Support), cfg.Support),
	}
	for _, module := range modules {
		module.RegisterRoutes(router)
	}

	provisionAdminUser(db)

	log.Info().Str("port", cfg.WebServer.Port).Bool("pro", gate.IsPro()).Msg("Starting server")
	if err := router.Run(":" + cfg.WebServer.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// provisionAdminUser creates the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when no users exist yet.
func provisionAdminUser(db *gorm.DB) {
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count > 0 {
		return
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn().Msg("No users exist and ADMIN_EMAIL/ADMIN_PASSWORD not set; admin login unavailable")
		return
	}

	hash, err := admin.HashPassword(password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash admin password")
		return
	}
	if err := db.Create(&models.User{Email: email, PasswordHash: hash}).Error; err != nil {
		log.Error().Err(err).Msg("Failed to create admin user")
		return
	}
	log.Info().Str("email", email).Msg("Provisioned admin user")
}
