package common

import (
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectDb opens the sqlite database at the given path. Returns nil on
// failure; callers treat a nil handle as a fatal bootstrap error.
func ConnectDb(dbFile string) *gorm.DB {
	if dbFile == "" {
		log.Error().Msg("database path not set")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error().Err(err).Str("path", dbFile).Msg("error opening sqlite db")
		return nil
	}

	log.Info().Str("path", dbFile).Msg("opened sqlite db")
	return db
}
