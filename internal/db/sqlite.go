package db

import (
	"github.com/formzs/poe-to-gpt/internal/db/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the SQLite database and runs migrations. The store is the
// single source of truth for account state; a failure here is fatal for
// the caller.
func InitDB(dbPath string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(&models.User{}); err != nil {
		return nil, err
	}
	return database, nil
}
