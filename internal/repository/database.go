package repository

import (
	"github.com/orirot10/GIVEIT-sub000/internal/config"
	"github.com/orirot10/GIVEIT-sub000/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	// TranslateError turns unique violations into gorm.ErrDuplicatedKey,
	// which the conversation open path relies on.
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the messaging tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PushEndpoint{},
		&models.Conversation{},
		&models.Message{},
	)
}
