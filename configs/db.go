package configs

import (
	"backend/entity"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Transaction{},
		&entity.Promotion{},
		&entity.UserPromotion{},
		&entity.TransactionPromotion{},
		&entity.Event{},
		&entity.EventOrganizer{},
		&entity.EventGuest{},
	)
}
