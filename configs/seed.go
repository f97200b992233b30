package configs

import (
	"errors"
	"log"

	"backend/entity"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedSuperuser creates the bootstrap superuser from the environment. A
// no-op when the account already exists or the env vars are unset.
func SeedSuperuser(db *gorm.DB, cfg *Config) error {
	if cfg.SuperuserUtorid == "" || cfg.SuperuserEmail == "" || cfg.SuperuserPassword == "" {
		return nil
	}

	var existing entity.User
	err := db.Where("utorid = ?", cfg.SuperuserUtorid).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SuperuserPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := entity.User{
		Utorid:   cfg.SuperuserUtorid,
		Name:     "Superuser",
		Email:    cfg.SuperuserEmail,
		Password: string(hash),
		Role:     entity.RoleSuperuser,
		Verified: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	log.Println("seeded superuser", cfg.SuperuserUtorid)
	return nil
}
