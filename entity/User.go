package entity

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Utorid   string  `gorm:"size:8;uniqueIndex;not null" json:"utorid"`
	Name     string  `gorm:"size:50;not null" json:"name"`
	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	Password string  `json:"-"`
	Birthday *string `json:"birthday,omitempty"`
	Role     Role    `gorm:"not null;default:regular" json:"role"`

	// Point balance. Mutated only together with the Transaction record that
	// caused the change, inside the same DB transaction.
	Points int `gorm:"not null;default:0" json:"points"`

	Verified   bool `gorm:"not null;default:false" json:"verified"`
	Suspicious bool `gorm:"not null;default:false" json:"suspicious"`

	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	ResetToken     *string    `gorm:"index" json:"-"`
	ResetExpiresAt *time.Time `json:"-"`

	Transactions   []Transaction   `gorm:"foreignKey:UserID" json:"-"`
	UsedPromotions []UserPromotion `json:"-"`
}
