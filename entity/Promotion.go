package entity

import (
	"time"

	"gorm.io/gorm"
)

type PromotionType string

const (
	PromotionAutomatic PromotionType = "automatic"
	PromotionOneTime   PromotionType = "onetime"
)

type Promotion struct {
	gorm.Model
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description"`
	Type        PromotionType `gorm:"size:16;not null" json:"type"`

	// Active window. StartTime must not be in the past at creation; both
	// become immutable once the window has opened.
	StartTime time.Time `gorm:"not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`

	MinSpending *float64 `json:"minSpending,omitempty"`
	Rate        *float64 `json:"rate,omitempty"`
	Points      *int     `json:"points,omitempty"`

	UserPromotions []UserPromotion `json:"-"`
}

func (p *Promotion) ActiveAt(t time.Time) bool {
	return !p.StartTime.After(t) && !p.EndTime.Before(t)
}
