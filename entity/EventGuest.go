package entity

import (
	"gorm.io/gorm"
)

type EventGuest struct {
	gorm.Model
	EventID uint  `gorm:"index:uniq_event_guest,unique" json:"eventId"`
	Event   Event `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	UserID uint `gorm:"index:uniq_event_guest,unique" json:"userId"`
	User   User `json:"-"`
}

func (EventGuest) TableName() string { return "event_guests" }
