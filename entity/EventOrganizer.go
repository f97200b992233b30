package entity

import (
	"gorm.io/gorm"
)

type EventOrganizer struct {
	gorm.Model
	EventID uint  `gorm:"index:uniq_event_organizer,unique" json:"eventId"`
	Event   Event `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	UserID uint `gorm:"index:uniq_event_organizer,unique" json:"userId"`
	User   User `json:"-"`
}

func (EventOrganizer) TableName() string { return "event_organizers" }
