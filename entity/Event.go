package entity

import (
	"time"

	"gorm.io/gorm"
)

type Event struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`

	StartTime time.Time `gorm:"not null" json:"startTime"`
	EndTime   time.Time `gorm:"not null" json:"endTime"`

	// Nil capacity means unlimited.
	Capacity *int `json:"capacity"`

	// PointsRemain + PointsAwarded is the total allocation; every award
	// moves points from one counter to the other in the same update.
	PointsRemain  int `gorm:"not null;default:0" json:"pointsRemain"`
	PointsAwarded int `gorm:"not null;default:0" json:"pointsAwarded"`

	Published bool `gorm:"not null;default:false" json:"published"`

	Organizers []EventOrganizer `json:"-"`
	Guests     []EventGuest     `json:"-"`
}

func (e *Event) Ended(now time.Time) bool   { return now.After(e.EndTime) }
func (e *Event) Started(now time.Time) bool { return now.After(e.StartTime) }
