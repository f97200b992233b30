package repository

import (
	"time"

	"backend/entity"

	"gorm.io/gorm"
)

type EventRepository struct {
	DB *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) Create(e *entity.Event) error {
	return r.DB.Create(e).Error
}

func (r *EventRepository) FindByID(id uint) (*entity.Event, error) {
	var e entity.Event
	if err := r.DB.First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EventRepository) FindByIDWithMembers(id uint) (*entity.Event, error) {
	var e entity.Event
	err := r.DB.Preload("Organizers.User").Preload("Guests.User").
		First(&e, id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EventRepository) Update(id uint, updates map[string]any) error {
	return r.DB.Model(&entity.Event{}).Where("id = ?", id).Updates(updates).Error
}

func (r *EventRepository) Delete(id uint) error {
	if err := r.DB.Unscoped().Where("event_id = ?", id).Delete(&entity.EventOrganizer{}).Error; err != nil {
		return err
	}
	if err := r.DB.Unscoped().Where("event_id = ?", id).Delete(&entity.EventGuest{}).Error; err != nil {
		return err
	}
	return r.DB.Unscoped().Delete(&entity.Event{}, id).Error
}

func (r *EventRepository) IsOrganizer(eventID, userID uint) (bool, error) {
	var cnt int64
	err := r.DB.Model(&entity.EventOrganizer{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *EventRepository) IsGuest(eventID, userID uint) (bool, error) {
	var cnt int64
	err := r.DB.Model(&entity.EventGuest{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *EventRepository) AddOrganizer(eventID, userID uint) error {
	return r.DB.Create(&entity.EventOrganizer{EventID: eventID, UserID: userID}).Error
}

func (r *EventRepository) RemoveOrganizer(eventID, userID uint) error {
	return r.DB.Unscoped().
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&entity.EventOrganizer{}).Error
}

func (r *EventRepository) AddGuest(eventID, userID uint) error {
	return r.DB.Create(&entity.EventGuest{EventID: eventID, UserID: userID}).Error
}

func (r *EventRepository) RemoveGuest(eventID, userID uint) error {
	return r.DB.Unscoped().
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&entity.EventGuest{}).Error
}

func (r *EventRepository) CountGuests(eventID uint) (int64, error) {
	var cnt int64
	err := r.DB.Model(&entity.EventGuest{}).
		Where("event_id = ?", eventID).
		Count(&cnt).Error
	return cnt, err
}

func (r *EventRepository) GuestsWithUsers(eventID uint) ([]entity.EventGuest, error) {
	var guests []entity.EventGuest
	err := r.DB.Preload("User").
		Where("event_id = ?", eventID).
		Find(&guests).Error
	return guests, err
}

func (r *EventRepository) OrganizersWithUsers(eventID uint) ([]entity.EventOrganizer, error) {
	var orgs []entity.EventOrganizer
	err := r.DB.Preload("User").
		Where("event_id = ?", eventID).
		Find(&orgs).Error
	return orgs, err
}

// DebitPool moves total points from points_remain to points_awarded,
// keeping their sum constant. The remaining-balance check is part of the
// statement, so a concurrent award cannot overshoot the pool.
func (r *EventRepository) DebitPool(tx *gorm.DB, eventID uint, total int) (bool, error) {
	res := tx.Model(&entity.Event{}).
		Where("id = ? AND points_remain >= ?", eventID, total).
		Updates(map[string]any{
			"points_remain":  gorm.Expr("points_remain - ?", total),
			"points_awarded": gorm.Expr("points_awarded + ?", total),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type EventFilter struct {
	Name          string
	Location      string
	Started       *bool
	Ended         *bool
	PublishedOnly bool
	Published     *bool
	ExcludeFull   bool
	Now           time.Time
	Page, Limit   int
}

// List paginates in memory: the full-event filter depends on the guest
// count, which is not a column.
func (r *EventRepository) List(f EventFilter) (int64, []entity.Event, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}

	q := r.DB.Model(&entity.Event{})
	if f.PublishedOnly {
		q = q.Where("published = ?", true)
	} else if f.Published != nil {
		q = q.Where("published = ?", *f.Published)
	}
	if f.Name != "" {
		q = q.Where("name LIKE ?", "%"+f.Name+"%")
	}
	if f.Location != "" {
		q = q.Where("location LIKE ?", "%"+f.Location+"%")
	}
	if f.Started != nil {
		if *f.Started {
			q = q.Where("start_time <= ?", f.Now)
		} else {
			q = q.Where("start_time > ?", f.Now)
		}
	}
	if f.Ended != nil {
		if *f.Ended {
			q = q.Where("end_time <= ?", f.Now)
		} else {
			q = q.Where("end_time > ?", f.Now)
		}
	}

	var events []entity.Event
	if err := q.Preload("Guests").Order("id").Find(&events).Error; err != nil {
		return 0, nil, err
	}

	if f.ExcludeFull {
		kept := events[:0]
		for _, e := range events {
			if e.Capacity != nil && len(e.Guests) >= *e.Capacity {
				continue
			}
			kept = append(kept, e)
		}
		events = kept
	}

	count := int64(len(events))
	start := (f.Page - 1) * f.Limit
	if start >= len(events) {
		return count, nil, nil
	}
	end := start + f.Limit
	if end > len(events) {
		end = len(events)
	}
	return count, events[start:end], nil
}
