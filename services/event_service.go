package services

import (
	"errors"
	"time"

	"backend/entity"
	"backend/pkg/apperr"
	"backend/repository"

	"gorm.io/gorm"
)

type EventService struct {
	DB    *gorm.DB
	Repo  *repository.EventRepository
	Users *repository.UserRepository
	Txns  *repository.TransactionRepository
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{
		DB:    db,
		Repo:  repository.NewEventRepository(db),
		Users: repository.NewUserRepository(db),
		Txns:  repository.NewTransactionRepository(db),
	}
}

// ----- CRUD -----

type EventInput struct {
	Name        string
	Description string
	Location    string
	StartTime   string
	EndTime     string
	Capacity    *int
	Points      int
}

func (s *EventService) Create(in *EventInput) (*entity.Event, error) {
	if in.Name == "" || in.Description == "" || in.Location == "" ||
		in.StartTime == "" || in.EndTime == "" {
		return nil, apperr.Validation("Missing required fields")
	}

	start, err := time.Parse(time.RFC3339, in.StartTime)
	if err != nil {
		return nil, apperr.Validation("Invalid date format")
	}
	end, err := time.Parse(time.RFC3339, in.EndTime)
	if err != nil {
		return nil, apperr.Validation("Invalid date format")
	}

	now := time.Now()
	if start.Before(now) {
		return nil, apperr.Validation("Start time cannot be in the past")
	}
	if !end.After(start) {
		return nil, apperr.Validation("End time must be after start time")
	}
	if in.Capacity != nil && *in.Capacity <= 0 {
		return nil, apperr.Validation("Invalid capacity")
	}
	if in.Points <= 0 {
		return nil, apperr.Validation("Invalid points")
	}

	event := entity.Event{
		Name:         in.Name,
		Description:  in.Description,
		Location:     in.Location,
		StartTime:    start,
		EndTime:      end,
		Capacity:     in.Capacity,
		PointsRemain: in.Points,
	}
	if err := s.Repo.Create(&event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventService) Get(id uint) (*entity.Event, error) {
	event, err := s.Repo.FindByIDWithMembers(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, err
	}
	return event, nil
}

func (s *EventService) List(f repository.EventFilter) (int64, []entity.Event, error) {
	return s.Repo.List(f)
}

type EventUpdate struct {
	Name        *string
	Description *string
	Location    *string
	StartTime   *string
	EndTime     *string
	Capacity    *int
	HasCapacity bool
	Points      *int
	Published   *bool
}

// Update applies organizer/manager edits. Identity fields freeze once the
// event starts; the end time freezes once it ends; points and published are
// manager-only, and the total allocation can never drop below what has
// already been awarded.
func (s *EventService) Update(id uint, isManager bool, in *EventUpdate) (*entity.Event, error) {
	event, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{}

	if event.Started(now) {
		if in.Name != nil || in.Description != nil || in.Location != nil ||
			in.StartTime != nil || in.HasCapacity {
			return nil, apperr.Validation("Cannot update these fields after event has started")
		}
	}
	if event.Ended(now) && in.EndTime != nil {
		return nil, apperr.Validation("Cannot update end time after event has ended")
	}

	if in.StartTime != nil || in.EndTime != nil {
		newStart, newEnd := event.StartTime, event.EndTime
		if in.StartTime != nil {
			newStart, err = time.Parse(time.RFC3339, *in.StartTime)
			if err != nil {
				return nil, apperr.Validation("Invalid date format")
			}
			if newStart.Before(now) {
				return nil, apperr.Validation("Start time cannot be in the past")
			}
			updates["start_time"] = newStart
		}
		if in.EndTime != nil {
			newEnd, err = time.Parse(time.RFC3339, *in.EndTime)
			if err != nil {
				return nil, apperr.Validation("Invalid date format")
			}
			updates["end_time"] = newEnd
		}
		if !newEnd.After(newStart) {
			return nil, apperr.Validation("End time must be after start time")
		}
	}

	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}

	if in.HasCapacity {
		if in.Capacity != nil {
			if *in.Capacity <= 0 {
				return nil, apperr.Validation("Invalid capacity")
			}
			guests, err := s.Repo.CountGuests(id)
			if err != nil {
				return nil, err
			}
			if guests > int64(*in.Capacity) {
				return nil, apperr.Validation("Capacity too small for current guests")
			}
		}
		updates["capacity"] = in.Capacity
	}

	if in.Points != nil {
		if !isManager {
			return nil, apperr.Forbidden("Forbidden")
		}
		if *in.Points <= 0 {
			return nil, apperr.Validation("Invalid points")
		}
		// Points sets the total allocation; remain absorbs the difference.
		diff := *in.Points - (event.PointsRemain + event.PointsAwarded)
		if event.PointsRemain+diff < 0 {
			return nil, apperr.Validation("Cannot reduce points below awarded amount")
		}
		updates["points_remain"] = event.PointsRemain + diff
	}

	if in.Published != nil {
		if !isManager {
			return nil, apperr.Forbidden("Forbidden")
		}
		if !*in.Published {
			return nil, apperr.Validation("Cannot unpublish event")
		}
		updates["published"] = true
	}

	if len(updates) == 0 {
		return nil, apperr.Validation("No fields to update")
	}
	if err := s.Repo.Update(id, updates); err != nil {
		return nil, err
	}
	return s.Repo.FindByID(id)
}

func (s *EventService) Delete(id uint) error {
	event, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Event not found")
		}
		return err
	}
	if event.Published {
		return apperr.Validation("Cannot delete published event")
	}
	return s.Repo.Delete(id)
}

// ----- Organizers / guests -----

func (s *EventService) AddOrganizer(eventID uint, utorid string) (*entity.Event, error) {
	event, err := s.Repo.FindByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, err
	}
	if event.Ended(time.Now()) {
		return nil, apperr.Expired("Event has ended")
	}

	user, err := s.Users.FindByUtorid(utorid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}

	isGuest, err := s.Repo.IsGuest(eventID, user.ID)
	if err != nil {
		return nil, err
	}
	if isGuest {
		return nil, apperr.Validation("User is already a guest")
	}

	already, err := s.Repo.IsOrganizer(eventID, user.ID)
	if err != nil {
		return nil, err
	}
	if !already {
		if err := s.Repo.AddOrganizer(eventID, user.ID); err != nil {
			return nil, err
		}
	}
	return s.Repo.FindByIDWithMembers(eventID)
}

func (s *EventService) RemoveOrganizer(eventID, userID uint) error {
	if _, err := s.Repo.FindByID(eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Event not found")
		}
		return err
	}
	return s.Repo.RemoveOrganizer(eventID, userID)
}

type GuestAdded struct {
	Event     *entity.Event
	Guest     *entity.User
	NumGuests int64
}

// AddGuest admits a user by utorid on behalf of an organizer or manager.
func (s *EventService) AddGuest(eventID uint, utorid string, actorIsOrganizerOrManager bool) (*GuestAdded, error) {
	event, err := s.Repo.FindByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, err
	}
	if !event.Published && !actorIsOrganizerOrManager {
		return nil, apperr.NotFound("Event not found")
	}

	user, err := s.Users.FindByUtorid(utorid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return s.admitGuest(event, user)
}

// RSVP registers the caller as a guest of a published event.
func (s *EventService) RSVP(eventID uint, user *entity.User) (*GuestAdded, error) {
	event, err := s.Repo.FindByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, err
	}
	if !event.Published {
		return nil, apperr.NotFound("Event not found")
	}
	return s.admitGuest(event, user)
}

func (s *EventService) admitGuest(event *entity.Event, user *entity.User) (*GuestAdded, error) {
	if event.Ended(time.Now()) {
		return nil, apperr.Expired("Event has ended")
	}

	already, err := s.Repo.IsGuest(event.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, apperr.Validation("Already registered")
	}

	isOrganizer, err := s.Repo.IsOrganizer(event.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if isOrganizer {
		return nil, apperr.Validation("User is an organizer")
	}

	guests, err := s.Repo.CountGuests(event.ID)
	if err != nil {
		return nil, err
	}
	if event.Capacity != nil && guests >= int64(*event.Capacity) {
		return nil, apperr.Expired("Event is full")
	}

	if err := s.Repo.AddGuest(event.ID, user.ID); err != nil {
		return nil, err
	}
	return &GuestAdded{Event: event, Guest: user, NumGuests: guests + 1}, nil
}

func (s *EventService) CancelRSVP(eventID uint, userID uint) error {
	event, err := s.Repo.FindByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Event not found")
		}
		return err
	}
	if event.Ended(time.Now()) {
		return apperr.Expired("Event has ended")
	}

	isGuest, err := s.Repo.IsGuest(eventID, userID)
	if err != nil {
		return err
	}
	if !isGuest {
		return apperr.NotFound("Not registered for this event")
	}
	return s.Repo.RemoveGuest(eventID, userID)
}

func (s *EventService) RemoveGuest(eventID, userID uint) error {
	if _, err := s.Repo.FindByID(eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Event not found")
		}
		return err
	}
	return s.Repo.RemoveGuest(eventID, userID)
}

// ----- Awards -----

type AwardRecord struct {
	Transaction *entity.Transaction
	Recipient   *entity.User
}

// Award grants amount points from the event's pool to one guest (utorid
// set) or every guest (utorid empty). The pool debit, the transaction rows
// and the balance credits commit together or not at all; the pool guard is
// part of the debit statement, so concurrent awards cannot overshoot
// pointsRemain.
func (s *EventService) Award(creator *entity.User, eventID uint, utorid string, amount int, remark string) ([]AwardRecord, error) {
	if amount <= 0 {
		return nil, apperr.Validation("Invalid request")
	}

	event, err := s.Repo.FindByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, err
	}

	guests, err := s.Repo.GuestsWithUsers(eventID)
	if err != nil {
		return nil, err
	}

	var targets []entity.EventGuest
	if utorid != "" {
		for _, g := range guests {
			if g.User.Utorid == utorid {
				targets = append(targets, g)
				break
			}
		}
		if len(targets) == 0 {
			return nil, apperr.Validation("User not on guest list")
		}
	} else {
		targets = guests
	}

	total := amount * len(targets)
	if event.PointsRemain < total {
		return nil, apperr.Conflict("Insufficient points remaining")
	}

	records := make([]AwardRecord, 0, len(targets))
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.Repo.DebitPool(tx, eventID, total)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("Insufficient points remaining")
		}

		for _, guest := range targets {
			eid := eventID
			txn := entity.Transaction{
				UserID:      guest.UserID,
				Type:        entity.TransactionEvent,
				Amount:      amount,
				RelatedID:   &eid,
				Remark:      remark,
				CreatedByID: creator.ID,
			}
			if err := s.Txns.Create(tx, &txn); err != nil {
				return err
			}
			if err := s.Users.ApplyPointsDelta(tx, guest.UserID, amount); err != nil {
				return err
			}
			user := guest.User
			records = append(records, AwardRecord{Transaction: &txn, Recipient: &user})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *EventService) IsOrganizer(eventID, userID uint) (bool, error) {
	return s.Repo.IsOrganizer(eventID, userID)
}
