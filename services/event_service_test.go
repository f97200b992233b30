package services

import (
	"sync"
	"testing"
	"time"

	"backend/entity"
	"backend/pkg/apperr"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func makeEvent(t *testing.T, db *gorm.DB, pointsRemain int, capacity *int, published bool) *entity.Event {
	t.Helper()
	event := entity.Event{
		Name:         "Orientation",
		Description:  "test event",
		Location:     "BA 1200",
		StartTime:    time.Now().Add(-time.Hour),
		EndTime:      time.Now().Add(time.Hour),
		Capacity:     capacity,
		PointsRemain: pointsRemain,
		Published:    published,
	}
	require.NoError(t, db.Create(&event).Error)
	return &event
}

func TestAwardAllGuests(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	organizer := makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)
	event := makeEvent(t, db, 100, nil, true)

	guests := []*entity.User{
		makeUser(t, db, "guest001", entity.RoleRegular, 0, true),
		makeUser(t, db, "guest002", entity.RoleRegular, 0, true),
		makeUser(t, db, "guest003", entity.RoleRegular, 0, true),
	}
	for _, g := range guests {
		require.NoError(t, svc.Repo.AddGuest(event.ID, g.ID))
	}

	// 3 x 40 overshoots the pool; nothing is awarded.
	_, err := svc.Award(organizer, event.ID, "", 40, "")
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	for _, g := range guests {
		require.Equal(t, 0, userPoints(t, db, g.ID))
	}

	records, err := svc.Award(organizer, event.ID, "", 30, "attendance")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, g := range guests {
		require.Equal(t, 30, userPoints(t, db, g.ID))
	}

	updated, err := svc.Repo.FindByID(event.ID)
	require.NoError(t, err)
	require.Equal(t, 10, updated.PointsRemain)
	require.Equal(t, 90, updated.PointsAwarded)
}

func TestAwardSingleGuest(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	organizer := makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)
	event := makeEvent(t, db, 100, nil, true)
	guest := makeUser(t, db, "guest001", entity.RoleRegular, 0, true)
	require.NoError(t, svc.Repo.AddGuest(event.ID, guest.ID))

	records, err := svc.Award(organizer, event.ID, guest.Utorid, 25, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, entity.TransactionEvent, records[0].Transaction.Type)
	require.Equal(t, event.ID, *records[0].Transaction.RelatedID)
	require.Equal(t, 25, userPoints(t, db, guest.ID))
}

// Two awards racing against one pool: the conditional pool debit admits
// only the one the remaining points still cover.
func TestAwardConcurrentPoolDebit(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	organizer := makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)
	event := makeEvent(t, db, 100, nil, true)
	guest := makeUser(t, db, "guest001", entity.RoleRegular, 0, true)
	require.NoError(t, svc.Repo.AddGuest(event.ID, guest.ID))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Award(organizer, event.ID, guest.Utorid, 60, "")
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperr.IsKind(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)
	// The pool moved exactly once and never overshot.
	require.Equal(t, 60, userPoints(t, db, guest.ID))
	updated, err := svc.Repo.FindByID(event.ID)
	require.NoError(t, err)
	require.Equal(t, 40, updated.PointsRemain)
	require.Equal(t, 60, updated.PointsAwarded)
}

func TestAwardNonGuestRejected(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	organizer := makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)
	event := makeEvent(t, db, 100, nil, true)
	makeUser(t, db, "guest001", entity.RoleRegular, 0, true)

	_, err := svc.Award(organizer, event.ID, "guest001", 25, "")
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRSVPCapacityAndDuplicates(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	capacity := 1
	event := makeEvent(t, db, 50, &capacity, true)
	first := makeUser(t, db, "guest001", entity.RoleRegular, 0, true)
	second := makeUser(t, db, "guest002", entity.RoleRegular, 0, true)

	added, err := svc.RSVP(event.ID, first)
	require.NoError(t, err)
	require.Equal(t, int64(1), added.NumGuests)

	_, err = svc.RSVP(event.ID, first)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.RSVP(event.ID, second)
	require.True(t, apperr.IsKind(err, apperr.KindExpired))
}

func TestRSVPUnpublishedHidden(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	event := makeEvent(t, db, 50, nil, false)
	user := makeUser(t, db, "guest001", entity.RoleRegular, 0, true)

	_, err := svc.RSVP(event.ID, user)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestOrganizerCannotBeGuest(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	event := makeEvent(t, db, 50, nil, true)
	user := makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)
	require.NoError(t, svc.Repo.AddOrganizer(event.ID, user.ID))

	_, err := svc.RSVP(event.ID, user)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	// And the other direction: a guest cannot be promoted to organizer.
	guest := makeUser(t, db, "guest001", entity.RoleRegular, 0, true)
	require.NoError(t, svc.Repo.AddGuest(event.ID, guest.ID))
	_, err = svc.AddOrganizer(event.ID, guest.Utorid)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestEventUpdatePointsFloor(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	organizer := makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)
	event := makeEvent(t, db, 100, nil, true)
	guest := makeUser(t, db, "guest001", entity.RoleRegular, 0, true)
	require.NoError(t, svc.Repo.AddGuest(event.ID, guest.ID))

	_, err := svc.Award(organizer, event.ID, "", 60, "")
	require.NoError(t, err)

	// Total cannot drop below the 60 already awarded.
	low := 50
	_, err = svc.Update(event.ID, true, &EventUpdate{Points: &low})
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	// Raising the total grows the remaining pool.
	high := 200
	updated, err := svc.Update(event.ID, true, &EventUpdate{Points: &high})
	require.NoError(t, err)
	require.Equal(t, 140, updated.PointsRemain)
	require.Equal(t, 60, updated.PointsAwarded)
}

func TestEventDeletePublishedRejected(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	published := makeEvent(t, db, 50, nil, true)
	draft := makeEvent(t, db, 50, nil, false)

	err := svc.Delete(published.ID)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
	require.NoError(t, svc.Delete(draft.ID))
}

func TestAddOrganizerAfterEndExpired(t *testing.T) {
	db := testDB(t)
	svc := NewEventService(db)
	event := entity.Event{
		Name:      "Past event",
		Location:  "BA 1200",
		StartTime: time.Now().Add(-2 * time.Hour),
		EndTime:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&event).Error)
	makeUser(t, db, "organiz1", entity.RoleRegular, 0, true)

	_, err := svc.AddOrganizer(event.ID, "organiz1")
	require.True(t, apperr.IsKind(err, apperr.KindExpired))
}
