package controllers

import (
	"encoding/json"
	"strconv"
	"time"

	"backend/entity"
	"backend/pkg/resp"
	"backend/repository"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type EventController struct {
	Svc   *services.EventService
	Users *repository.UserRepository
}

func NewEventController(db *gorm.DB, svc *services.EventService) *EventController {
	return &EventController{Svc: svc, Users: repository.NewUserRepository(db)}
}

func memberView(u *entity.User) gin.H {
	return gin.H{"id": u.ID, "utorid": u.Utorid, "name": u.Name}
}

func organizerViews(orgs []entity.EventOrganizer) []gin.H {
	out := make([]gin.H, 0, len(orgs))
	for i := range orgs {
		out = append(out, memberView(&orgs[i].User))
	}
	return out
}

func guestViews(guests []entity.EventGuest) []gin.H {
	out := make([]gin.H, 0, len(guests))
	for i := range guests {
		out = append(out, memberView(&guests[i].User))
	}
	return out
}

func eventListRow(e *entity.Event, privileged bool) gin.H {
	row := gin.H{
		"id":        e.ID,
		"name":      e.Name,
		"location":  e.Location,
		"startTime": e.StartTime.Format(time.RFC3339),
		"endTime":   e.EndTime.Format(time.RFC3339),
		"capacity":  e.Capacity,
		"numGuests": len(e.Guests),
	}
	if privileged {
		row["pointsRemain"] = e.PointsRemain
		row["pointsAwarded"] = e.PointsAwarded
		row["published"] = e.Published
	}
	return row
}

// eventDetailView includes the guest list and pool counters only for
// managers and the event's organizers.
func eventDetailView(e *entity.Event, privileged bool) gin.H {
	view := gin.H{
		"id":          e.ID,
		"name":        e.Name,
		"description": e.Description,
		"location":    e.Location,
		"startTime":   e.StartTime.Format(time.RFC3339),
		"endTime":     e.EndTime.Format(time.RFC3339),
		"capacity":    e.Capacity,
		"organizers":  organizerViews(e.Organizers),
		"numGuests":   len(e.Guests),
	}
	if privileged {
		view["guests"] = guestViews(e.Guests)
		view["pointsRemain"] = e.PointsRemain
		view["pointsAwarded"] = e.PointsAwarded
		view["published"] = e.Published
	}
	return view
}

func (ctl *EventController) Create(c *gin.Context) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Location    string `json:"location"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		Capacity    *int   `json:"capacity"`
		Points      int    `json:"points"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	event, err := ctl.Svc.Create(&services.EventInput{
		Name:        body.Name,
		Description: body.Description,
		Location:    body.Location,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		Capacity:    body.Capacity,
		Points:      body.Points,
	})
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, eventDetailView(event, true))
}

// List shows everyone published events; managers may also filter on the
// published flag to see drafts.
func (ctl *EventController) List(c *gin.Context) {
	isManager := utils.CurrentRole(c).Has(entity.RoleManager)

	f := repository.EventFilter{
		Name:     c.Query("name"),
		Location: c.Query("location"),
		Now:      time.Now(),
	}
	f.Started = queryBool(c, "started")
	f.Ended = queryBool(c, "ended")
	if f.Started != nil && f.Ended != nil {
		resp.BadRequest(c, "Cannot filter by both started and ended")
		return
	}
	// At-capacity events are hidden unless explicitly requested.
	f.ExcludeFull = c.Query("showFull") != "true"

	if isManager {
		f.Published = queryBool(c, "published")
	} else {
		f.PublishedOnly = true
	}

	var err error
	if f.Page, f.Limit, err = pagination(c); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	count, events, err := ctl.Svc.List(f)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	results := make([]gin.H, 0, len(events))
	for i := range events {
		results = append(results, eventListRow(&events[i], isManager))
	}
	resp.OK(c, gin.H{"count": count, "results": results})
}

func (ctl *EventController) eventID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("eventId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid event ID")
		return 0, false
	}
	return uint(id), true
}

func (ctl *EventController) Get(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}

	event, err := ctl.Svc.Get(id)
	if err != nil {
		resp.Error(c, err)
		return
	}

	privileged := utils.CurrentRole(c).Has(entity.RoleManager)
	if !privileged {
		privileged, err = ctl.Svc.IsOrganizer(id, utils.CurrentUserID(c))
		if err != nil {
			resp.ServerError(c, err)
			return
		}
	}
	if !privileged && !event.Published {
		resp.NotFound(c, "Event not found")
		return
	}
	resp.OK(c, eventDetailView(event, privileged))
}

// Update binds through raw JSON so explicit nulls (clear capacity) are
// distinguishable from absent fields.
func (ctl *EventController) Update(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	var err error
	in := services.EventUpdate{}
	for _, f := range []struct {
		key string
		dst **string
	}{
		{"name", &in.Name},
		{"description", &in.Description},
		{"location", &in.Location},
		{"startTime", &in.StartTime},
		{"endTime", &in.EndTime},
	} {
		if err = decodeField(raw, f.key, f.dst); err != nil {
			resp.BadRequest(c, err.Error())
			return
		}
	}
	if in.HasCapacity, err = decodeNullable(raw, "capacity", &in.Capacity); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if err = decodeField(raw, "points", &in.Points); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if err = decodeField(raw, "published", &in.Published); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	event, err := ctl.Svc.Update(id, c.GetBool("isManager"), &in)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, gin.H{
		"id":            event.ID,
		"name":          event.Name,
		"description":   event.Description,
		"location":      event.Location,
		"startTime":     event.StartTime.Format(time.RFC3339),
		"endTime":       event.EndTime.Format(time.RFC3339),
		"capacity":      event.Capacity,
		"pointsRemain":  event.PointsRemain,
		"pointsAwarded": event.PointsAwarded,
		"published":     event.Published,
	})
}

func (ctl *EventController) Delete(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}
	if err := ctl.Svc.Delete(id); err != nil {
		resp.Error(c, err)
		return
	}
	resp.NoContent(c)
}

func (ctl *EventController) AddOrganizer(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}

	var body struct {
		Utorid string `json:"utorid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Utorid == "" {
		resp.BadRequest(c, "Missing required fields")
		return
	}

	event, err := ctl.Svc.AddOrganizer(id, body.Utorid)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, gin.H{
		"id":         event.ID,
		"name":       event.Name,
		"location":   event.Location,
		"organizers": organizerViews(event.Organizers),
	})
}

func (ctl *EventController) RemoveOrganizer(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid user ID")
		return
	}
	if err := ctl.Svc.RemoveOrganizer(id, uint(userID)); err != nil {
		resp.Error(c, err)
		return
	}
	resp.NoContent(c)
}

func (ctl *EventController) AddGuest(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}

	var body struct {
		Utorid string `json:"utorid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Utorid == "" {
		resp.BadRequest(c, "Missing required fields")
		return
	}

	added, err := ctl.Svc.AddGuest(id, body.Utorid, true)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, gin.H{
		"id":         added.Event.ID,
		"name":       added.Event.Name,
		"location":   added.Event.Location,
		"guestAdded": memberView(added.Guest),
		"numGuests":  added.NumGuests,
	})
}

func (ctl *EventController) RemoveGuest(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid user ID")
		return
	}
	if err := ctl.Svc.RemoveGuest(id, uint(userID)); err != nil {
		resp.Error(c, err)
		return
	}
	resp.NoContent(c)
}

// RSVP registers the caller for a published event.
func (ctl *EventController) RSVP(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}

	user, err := ctl.Users.FindByID(utils.CurrentUserID(c))
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	added, err := ctl.Svc.RSVP(id, user)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, gin.H{
		"id":         added.Event.ID,
		"name":       added.Event.Name,
		"location":   added.Event.Location,
		"guestAdded": memberView(added.Guest),
		"numGuests":  added.NumGuests,
	})
}

func (ctl *EventController) CancelRSVP(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}
	if err := ctl.Svc.CancelRSVP(id, utils.CurrentUserID(c)); err != nil {
		resp.Error(c, err)
		return
	}
	resp.NoContent(c)
}

// Award grants event points to one guest or all of them. A single-guest
// request answers with one object, an all-guests request with an array.
func (ctl *EventController) Award(c *gin.Context) {
	id, ok := ctl.eventID(c)
	if !ok {
		return
	}

	var body struct {
		Type   string `json:"type"`
		Utorid string `json:"utorid"`
		Amount int    `json:"amount"`
		Remark string `json:"remark"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Type != "event" {
		resp.BadRequest(c, "Invalid transaction type")
		return
	}

	creator, err := ctl.Users.FindByID(utils.CurrentUserID(c))
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	records, err := ctl.Svc.Award(creator, id, body.Utorid, body.Amount, body.Remark)
	if err != nil {
		resp.Error(c, err)
		return
	}

	views := make([]gin.H, 0, len(records))
	for _, rec := range records {
		views = append(views, gin.H{
			"id":        rec.Transaction.ID,
			"recipient": rec.Recipient.Utorid,
			"awarded":   rec.Transaction.Amount,
			"type":      rec.Transaction.Type,
			"relatedId": rec.Transaction.RelatedID,
			"remark":    rec.Transaction.Remark,
			"createdBy": creator.Utorid,
		})
	}
	if body.Utorid != "" {
		resp.Created(c, views[0])
		return
	}
	resp.Created(c, views)
}
