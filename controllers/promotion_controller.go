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
)

type PromotionController struct {
	Svc *services.PromotionService
}

func NewPromotionController(svc *services.PromotionService) *PromotionController {
	return &PromotionController{Svc: svc}
}

func managerPromotionView(p *entity.Promotion) gin.H {
	return gin.H{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"type":        p.Type,
		"startTime":   p.StartTime.Format(time.RFC3339),
		"endTime":     p.EndTime.Format(time.RFC3339),
		"minSpending": p.MinSpending,
		"rate":        p.Rate,
		"points":      p.Points,
	}
}

// regularPromotionView omits the start time; regular users only ever see
// promotions that are already running.
func regularPromotionView(p *entity.Promotion) gin.H {
	return gin.H{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"type":        p.Type,
		"endTime":     p.EndTime.Format(time.RFC3339),
		"minSpending": p.MinSpending,
		"rate":        p.Rate,
		"points":      p.Points,
	}
}

func (ctl *PromotionController) Create(c *gin.Context) {
	var body struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Type        string   `json:"type"`
		StartTime   string   `json:"startTime"`
		EndTime     string   `json:"endTime"`
		MinSpending *float64 `json:"minSpending"`
		Rate        *float64 `json:"rate"`
		Points      *int     `json:"points"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	promo, err := ctl.Svc.Create(&services.PromotionInput{
		Name:        body.Name,
		Description: body.Description,
		Type:        body.Type,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		MinSpending: body.MinSpending,
		Rate:        body.Rate,
		Points:      body.Points,
	})
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, managerPromotionView(promo))
}

// List shows managers the full catalogue with started/ended filters;
// everyone else sees active promotions they have not consumed.
func (ctl *PromotionController) List(c *gin.Context) {
	isManager := utils.CurrentRole(c).Has(entity.RoleManager)

	f := repository.PromotionFilter{
		Name: c.Query("name"),
		Type: c.Query("type"),
		Now:  time.Now(),
	}

	var err error
	if f.Page, f.Limit, err = pagination(c); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	if isManager {
		f.Started = queryBool(c, "started")
		f.Ended = queryBool(c, "ended")
		if f.Started != nil && f.Ended != nil {
			resp.BadRequest(c, "Cannot filter by both started and ended")
			return
		}
	} else {
		f.ActiveOnly = true
		f.ExcludeUser = utils.CurrentUserID(c)
	}

	count, promos, err := ctl.Svc.List(f)
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	results := make([]gin.H, 0, len(promos))
	for i := range promos {
		if isManager {
			results = append(results, managerPromotionView(&promos[i]))
		} else {
			results = append(results, regularPromotionView(&promos[i]))
		}
	}
	resp.OK(c, gin.H{"count": count, "results": results})
}

func (ctl *PromotionController) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("promotionId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid promotion ID")
		return
	}

	isManager := utils.CurrentRole(c).Has(entity.RoleManager)
	promo, err := ctl.Svc.Get(uint(id), isManager)
	if err != nil {
		resp.Error(c, err)
		return
	}
	if isManager {
		resp.OK(c, managerPromotionView(promo))
		return
	}
	resp.OK(c, regularPromotionView(promo))
}

// Update binds through raw JSON so an explicitly-null field (clear the
// value) is distinguishable from an absent one (leave it alone).
func (ctl *PromotionController) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("promotionId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid promotion ID")
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	in := services.PromotionUpdate{}
	if err := decodeField(raw, "name", &in.Name); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if err := decodeField(raw, "description", &in.Description); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if err := decodeField(raw, "type", &in.Type); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if err := decodeField(raw, "startTime", &in.StartTime); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if err := decodeField(raw, "endTime", &in.EndTime); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if in.HasMinSpend, err = decodeNullable(raw, "minSpending", &in.MinSpending); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if in.HasRate, err = decodeNullable(raw, "rate", &in.Rate); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	if in.HasPoints, err = decodeNullable(raw, "points", &in.Points); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	promo, err := ctl.Svc.Update(uint(id), &in)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, managerPromotionView(promo))
}

func (ctl *PromotionController) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("promotionId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid promotion ID")
		return
	}
	if err := ctl.Svc.Delete(uint(id)); err != nil {
		resp.Error(c, err)
		return
	}
	resp.NoContent(c)
}
