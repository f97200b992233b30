package services

import (
	"errors"
	"math"
	"time"

	"backend/entity"
	"backend/pkg/apperr"
	"backend/repository"

	"gorm.io/gorm"
)

// Points earned per dollar spent before any promotion bonus ($0.25 -> 1).
const basePointsPerDollar = 4

type PromotionService struct {
	DB   *gorm.DB
	Repo *repository.PromotionRepository
}

func NewPromotionService(db *gorm.DB) *PromotionService {
	return &PromotionService{DB: db, Repo: repository.NewPromotionRepository(db)}
}

// Evaluate computes the points a purchase earns: the base rate plus every
// applicable promotion bonus. Promotions whose minSpending is not met
// contribute nothing but do not fail the purchase.
func (s *PromotionService) Evaluate(spent float64, promotions []entity.Promotion) int {
	total := int(math.Round(spent * basePointsPerDollar))

	for _, promo := range promotions {
		if promo.MinSpending != nil && spent < *promo.MinSpending {
			continue
		}
		if promo.Rate != nil {
			total += int(math.Round(spent * *promo.Rate * 100))
		}
		if promo.Points != nil {
			total += *promo.Points
		}
	}
	return total
}

// ValidateForPurchase resolves the cited promotion ids and rejects the whole
// set if any id is unknown, inactive, or a one-time promotion the user has
// already consumed. No partial application.
func (s *PromotionService) ValidateForPurchase(userID uint, promotionIDs []uint, now time.Time) ([]entity.Promotion, error) {
	if len(promotionIDs) == 0 {
		return nil, nil
	}

	promos, err := s.Repo.FindByIDs(promotionIDs)
	if err != nil {
		return nil, err
	}
	if len(promos) != len(promotionIDs) {
		return nil, apperr.Validation("Invalid promotion IDs")
	}

	for _, promo := range promos {
		if !promo.ActiveAt(now) {
			return nil, apperr.Validation("Promotion is not active")
		}
		if promo.Type == entity.PromotionOneTime {
			used, err := s.Repo.HasConsumed(userID, promo.ID)
			if err != nil {
				return nil, err
			}
			if used {
				return nil, apperr.Conflict("Promotion already used")
			}
		}
	}
	return promos, nil
}

type PromotionInput struct {
	Name        string
	Description string
	Type        string
	StartTime   string
	EndTime     string
	MinSpending *float64
	Rate        *float64
	Points      *int
}

func normalizePromotionType(t string) (entity.PromotionType, bool) {
	switch t {
	case "automatic":
		return entity.PromotionAutomatic, true
	case "onetime", "one-time":
		return entity.PromotionOneTime, true
	}
	return "", false
}

func (s *PromotionService) Create(in *PromotionInput) (*entity.Promotion, error) {
	if in.Name == "" || in.Description == "" || in.Type == "" || in.StartTime == "" || in.EndTime == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	promoType, ok := normalizePromotionType(in.Type)
	if !ok {
		return nil, apperr.Validation("Invalid promotion type")
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
	if in.MinSpending != nil && *in.MinSpending < 0 {
		return nil, apperr.Validation("Invalid minimum spending")
	}
	if in.Rate != nil && *in.Rate < 0 {
		return nil, apperr.Validation("Invalid rate")
	}
	if in.Points != nil && *in.Points < 0 {
		return nil, apperr.Validation("Invalid points")
	}

	promo := entity.Promotion{
		Name:        in.Name,
		Description: in.Description,
		Type:        promoType,
		StartTime:   start,
		EndTime:     end,
		MinSpending: in.MinSpending,
		Rate:        in.Rate,
		Points:      in.Points,
	}
	if err := s.Repo.Create(&promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

// Get returns the promotion; non-managers get NotFound for promotions
// outside their active window.
func (s *PromotionService) Get(id uint, viewerIsManager bool) (*entity.Promotion, error) {
	promo, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Promotion not found")
		}
		return nil, err
	}
	if !viewerIsManager && !promo.ActiveAt(time.Now()) {
		return nil, apperr.NotFound("Promotion not found")
	}
	return promo, nil
}

func (s *PromotionService) List(f repository.PromotionFilter) (int64, []entity.Promotion, error) {
	return s.Repo.List(f)
}

type PromotionUpdate struct {
	Name        *string
	Description *string
	Type        *string
	StartTime   *string
	EndTime     *string
	MinSpending *float64
	HasMinSpend bool
	Rate        *float64
	HasRate     bool
	Points      *int
	HasPoints   bool
}

func (s *PromotionService) Update(id uint, in *PromotionUpdate) (*entity.Promotion, error) {
	promo, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Promotion not found")
		}
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{}

	// Once the window has opened only the end time may move, and only while
	// the promotion has not ended.
	if now.After(promo.StartTime) {
		if in.Name != nil || in.Description != nil || in.Type != nil ||
			in.StartTime != nil || in.HasMinSpend || in.HasRate || in.HasPoints {
			return nil, apperr.Validation("Cannot update these fields after promotion has started")
		}
	}
	if now.After(promo.EndTime) && in.EndTime != nil {
		return nil, apperr.Validation("Cannot update end time after promotion has ended")
	}

	if in.StartTime != nil || in.EndTime != nil {
		newStart, newEnd := promo.StartTime, promo.EndTime
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
	if in.Type != nil {
		promoType, ok := normalizePromotionType(*in.Type)
		if !ok {
			return nil, apperr.Validation("Invalid promotion type")
		}
		updates["type"] = promoType
	}
	if in.HasMinSpend {
		if in.MinSpending != nil && *in.MinSpending < 0 {
			return nil, apperr.Validation("Invalid minimum spending")
		}
		updates["min_spending"] = in.MinSpending
	}
	if in.HasRate {
		if in.Rate != nil && *in.Rate < 0 {
			return nil, apperr.Validation("Invalid rate")
		}
		updates["rate"] = in.Rate
	}
	if in.HasPoints {
		if in.Points != nil && *in.Points < 0 {
			return nil, apperr.Validation("Invalid points")
		}
		updates["points"] = in.Points
	}

	if len(updates) == 0 {
		return nil, apperr.Validation("No fields to update")
	}
	if err := s.Repo.Update(id, updates); err != nil {
		return nil, err
	}
	return s.Repo.FindByID(id)
}

func (s *PromotionService) Delete(id uint) error {
	promo, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Promotion not found")
		}
		return err
	}
	if !promo.StartTime.After(time.Now()) {
		return apperr.Forbidden("Cannot delete promotion that has started")
	}
	return s.Repo.Delete(id)
}

func (s *PromotionService) AvailableOneTime(userID uint) ([]entity.Promotion, error) {
	return s.Repo.AvailableOneTime(userID, time.Now())
}
