package repository

import (
	"time"

	"backend/entity"

	"gorm.io/gorm"
)

type PromotionRepository struct {
	DB *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{DB: db}
}

func (r *PromotionRepository) Create(p *entity.Promotion) error {
	return r.DB.Create(p).Error
}

func (r *PromotionRepository) FindByID(id uint) (*entity.Promotion, error) {
	var p entity.Promotion
	if err := r.DB.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PromotionRepository) FindByIDs(ids []uint) ([]entity.Promotion, error) {
	var promos []entity.Promotion
	err := r.DB.Where("id IN ?", ids).Find(&promos).Error
	return promos, err
}

func (r *PromotionRepository) Update(id uint, updates map[string]any) error {
	return r.DB.Model(&entity.Promotion{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PromotionRepository) Delete(id uint) error {
	if err := r.DB.Unscoped().
		Where("promotion_id = ?", id).
		Delete(&entity.UserPromotion{}).Error; err != nil {
		return err
	}
	return r.DB.Unscoped().Delete(&entity.Promotion{}, id).Error
}

func (r *PromotionRepository) HasConsumed(userID, promotionID uint) (bool, error) {
	var cnt int64
	err := r.DB.Model(&entity.UserPromotion{}).
		Where("user_id = ? AND promotion_id = ?", userID, promotionID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *PromotionRepository) ConsumedIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&entity.UserPromotion{}).
		Where("user_id = ?", userID).
		Pluck("promotion_id", &ids).Error
	return ids, err
}

// RecordConsumption writes the one-time usage row inside the purchase's
// transaction.
func (r *PromotionRepository) RecordConsumption(tx *gorm.DB, userID, promotionID uint) error {
	return tx.Create(&entity.UserPromotion{UserID: userID, PromotionID: promotionID}).Error
}

// AvailableOneTime lists active one-time promotions the user has not
// consumed yet.
func (r *PromotionRepository) AvailableOneTime(userID uint, now time.Time) ([]entity.Promotion, error) {
	consumed, err := r.ConsumedIDs(userID)
	if err != nil {
		return nil, err
	}
	q := r.DB.Where("type = ? AND start_time <= ? AND end_time >= ?",
		entity.PromotionOneTime, now, now)
	if len(consumed) > 0 {
		q = q.Where("id NOT IN ?", consumed)
	}
	var promos []entity.Promotion
	err = q.Find(&promos).Error
	return promos, err
}

type PromotionFilter struct {
	Name        string
	Type        string
	Started     *bool
	Ended       *bool
	ActiveOnly  bool   // regular viewers: active window only
	ExcludeUser uint   // regular viewers: hide promotions this user consumed
	Now         time.Time
	Page, Limit int
}

func (r *PromotionRepository) List(f PromotionFilter) (int64, []entity.Promotion, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}

	q := r.DB.Model(&entity.Promotion{})
	if f.ActiveOnly {
		q = q.Where("start_time <= ? AND end_time >= ?", f.Now, f.Now)
		if f.ExcludeUser != 0 {
			consumed, err := r.ConsumedIDs(f.ExcludeUser)
			if err != nil {
				return 0, nil, err
			}
			if len(consumed) > 0 {
				q = q.Where("id NOT IN ?", consumed)
			}
		}
	} else {
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
	}
	if f.Name != "" {
		q = q.Where("name LIKE ?", "%"+f.Name+"%")
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, nil, err
	}

	var promos []entity.Promotion
	err := q.Order("id").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&promos).Error
	return count, promos, err
}
