package entity

import (
	"gorm.io/gorm"
)

// UserPromotion records the consumption of a one-time promotion by a user.
// Created atomically with the qualifying purchase; its existence is what
// makes a second use of the same promotion a conflict.
type UserPromotion struct {
	gorm.Model
	PromotionID uint      `gorm:"index:uniq_user_promo,unique" json:"promotionId"`
	Promotion   Promotion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`

	UserID uint `gorm:"index:uniq_user_promo,unique" json:"userId"`
	User   User `json:"-"`
}

func (UserPromotion) TableName() string { return "user_promotions" }
