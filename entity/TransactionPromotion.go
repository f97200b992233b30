package entity

import (
	"gorm.io/gorm"
)

// TransactionPromotion links a purchase/adjustment to the promotions that
// were applied when its amount was computed.
type TransactionPromotion struct {
	gorm.Model
	TransactionID uint        `gorm:"index:uniq_txn_promo,unique" json:"transactionId"`
	Transaction   Transaction `json:"-"`

	PromotionID uint      `gorm:"index:uniq_txn_promo,unique" json:"promotionId"`
	Promotion   Promotion `json:"-"`
}

func (TransactionPromotion) TableName() string { return "transaction_promotions" }
