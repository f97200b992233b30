package repository

import (
	"backend/entity"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	DB *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

func (r *TransactionRepository) Create(tx *gorm.DB, t *entity.Transaction) error {
	return tx.Create(t).Error
}

func (r *TransactionRepository) FindByID(id uint) (*entity.Transaction, error) {
	var t entity.Transaction
	err := r.DB.Preload("User").Preload("Creator").Preload("Promotions").
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) LinkPromotions(tx *gorm.DB, txnID uint, promotionIDs []uint) error {
	for _, pid := range promotionIDs {
		link := entity.TransactionPromotion{TransactionID: txnID, PromotionID: pid}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

// MarkProcessed flips an unprocessed redemption to processed and records the
// processing cashier. The type/processed preconditions live in the WHERE
// clause so a second processing attempt affects zero rows.
func (r *TransactionRepository) MarkProcessed(tx *gorm.DB, txnID, cashierID uint) (bool, error) {
	res := tx.Model(&entity.Transaction{}).
		Where("id = ? AND type = ? AND processed = ?", txnID, entity.TransactionRedemption, false).
		Updates(map[string]any{"processed": true, "related_id": cashierID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetSuspiciousFromTo toggles the suspicious flag only when the stored value
// still matches from. Guards the retroactive ledger credit/debit against
// double application.
func (r *TransactionRepository) SetSuspiciousFromTo(tx *gorm.DB, txnID uint, from, to bool) (bool, error) {
	res := tx.Model(&entity.Transaction{}).
		Where("id = ? AND suspicious = ?", txnID, from).
		Update("suspicious", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) IDsForPromotion(promotionID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&entity.TransactionPromotion{}).
		Where("promotion_id = ?", promotionID).
		Pluck("transaction_id", &ids).Error
	return ids, err
}

func (r *TransactionRepository) PromotionIDsFor(txnID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&entity.TransactionPromotion{}).
		Where("transaction_id = ?", txnID).
		Pluck("promotion_id", &ids).Error
	return ids, err
}

type TransactionFilter struct {
	UserID      *uint  // restrict to one user's transactions
	UserIDs     []uint // resolved from a name search; nil means no filter
	HasUserIDs  bool
	CreatedBy   *uint
	Suspicious  *bool
	TxnIDs      []uint // resolved from a promotion filter; nil means no filter
	HasTxnIDs   bool
	Type        string
	RelatedID   *uint
	AmountGTE   *int
	AmountLTE   *int
	Page, Limit int
}

func (r *TransactionRepository) List(f TransactionFilter) (int64, []entity.Transaction, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}

	q := r.DB.Model(&entity.Transaction{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.HasUserIDs {
		q = q.Where("user_id IN ?", f.UserIDs)
	}
	if f.CreatedBy != nil {
		q = q.Where("created_by = ?", *f.CreatedBy)
	}
	if f.Suspicious != nil {
		q = q.Where("suspicious = ?", *f.Suspicious)
	}
	if f.HasTxnIDs {
		q = q.Where("id IN ?", f.TxnIDs)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
		if f.RelatedID != nil {
			q = q.Where("related_id = ?", *f.RelatedID)
		}
	}
	if f.AmountGTE != nil {
		q = q.Where("amount >= ?", *f.AmountGTE)
	}
	if f.AmountLTE != nil {
		q = q.Where("amount <= ?", *f.AmountLTE)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, nil, err
	}

	var txns []entity.Transaction
	err := q.Preload("User").Preload("Creator").Preload("Promotions").
		Order("id").
		Limit(f.Limit).Offset((f.Page - 1) * f.Limit).
		Find(&txns).Error
	return count, txns, err
}
