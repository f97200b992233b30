package services

import (
	"errors"
	"strings"
	"time"

	"backend/entity"
	"backend/pkg/apperr"
	"backend/repository"

	"gorm.io/gorm"
)

// TransactionService owns the per-type transaction state machines and the
// point ledger. Every operation that creates a record and moves a balance
// does both inside one DB transaction; sufficiency and idempotency checks
// are guarded conditional updates evaluated by the storage engine, never a
// read followed by an unconditional write.
type TransactionService struct {
	DB         *gorm.DB
	Txns       *repository.TransactionRepository
	Users      *repository.UserRepository
	Promotions *PromotionService
}

func NewTransactionService(db *gorm.DB, promos *PromotionService) *TransactionService {
	return &TransactionService{
		DB:         db,
		Txns:       repository.NewTransactionRepository(db),
		Users:      repository.NewUserRepository(db),
		Promotions: promos,
	}
}

// ----- Purchase -----

type PurchaseInput struct {
	Utorid       string
	Spent        float64
	PromotionIDs []uint
	Remark       string
}

type PurchaseResult struct {
	Transaction *entity.Transaction
	Customer    *entity.User
	// Earned is what actually reached the ledger: zero when the creating
	// cashier is flagged suspicious, even though the full computed value is
	// stored on the transaction for a later un-flag.
	Earned int
}

func (s *TransactionService) CreatePurchase(creator *entity.User, in *PurchaseInput) (*PurchaseResult, error) {
	if in.Spent <= 0 {
		return nil, apperr.Validation("Invalid spent amount")
	}

	customer, err := s.findUserByUtorid(in.Utorid)
	if err != nil {
		return nil, err
	}

	promos, err := s.Promotions.ValidateForPurchase(customer.ID, in.PromotionIDs, time.Now())
	if err != nil {
		return nil, err
	}

	earned := s.Promotions.Evaluate(in.Spent, promos)
	isSuspicious := creator.Suspicious
	credited := earned
	if isSuspicious {
		credited = 0
	}

	spent := in.Spent
	txn := entity.Transaction{
		UserID:      customer.ID,
		Type:        entity.TransactionPurchase,
		Amount:      earned,
		Spent:       &spent,
		Suspicious:  isSuspicious,
		Remark:      in.Remark,
		CreatedByID: creator.ID,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Txns.Create(tx, &txn); err != nil {
			return err
		}
		if err := s.Txns.LinkPromotions(tx, txn.ID, in.PromotionIDs); err != nil {
			return err
		}
		for _, promo := range promos {
			if promo.Type == entity.PromotionOneTime {
				if err := s.Promotions.Repo.RecordConsumption(tx, customer.ID, promo.ID); err != nil {
					// A concurrent purchase can consume the promotion between
					// the eligibility check and this insert; the unique index
					// settles the race.
					if isDuplicateKey(err) {
						return apperr.Conflict("Promotion already used")
					}
					return err
				}
			}
		}
		if !isSuspicious {
			return s.Users.ApplyPointsDelta(tx, customer.ID, earned)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Transaction: &txn, Customer: customer, Earned: credited}, nil
}

// ----- Adjustment -----

type AdjustmentInput struct {
	Utorid       string
	Amount       int
	RelatedID    uint
	PromotionIDs []uint
	Remark       string
}

func (s *TransactionService) CreateAdjustment(creator *entity.User, in *AdjustmentInput) (*entity.Transaction, *entity.User, error) {
	if !creator.Role.Has(entity.RoleManager) {
		return nil, nil, apperr.Forbidden("Forbidden")
	}

	customer, err := s.findUserByUtorid(in.Utorid)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.Txns.FindByID(in.RelatedID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("Related transaction not found")
		}
		return nil, nil, err
	}

	relatedID := in.RelatedID
	txn := entity.Transaction{
		UserID:      customer.ID,
		Type:        entity.TransactionAdjustment,
		Amount:      in.Amount,
		RelatedID:   &relatedID,
		Remark:      in.Remark,
		CreatedByID: creator.ID,
	}

	// Adjustments apply immediately and may push a balance negative.
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Txns.Create(tx, &txn); err != nil {
			return err
		}
		if err := s.Txns.LinkPromotions(tx, txn.ID, in.PromotionIDs); err != nil {
			return err
		}
		return s.Users.ApplyPointsDelta(tx, customer.ID, in.Amount)
	})
	if err != nil {
		return nil, nil, err
	}
	return &txn, customer, nil
}

// ----- Redemption -----

func (s *TransactionService) CreateRedemption(user *entity.User, amount int, remark string) (*entity.Transaction, error) {
	if !user.Verified {
		return nil, apperr.Forbidden("User not verified")
	}
	if amount <= 0 {
		return nil, apperr.Validation("Invalid amount")
	}

	txn := entity.Transaction{
		UserID:      user.ID,
		Type:        entity.TransactionRedemption,
		Amount:      -amount,
		Processed:   false,
		Remark:      remark,
		CreatedByID: user.ID,
	}

	// The balance is not debited until processing, but the sufficiency check
	// reads the row inside the same transaction the record lands in.
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var current entity.User
		if err := tx.First(&current, user.ID).Error; err != nil {
			return err
		}
		if current.Points < amount {
			return apperr.Conflict("Insufficient points")
		}
		return s.Txns.Create(tx, &txn)
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *TransactionService) ProcessRedemption(cashier *entity.User, txnID uint) (*entity.Transaction, error) {
	txn, err := s.Txns.FindByID(txnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Transaction not found")
		}
		return nil, err
	}
	if txn.Type != entity.TransactionRedemption {
		return nil, apperr.Validation("Transaction is not a redemption")
	}
	if txn.Processed {
		return nil, apperr.Conflict("Transaction already processed")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.Txns.MarkProcessed(tx, txnID, cashier.ID)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race to another cashier.
			return apperr.Conflict("Transaction already processed")
		}
		// Amount is stored negative; applying it is the debit.
		return s.Users.ApplyPointsDelta(tx, txn.UserID, txn.Amount)
	})
	if err != nil {
		return nil, err
	}
	return s.Txns.FindByID(txnID)
}

// ----- Suspicious toggle -----

// SetSuspicious flags or clears a purchase/adjustment. Clearing credits the
// stored amount, flagging debits it. The transition is guarded on the stored
// flag inside the update statement, so repeating the same direction leaves
// the ledger alone and returns the record unchanged.
func (s *TransactionService) SetSuspicious(txnID uint, suspicious bool) (*entity.Transaction, error) {
	txn, err := s.Txns.FindByID(txnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Transaction not found")
		}
		return nil, err
	}
	if txn.Type != entity.TransactionPurchase && txn.Type != entity.TransactionAdjustment {
		return nil, apperr.Validation("Transaction cannot be flagged")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := s.Txns.SetSuspiciousFromTo(tx, txnID, !suspicious, suspicious)
		if err != nil {
			return err
		}
		if !ok {
			// Already in the requested state; no delta to apply.
			return nil
		}
		delta := txn.Amount
		if suspicious {
			delta = -delta
		}
		return s.Users.ApplyPointsDelta(tx, txn.UserID, delta)
	})
	if err != nil {
		return nil, err
	}
	return s.Txns.FindByID(txnID)
}

// ----- Transfer -----

type TransferResult struct {
	SenderTxn    *entity.Transaction
	RecipientTxn *entity.Transaction
	Recipient    *entity.User
}

// CreateTransfer writes the linked pair and moves both balances in one
// transaction. The two balance updates run in ascending user-id order so
// concurrent transfers between the same pair cannot deadlock.
func (s *TransactionService) CreateTransfer(sender *entity.User, recipientID uint, amount int, remark string) (*TransferResult, error) {
	if !sender.Verified {
		return nil, apperr.Forbidden("User not verified")
	}
	if amount <= 0 {
		return nil, apperr.Validation("Invalid amount")
	}

	recipient, err := s.Users.FindByID(recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Recipient not found")
		}
		return nil, err
	}

	recipID := recipient.ID
	senderID := sender.ID
	senderTxn := entity.Transaction{
		UserID:      senderID,
		Type:        entity.TransactionTransfer,
		Amount:      -amount,
		RelatedID:   &recipID,
		Remark:      remark,
		CreatedByID: senderID,
	}
	recipientTxn := entity.Transaction{
		UserID:      recipID,
		Type:        entity.TransactionTransfer,
		Amount:      amount,
		RelatedID:   &senderID,
		Remark:      remark,
		CreatedByID: senderID,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		debit := func() error {
			ok, err := s.Users.DebitIfSufficient(tx, senderID, amount)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Conflict("Insufficient points")
			}
			return nil
		}
		credit := func() error {
			return s.Users.ApplyPointsDelta(tx, recipID, amount)
		}

		if senderID < recipID {
			if err := debit(); err != nil {
				return err
			}
			if err := credit(); err != nil {
				return err
			}
		} else {
			if err := credit(); err != nil {
				return err
			}
			if err := debit(); err != nil {
				return err
			}
		}

		if err := s.Txns.Create(tx, &senderTxn); err != nil {
			return err
		}
		return s.Txns.Create(tx, &recipientTxn)
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{SenderTxn: &senderTxn, RecipientTxn: &recipientTxn, Recipient: recipient}, nil
}

// ----- Reads -----

func (s *TransactionService) Get(txnID uint) (*entity.Transaction, error) {
	txn, err := s.Txns.FindByID(txnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Transaction not found")
		}
		return nil, err
	}
	return txn, nil
}

func (s *TransactionService) List(f repository.TransactionFilter) (int64, []entity.Transaction, error) {
	return s.Txns.List(f)
}

// isDuplicateKey detects a unique-index violation. The sqlite driver only
// produces gorm.ErrDuplicatedKey with error translation enabled, so the raw
// message is checked as well.
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *TransactionService) findUserByUtorid(utorid string) (*entity.User, error) {
	if utorid == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	user, err := s.Users.FindByUtorid(utorid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return user, nil
}
