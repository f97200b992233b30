package entity

import (
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionRedemption TransactionType = "redemption"
	TransactionTransfer   TransactionType = "transfer"
	TransactionEvent      TransactionType = "event"
)

// Transaction is the immutable record of one point-affecting operation.
// Amount, Type and UserID never change after creation; only Suspicious
// (purchase/adjustment) and Processed/RelatedID (redemption processing)
// may be updated afterwards.
type Transaction struct {
	gorm.Model
	UserID uint            `gorm:"index;not null" json:"userId"`
	User   User            `json:"-"`
	Type   TransactionType `gorm:"size:16;index;not null" json:"type"`

	// Signed point delta applied to UserID's balance. Redemptions store the
	// requested value negated; suspicious purchases store the computed value
	// even though nothing is credited until the flag is cleared.
	Amount int      `gorm:"not null" json:"amount"`
	Spent  *float64 `json:"spent,omitempty"`

	// Polymorphic reference, meaning depends on Type; see Related().
	RelatedID *uint `json:"relatedId,omitempty"`

	Suspicious bool   `gorm:"not null;default:false" json:"suspicious"`
	Processed  bool   `gorm:"not null;default:false" json:"processed"`
	Remark     string `json:"remark"`

	CreatedByID uint `gorm:"column:created_by;index;not null" json:"createdBy"`
	Creator     User `gorm:"foreignKey:CreatedByID" json:"-"`

	Promotions []TransactionPromotion `json:"-"`
}

type RelatedKind string

const (
	RelatedNone        RelatedKind = ""
	RelatedTransaction RelatedKind = "transaction" // adjustment target
	RelatedCashier     RelatedKind = "cashier"     // redemption processor
	RelatedUser        RelatedKind = "user"        // transfer counterparty
	RelatedEvent       RelatedKind = "event"       // awarding event
)

type RelatedRef struct {
	Kind RelatedKind
	ID   uint
}

// Related resolves the polymorphic related_id column into a typed reference.
func (t *Transaction) Related() RelatedRef {
	if t.RelatedID == nil {
		return RelatedRef{Kind: RelatedNone}
	}
	switch t.Type {
	case TransactionAdjustment:
		return RelatedRef{Kind: RelatedTransaction, ID: *t.RelatedID}
	case TransactionRedemption:
		return RelatedRef{Kind: RelatedCashier, ID: *t.RelatedID}
	case TransactionTransfer:
		return RelatedRef{Kind: RelatedUser, ID: *t.RelatedID}
	case TransactionEvent:
		return RelatedRef{Kind: RelatedEvent, ID: *t.RelatedID}
	}
	return RelatedRef{Kind: RelatedNone}
}
