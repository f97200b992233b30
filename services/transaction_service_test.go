package services

import (
	"sync"
	"testing"

	"backend/entity"
	"backend/pkg/apperr"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTxnService(db *gorm.DB) *TransactionService {
	return NewTransactionService(db, NewPromotionService(db))
}

func userPoints(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var user entity.User
	require.NoError(t, db.First(&user, id).Error)
	return user.Points
}

func TestPurchaseCreditsPoints(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	result, err := svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid: customer.Utorid,
		Spent:  19.99,
	})
	require.NoError(t, err)
	require.Equal(t, 80, result.Earned)
	require.Equal(t, 80, result.Transaction.Amount)
	require.Equal(t, 80, userPoints(t, db, customer.ID))
}

func TestPurchaseWithPromotions(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)
	promo := makePromotion(t, db, entity.PromotionOneTime, fptr(20), nil, iptr(50))

	result, err := svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid:       customer.Utorid,
		Spent:        25,
		PromotionIDs: []uint{promo.ID},
	})
	require.NoError(t, err)
	require.Equal(t, 150, result.Earned)
	require.Equal(t, 150, userPoints(t, db, customer.ID))

	// The one-time promotion is consumed with the purchase.
	_, err = svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid:       customer.Utorid,
		Spent:        25,
		PromotionIDs: []uint{promo.ID},
	})
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestPurchaseSuspiciousCashierWithholdsCredit(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	cashier.Suspicious = true
	require.NoError(t, db.Save(cashier).Error)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	result, err := svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid: customer.Utorid,
		Spent:  19.99,
	})
	require.NoError(t, err)
	// Full amount stored on the record, nothing credited.
	require.Equal(t, 0, result.Earned)
	require.Equal(t, 80, result.Transaction.Amount)
	require.True(t, result.Transaction.Suspicious)
	require.Equal(t, 0, userPoints(t, db, customer.ID))
}

func TestSetSuspiciousToggle(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	result, err := svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid: customer.Utorid,
		Spent:  19.99,
	})
	require.NoError(t, err)
	require.Equal(t, 80, userPoints(t, db, customer.ID))
	txnID := result.Transaction.ID

	// Flagging debits the stored amount.
	txn, err := svc.SetSuspicious(txnID, true)
	require.NoError(t, err)
	require.True(t, txn.Suspicious)
	require.Equal(t, 0, userPoints(t, db, customer.ID))

	// Repeating the same direction is a no-op, not a second debit.
	txn, err = svc.SetSuspicious(txnID, true)
	require.NoError(t, err)
	require.True(t, txn.Suspicious)
	require.Equal(t, 0, userPoints(t, db, customer.ID))

	// Clearing re-credits the stored amount.
	txn, err = svc.SetSuspicious(txnID, false)
	require.NoError(t, err)
	require.False(t, txn.Suspicious)
	require.Equal(t, 80, userPoints(t, db, customer.ID))
}

// Two managers flagging the same purchase at once: the guarded transition
// lets exactly one flip apply the debit, the other lands as a no-op.
func TestSetSuspiciousConcurrentFlag(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	result, err := svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid: customer.Utorid,
		Spent:  19.99,
	})
	require.NoError(t, err)
	require.Equal(t, 80, userPoints(t, db, customer.ID))
	txnID := result.Transaction.ID

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SetSuspicious(txnID, true)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	// The debit applied exactly once.
	require.Equal(t, 0, userPoints(t, db, customer.ID))
	txn, err := svc.Get(txnID)
	require.NoError(t, err)
	require.True(t, txn.Suspicious)
}

func TestSetSuspiciousRejectsOtherTypes(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	user := makeUser(t, db, "custom01", entity.RoleRegular, 100, true)

	txn, err := svc.CreateRedemption(user, 40, "")
	require.NoError(t, err)

	_, err = svc.SetSuspicious(txn.ID, true)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRedemptionLifecycle(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	user := makeUser(t, db, "custom01", entity.RoleRegular, 100, true)

	txn, err := svc.CreateRedemption(user, 40, "gift card")
	require.NoError(t, err)
	require.Equal(t, -40, txn.Amount)
	require.False(t, txn.Processed)
	// Nothing moves until a cashier processes it.
	require.Equal(t, 100, userPoints(t, db, user.ID))

	processed, err := svc.ProcessRedemption(cashier, txn.ID)
	require.NoError(t, err)
	require.True(t, processed.Processed)
	require.NotNil(t, processed.RelatedID)
	require.Equal(t, cashier.ID, *processed.RelatedID)
	require.Equal(t, 60, userPoints(t, db, user.ID))

	// A second settlement attempt must not double-debit.
	_, err = svc.ProcessRedemption(cashier, txn.ID)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	require.Equal(t, 60, userPoints(t, db, user.ID))
}

func TestRedemptionInsufficientBalance(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	user := makeUser(t, db, "custom01", entity.RoleRegular, 10, true)

	_, err := svc.CreateRedemption(user, 40, "")
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestRedemptionRequiresVerified(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	user := makeUser(t, db, "custom01", entity.RoleRegular, 100, false)

	_, err := svc.CreateRedemption(user, 40, "")
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestTransferMovesBothBalances(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	sender := makeUser(t, db, "sender01", entity.RoleRegular, 100, true)
	recipient := makeUser(t, db, "recip001", entity.RoleRegular, 5, true)

	result, err := svc.CreateTransfer(sender, recipient.ID, 30, "thanks")
	require.NoError(t, err)
	require.Equal(t, 70, userPoints(t, db, sender.ID))
	require.Equal(t, 35, userPoints(t, db, recipient.ID))

	// Linked pair referencing each other's owner.
	require.Equal(t, -30, result.SenderTxn.Amount)
	require.Equal(t, 30, result.RecipientTxn.Amount)
	require.Equal(t, recipient.ID, *result.SenderTxn.RelatedID)
	require.Equal(t, sender.ID, *result.RecipientTxn.RelatedID)
}

func TestTransferInsufficientBalance(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	sender := makeUser(t, db, "sender01", entity.RoleRegular, 10, true)
	recipient := makeUser(t, db, "recip001", entity.RoleRegular, 0, true)

	_, err := svc.CreateTransfer(sender, recipient.ID, 30, "")
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	// Atomic: neither balance moved and no records were written.
	require.Equal(t, 10, userPoints(t, db, sender.ID))
	require.Equal(t, 0, userPoints(t, db, recipient.ID))
	var cnt int64
	require.NoError(t, db.Model(&entity.Transaction{}).Count(&cnt).Error)
	require.Zero(t, cnt)
}

// Two transfers racing against one balance: the conditional debit admits
// only the one the balance still covers.
func TestTransferConcurrentDebits(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	sender := makeUser(t, db, "sender01", entity.RoleRegular, 100, true)
	recipient := makeUser(t, db, "recip001", entity.RoleRegular, 0, true)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateTransfer(sender, recipient.ID, 70, "")
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
	require.Equal(t, 30, userPoints(t, db, sender.ID))
	require.Equal(t, 70, userPoints(t, db, recipient.ID))
}

// Two purchases racing to consume the same one-time promotion: the unique
// consumption row admits one, the other gets a conflict and leaves no
// ledger trace.
func TestPurchaseConcurrentOneTimePromotion(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)
	promo := makePromotion(t, db, entity.PromotionOneTime, fptr(20), nil, iptr(50))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreatePurchase(cashier, &PurchaseInput{
				Utorid:       customer.Utorid,
				Spent:        25,
				PromotionIDs: []uint{promo.ID},
			})
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
	// One credited purchase, one consumption row, nothing from the loser.
	require.Equal(t, 150, userPoints(t, db, customer.ID))
	var txnCnt, consumedCnt int64
	require.NoError(t, db.Model(&entity.Transaction{}).Count(&txnCnt).Error)
	require.NoError(t, db.Model(&entity.UserPromotion{}).Count(&consumedCnt).Error)
	require.Equal(t, int64(1), txnCnt)
	require.Equal(t, int64(1), consumedCnt)
}

func TestAdjustmentAppliesImmediately(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	manager := makeUser(t, db, "manage01", entity.RoleManager, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	purchase, err := svc.CreatePurchase(cashier, &PurchaseInput{
		Utorid: customer.Utorid,
		Spent:  10,
	})
	require.NoError(t, err)
	require.Equal(t, 40, userPoints(t, db, customer.ID))

	txn, _, err := svc.CreateAdjustment(manager, &AdjustmentInput{
		Utorid:    customer.Utorid,
		Amount:    -50,
		RelatedID: purchase.Transaction.ID,
	})
	require.NoError(t, err)
	require.Equal(t, -50, txn.Amount)
	// Adjustments may push a balance negative.
	require.Equal(t, -10, userPoints(t, db, customer.ID))
}

func TestAdjustmentRequiresManager(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	_, _, err := svc.CreateAdjustment(cashier, &AdjustmentInput{
		Utorid: customer.Utorid,
		Amount: 10,
	})
	require.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

// The balance always equals the sum of applied transaction amounts.
func TestLedgerBalanceConsistency(t *testing.T) {
	db := testDB(t)
	svc := newTxnService(db)
	cashier := makeUser(t, db, "cashier1", entity.RoleCashier, 0, true)
	manager := makeUser(t, db, "manage01", entity.RoleManager, 0, true)
	customer := makeUser(t, db, "custom01", entity.RoleRegular, 0, true)

	_, err := svc.CreatePurchase(cashier, &PurchaseInput{Utorid: customer.Utorid, Spent: 25})
	require.NoError(t, err)
	purchase2, err := svc.CreatePurchase(cashier, &PurchaseInput{Utorid: customer.Utorid, Spent: 10})
	require.NoError(t, err)
	_, _, err = svc.CreateAdjustment(manager, &AdjustmentInput{
		Utorid:    customer.Utorid,
		Amount:    -15,
		RelatedID: purchase2.Transaction.ID,
	})
	require.NoError(t, err)
	redemption, err := svc.CreateRedemption(customer, 20, "")
	require.NoError(t, err)
	_, err = svc.ProcessRedemption(cashier, redemption.ID)
	require.NoError(t, err)

	var sum int
	require.NoError(t, db.Model(&entity.Transaction{}).
		Where("user_id = ?", customer.ID).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error)
	require.Equal(t, sum, userPoints(t, db, customer.ID))
}
