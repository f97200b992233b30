package controllers

import (
	"strconv"

	"backend/entity"
	"backend/pkg/apperr"
	"backend/pkg/resp"
	"backend/repository"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TransactionController struct {
	Svc   *services.TransactionService
	Users *repository.UserRepository
}

func NewTransactionController(db *gorm.DB, svc *services.TransactionService) *TransactionController {
	return &TransactionController{Svc: svc, Users: repository.NewUserRepository(db)}
}

func promotionIDs(links []entity.TransactionPromotion) []uint {
	ids := make([]uint, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.PromotionID)
	}
	return ids
}

// txnView is the detail/list projection. Redemptions additionally expose
// the requested amount as a positive number.
func txnView(t *entity.Transaction) gin.H {
	view := gin.H{
		"id":           t.ID,
		"utorid":       t.User.Utorid,
		"amount":       t.Amount,
		"type":         t.Type,
		"spent":        t.Spent,
		"relatedId":    t.RelatedID,
		"promotionIds": promotionIDs(t.Promotions),
		"suspicious":   t.Suspicious,
		"remark":       t.Remark,
		"createdBy":    t.Creator.Utorid,
	}
	if t.Type == entity.TransactionRedemption {
		view["redeemed"] = -t.Amount
		view["processed"] = t.Processed
	}
	return view
}

// Create dispatches on the body's type field: cashiers record purchases,
// managers record adjustments.
func (ctl *TransactionController) Create(c *gin.Context) {
	var body struct {
		Utorid       string  `json:"utorid"`
		Type         string  `json:"type"`
		Spent        float64 `json:"spent"`
		Amount       int     `json:"amount"`
		RelatedID    uint    `json:"relatedId"`
		PromotionIDs []uint  `json:"promotionIds"`
		Remark       string  `json:"remark"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	creator, err := ctl.Users.FindByID(utils.CurrentUserID(c))
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	switch body.Type {
	case "purchase":
		result, err := ctl.Svc.CreatePurchase(creator, &services.PurchaseInput{
			Utorid:       body.Utorid,
			Spent:        body.Spent,
			PromotionIDs: body.PromotionIDs,
			Remark:       body.Remark,
		})
		if err != nil {
			resp.Error(c, err)
			return
		}
		resp.Created(c, gin.H{
			"id":           result.Transaction.ID,
			"utorid":       result.Customer.Utorid,
			"type":         result.Transaction.Type,
			"spent":        result.Transaction.Spent,
			"earned":       result.Earned,
			"remark":       result.Transaction.Remark,
			"promotionIds": body.PromotionIDs,
			"createdBy":    creator.Utorid,
		})
	case "adjustment":
		txn, customer, err := ctl.Svc.CreateAdjustment(creator, &services.AdjustmentInput{
			Utorid:       body.Utorid,
			Amount:       body.Amount,
			RelatedID:    body.RelatedID,
			PromotionIDs: body.PromotionIDs,
			Remark:       body.Remark,
		})
		if err != nil {
			resp.Error(c, err)
			return
		}
		resp.Created(c, gin.H{
			"id":           txn.ID,
			"utorid":       customer.Utorid,
			"amount":       txn.Amount,
			"type":         txn.Type,
			"relatedId":    txn.RelatedID,
			"remark":       txn.Remark,
			"promotionIds": body.PromotionIDs,
			"createdBy":    creator.Utorid,
		})
	default:
		resp.BadRequest(c, "Invalid transaction type")
	}
}

// filterFromQuery builds the shared transaction list filter. relatedId is
// only meaningful alongside type.
func (ctl *TransactionController) filterFromQuery(c *gin.Context) (*repository.TransactionFilter, error) {
	f := repository.TransactionFilter{Type: c.Query("type")}

	if v := c.Query("relatedId"); v != "" {
		if f.Type == "" {
			return nil, apperr.Validation("relatedId requires type")
		}
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, apperr.Validation("Invalid relatedId")
		}
		rid := uint(id)
		f.RelatedID = &rid
	}

	if v := c.Query("promotionId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, apperr.Validation("Invalid promotionId")
		}
		ids, err := ctl.Svc.Txns.IDsForPromotion(uint(id))
		if err != nil {
			return nil, err
		}
		f.TxnIDs = ids
		f.HasTxnIDs = true
	}

	if v := c.Query("amount"); v != "" {
		amount, err := strconv.Atoi(v)
		if err != nil {
			return nil, apperr.Validation("Invalid amount")
		}
		switch c.Query("operator") {
		case "gte":
			f.AmountGTE = &amount
		case "lte":
			f.AmountLTE = &amount
		default:
			return nil, apperr.Validation("amount requires operator gte or lte")
		}
	}

	var err error
	if f.Page, f.Limit, err = pagination(c); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return &f, nil
}

// List is the manager-wide ledger view with name/creator/suspicious filters
// on top of the shared ones.
func (ctl *TransactionController) List(c *gin.Context) {
	f, err := ctl.filterFromQuery(c)
	if err != nil {
		resp.Error(c, err)
		return
	}

	if name := c.Query("name"); name != "" {
		ids, err := ctl.Users.IDsMatchingName(name)
		if err != nil {
			resp.ServerError(c, err)
			return
		}
		f.UserIDs = ids
		f.HasUserIDs = true
	}
	if v := c.Query("createdBy"); v != "" {
		creator, err := ctl.Users.FindByUtorid(v)
		if err != nil {
			resp.OK(c, gin.H{"count": 0, "results": []gin.H{}})
			return
		}
		f.CreatedBy = &creator.ID
	}
	f.Suspicious = queryBool(c, "suspicious")

	count, txns, err := ctl.Svc.List(*f)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	resp.OK(c, gin.H{"count": count, "results": txnViews(txns)})
}

func txnViews(txns []entity.Transaction) []gin.H {
	out := make([]gin.H, 0, len(txns))
	for i := range txns {
		out = append(out, txnView(&txns[i]))
	}
	return out
}

func (ctl *TransactionController) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("transactionId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid transaction ID")
		return
	}
	txn, err := ctl.Svc.Get(uint(id))
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, txnView(txn))
}

// SetSuspicious flags or clears a purchase/adjustment, retroactively
// moving the stored amount out of or into the owner's balance.
func (ctl *TransactionController) SetSuspicious(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("transactionId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid transaction ID")
		return
	}

	var body struct {
		Suspicious *bool `json:"suspicious"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Suspicious == nil {
		resp.BadRequest(c, "Missing required fields")
		return
	}

	txn, err := ctl.Svc.SetSuspicious(uint(id), *body.Suspicious)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, txnView(txn))
}

// Process settles a pending redemption; the body must carry processed=true.
func (ctl *TransactionController) Process(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("transactionId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid transaction ID")
		return
	}

	var body struct {
		Processed *bool `json:"processed"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Processed == nil || !*body.Processed {
		resp.BadRequest(c, "processed must be true")
		return
	}

	cashier, err := ctl.Users.FindByID(utils.CurrentUserID(c))
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	txn, err := ctl.Svc.ProcessRedemption(cashier, uint(id))
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, gin.H{
		"id":          txn.ID,
		"utorid":      txn.User.Utorid,
		"type":        txn.Type,
		"processedBy": cashier.Utorid,
		"redeemed":    -txn.Amount,
		"remark":      txn.Remark,
		"createdBy":   txn.Creator.Utorid,
	})
}

// CreateRedemption opens a pending redemption for the caller.
func (ctl *TransactionController) CreateRedemption(c *gin.Context) {
	var body struct {
		Type   string `json:"type"`
		Amount int    `json:"amount"`
		Remark string `json:"remark"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Type != "redemption" {
		resp.BadRequest(c, "Invalid transaction type")
		return
	}

	user, err := ctl.Users.FindByID(utils.CurrentUserID(c))
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	txn, err := ctl.Svc.CreateRedemption(user, body.Amount, body.Remark)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, gin.H{
		"id":          txn.ID,
		"utorid":      user.Utorid,
		"type":        txn.Type,
		"processedBy": nil,
		"amount":      body.Amount,
		"remark":      txn.Remark,
		"createdBy":   user.Utorid,
	})
}

// CreateTransfer moves points from the caller to the user in the path.
func (ctl *TransactionController) CreateTransfer(c *gin.Context) {
	recipientID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid user ID")
		return
	}

	var body struct {
		Type   string `json:"type"`
		Amount int    `json:"amount"`
		Remark string `json:"remark"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Type != "transfer" {
		resp.BadRequest(c, "Invalid transaction type")
		return
	}

	sender, err := ctl.Users.FindByID(utils.CurrentUserID(c))
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	result, err := ctl.Svc.CreateTransfer(sender, uint(recipientID), body.Amount, body.Remark)
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, gin.H{
		"id":        result.SenderTxn.ID,
		"sender":    sender.Utorid,
		"recipient": result.Recipient.Utorid,
		"type":      result.SenderTxn.Type,
		"sent":      body.Amount,
		"remark":    result.SenderTxn.Remark,
		"createdBy": sender.Utorid,
	})
}

// MyTransactions lists the caller's own ledger with the shared filters.
func (ctl *TransactionController) MyTransactions(c *gin.Context) {
	f, err := ctl.filterFromQuery(c)
	if err != nil {
		resp.Error(c, err)
		return
	}
	userID := utils.CurrentUserID(c)
	f.UserID = &userID

	count, txns, err := ctl.Svc.List(*f)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	resp.OK(c, gin.H{"count": count, "results": txnViews(txns)})
}
