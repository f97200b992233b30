package controllers

import (
	"strconv"
	"time"

	"backend/entity"
	"backend/pkg/resp"
	"backend/repository"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserController struct {
	Svc    *services.UserService
	Promos *services.PromotionService
}

func NewUserController(db *gorm.DB, promos *services.PromotionService) *UserController {
	return &UserController{Svc: services.NewUserService(db), Promos: promos}
}

func promotionViews(promos []entity.Promotion) []gin.H {
	out := make([]gin.H, 0, len(promos))
	for _, p := range promos {
		out = append(out, gin.H{
			"id":          p.ID,
			"name":        p.Name,
			"minSpending": p.MinSpending,
			"rate":        p.Rate,
			"points":      p.Points,
		})
	}
	return out
}

// fullUserView is the manager-facing and self-facing projection.
func fullUserView(u *entity.User, promos []entity.Promotion) gin.H {
	view := gin.H{
		"id":         u.ID,
		"utorid":     u.Utorid,
		"name":       u.Name,
		"email":      u.Email,
		"birthday":   u.Birthday,
		"role":       u.Role,
		"points":     u.Points,
		"createdAt":  u.CreatedAt.Format(time.RFC3339),
		"lastLogin":  u.LastLogin,
		"verified":   u.Verified,
		"suspicious": u.Suspicious,
	}
	if promos != nil {
		view["promotions"] = promotionViews(promos)
	}
	return view
}

// limitedUserView is what a cashier sees when looking up a customer.
func limitedUserView(u *entity.User, promos []entity.Promotion) gin.H {
	return gin.H{
		"id":         u.ID,
		"utorid":     u.Utorid,
		"name":       u.Name,
		"points":     u.Points,
		"verified":   u.Verified,
		"promotions": promotionViews(promos),
	}
}

// Register creates an account with a temporary password and an activation
// token the new user redeems within a week.
func (ctl *UserController) Register(c *gin.Context) {
	var body struct {
		Utorid string `json:"utorid"`
		Name   string `json:"name"`
		Email  string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	user, err := ctl.Svc.Register(&services.RegisterInput{
		Utorid: body.Utorid,
		Name:   body.Name,
		Email:  body.Email,
	})
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.Created(c, gin.H{
		"id":         user.ID,
		"utorid":     user.Utorid,
		"name":       user.Name,
		"email":      user.Email,
		"verified":   user.Verified,
		"expiresAt":  user.ResetExpiresAt.Format(time.RFC3339),
		"resetToken": *user.ResetToken,
	})
}

func (ctl *UserController) List(c *gin.Context) {
	f := repository.UserFilter{
		Name: c.Query("name"),
		Role: c.Query("role"),
	}
	if v := c.Query("verified"); v != "" {
		b := v == "true"
		f.Verified = &b
	}
	if v := c.Query("activated"); v != "" {
		b := v == "true"
		f.Activated = &b
	}

	var err error
	if f.Page, f.Limit, err = pagination(c); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	count, users, err := ctl.Svc.List(f)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	results := make([]gin.H, 0, len(users))
	for i := range users {
		results = append(results, fullUserView(&users[i], nil))
	}
	resp.OK(c, gin.H{"count": count, "results": results})
}

func (ctl *UserController) Me(c *gin.Context) {
	user, err := ctl.Svc.Get(utils.CurrentUserID(c))
	if err != nil {
		resp.Error(c, err)
		return
	}
	promos, err := ctl.Promos.AvailableOneTime(user.ID)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	resp.OK(c, fullUserView(user, promos))
}

func (ctl *UserController) UpdateMe(c *gin.Context) {
	var body struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Birthday *string `json:"birthday"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	user, err := ctl.Svc.UpdateProfile(utils.CurrentUserID(c), &services.ProfileUpdate{
		Name:     body.Name,
		Email:    body.Email,
		Birthday: body.Birthday,
	})
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, fullUserView(user, nil))
}

func (ctl *UserController) UpdatePassword(c *gin.Context) {
	var body struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}
	if err := ctl.Svc.ChangePassword(utils.CurrentUserID(c), body.Old, body.New); err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, gin.H{"message": "Password updated"})
}

// GetUser returns a full projection for managers and a reduced one for
// cashiers; both include the customer's available one-time promotions.
func (ctl *UserController) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid user ID")
		return
	}

	user, err := ctl.Svc.Get(uint(id))
	if err != nil {
		resp.Error(c, err)
		return
	}
	promos, err := ctl.Promos.AvailableOneTime(user.ID)
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	if utils.CurrentRole(c).Has(entity.RoleManager) {
		resp.OK(c, fullUserView(user, promos))
		return
	}
	resp.OK(c, limitedUserView(user, promos))
}

func (ctl *UserController) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		resp.BadRequest(c, "Invalid user ID")
		return
	}

	var body struct {
		Email      *string `json:"email"`
		Verified   *bool   `json:"verified"`
		Suspicious *bool   `json:"suspicious"`
		Role       *string `json:"role"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(c, "Invalid request body")
		return
	}

	actor, err := ctl.Svc.Get(utils.CurrentUserID(c))
	if err != nil {
		resp.Error(c, err)
		return
	}

	user, err := ctl.Svc.AdminUpdate(actor, uint(id), &services.AdminUserUpdate{
		Email:      body.Email,
		Verified:   body.Verified,
		Suspicious: body.Suspicious,
		Role:       body.Role,
	})
	if err != nil {
		resp.Error(c, err)
		return
	}
	resp.OK(c, fullUserView(user, nil))
}
