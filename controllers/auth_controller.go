package controllers

import (
	"errors"
	"time"

	"backend/pkg/resp"
	"backend/repository"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 7 * 24 * time.Hour

type AuthController struct {
	Users  *repository.UserRepository
	Secret string
}

func NewAuthController(db *gorm.DB, secret string) *AuthController {
	return &AuthController{
		Users:  repository.NewUserRepository(db),
		Secret: secret,
	}
}

// Login exchanges utorid/password for a bearer token.
func (ctl *AuthController) Login(c *gin.Context) {
	var body struct {
		Utorid   string `json:"utorid"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Utorid == "" || body.Password == "" {
		resp.BadRequest(c, "Missing required fields")
		return
	}

	user, err := ctl.Users.FindByUtorid(body.Utorid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resp.Unauthorized(c, "Invalid credentials")
			return
		}
		resp.ServerError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)) != nil {
		resp.Unauthorized(c, "Invalid credentials")
		return
	}

	now := time.Now()
	if err := ctl.Users.Update(user.ID, map[string]any{"last_login": now}); err != nil {
		resp.ServerError(c, err)
		return
	}

	token, expiresAt, err := utils.GenerateToken(user, ctl.Secret, tokenTTL)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	resp.OK(c, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// RequestReset issues a password reset token. The route throttles per
// client IP before the request reaches this handler.
func (ctl *AuthController) RequestReset(c *gin.Context) {
	var body struct {
		Utorid string `json:"utorid"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Utorid == "" {
		resp.BadRequest(c, "Missing required fields")
		return
	}

	user, err := ctl.Users.FindByUtorid(body.Utorid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resp.NotFound(c, "User not found")
			return
		}
		resp.ServerError(c, err)
		return
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(time.Hour)
	err = ctl.Users.Update(user.ID, map[string]any{
		"reset_token":      token,
		"reset_expires_at": expiresAt,
	})
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	resp.Accepted(c, gin.H{
		"expiresAt":  expiresAt.Format(time.RFC3339),
		"resetToken": token,
	})
}

// ResetPassword redeems a reset token. The utorid in the body must match
// the token's owner; a mismatch is unauthorized, not a bad request.
func (ctl *AuthController) ResetPassword(c *gin.Context) {
	tokenStr := c.Param("resetToken")

	var body struct {
		Utorid   string `json:"utorid"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Utorid == "" || body.Password == "" {
		resp.BadRequest(c, "Missing required fields")
		return
	}
	if !utils.ValidPassword(body.Password) {
		resp.BadRequest(c, "Password does not meet requirements")
		return
	}

	user, err := ctl.Users.FindByResetToken(tokenStr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resp.NotFound(c, "Invalid reset token")
			return
		}
		resp.ServerError(c, err)
		return
	}
	if user.Utorid != body.Utorid {
		resp.Unauthorized(c, "Token does not belong to this user")
		return
	}
	if user.ResetExpiresAt == nil || time.Now().After(*user.ResetExpiresAt) {
		resp.Gone(c, "Reset token expired")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	err = ctl.Users.Update(user.ID, map[string]any{
		"password":         string(hash),
		"reset_token":      nil,
		"reset_expires_at": nil,
	})
	if err != nil {
		resp.ServerError(c, err)
		return
	}
	resp.OK(c, gin.H{"message": "Password reset"})
}
