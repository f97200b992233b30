package middlewares

import (
	"strings"

	"backend/entity"
	"backend/pkg/resp"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthMiddleware validates the bearer token and, when a minimum role is
// given, enforces the cumulative role hierarchy.
func AuthMiddleware(secret string, minRole ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			resp.Unauthorized(c, "missing or invalid token")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(strings.TrimPrefix(h, "Bearer "), secret)
		if err != nil {
			resp.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("utorid", claims.Utorid)
		c.Set("role", claims.Role)

		if len(minRole) > 0 && !claims.Role.Has(minRole[0]) {
			resp.Forbidden(c, "Forbidden")
			c.Abort()
			return
		}
	}
}

// OptionalAuthMiddleware attaches claims when a valid bearer token is
// present but never rejects the request. Handlers behind it treat an
// unauthenticated caller as an unprivileged viewer.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return
		}
		claims, err := utils.ParseToken(strings.TrimPrefix(h, "Bearer "), secret)
		if err != nil {
			return
		}
		c.Set("userId", claims.UserID)
		c.Set("utorid", claims.Utorid)
		c.Set("role", claims.Role)
	}
}

// EventOrganizerMiddleware admits managers outright and otherwise requires
// the caller to be an organizer of the event in the route. Sets
// "isManager" for handlers that branch on it.
func EventOrganizerMiddleware(db *gorm.DB, secret string) gin.HandlerFunc {
	auth := AuthMiddleware(secret)
	return func(c *gin.Context) {
		auth(c)
		if c.IsAborted() {
			return
		}

		role := utils.CurrentRole(c)
		if role.Has(entity.RoleManager) {
			c.Set("isManager", true)
			return
		}
		c.Set("isManager", false)

		eventID := c.Param("eventId")
		var cnt int64
		err := db.Model(&entity.EventOrganizer{}).
			Where("event_id = ? AND user_id = ?", eventID, utils.CurrentUserID(c)).
			Count(&cnt).Error
		if err != nil {
			resp.ServerError(c, err)
			c.Abort()
			return
		}
		if cnt == 0 {
			resp.Forbidden(c, "Forbidden")
			c.Abort()
			return
		}
	}
}
