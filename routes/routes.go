package routes

import (
	"backend/configs"
	"backend/controllers"
	"backend/entity"
	"backend/middlewares"
	"backend/pkg/resp"
	"backend/services"
	"backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func requireRole(c *gin.Context, min entity.Role) bool {
	if !utils.CurrentRole(c).Has(min) {
		resp.Forbidden(c, "Forbidden")
		return false
	}
	return true
}

// Setup wires every endpoint. Role requirements follow the cumulative
// hierarchy; event mutation routes additionally admit the event's
// organizers through EventOrganizerMiddleware.
//
// The router cannot hold a literal "me" segment next to a ":userId"
// wildcard, so the self-service routes are dispatched inside the
// parameterized handlers.
func Setup(r *gin.Engine, db *gorm.DB, cfg *configs.Config, resetLimiter *middlewares.ClientLimiter) {
	promoSvc := services.NewPromotionService(db)
	txnSvc := services.NewTransactionService(db, promoSvc)
	eventSvc := services.NewEventService(db)

	authCtl := controllers.NewAuthController(db, cfg.JWTSecret)
	userCtl := controllers.NewUserController(db, promoSvc)
	txnCtl := controllers.NewTransactionController(db, txnSvc)
	promoCtl := controllers.NewPromotionController(promoSvc)
	eventCtl := controllers.NewEventController(db, eventSvc)

	secret := cfg.JWTSecret
	auth := func(min ...entity.Role) gin.HandlerFunc {
		return middlewares.AuthMiddleware(secret, min...)
	}
	organizer := middlewares.EventOrganizerMiddleware(db, secret)

	r.POST("/auth/tokens", authCtl.Login)
	r.POST("/auth/resets", middlewares.RateLimit(resetLimiter), authCtl.RequestReset)
	r.POST("/auth/resets/:resetToken", authCtl.ResetPassword)

	r.POST("/users", auth(entity.RoleCashier), userCtl.Register)
	r.GET("/users", auth(entity.RoleManager), userCtl.List)

	r.GET("/users/:userId", auth(), func(c *gin.Context) {
		if c.Param("userId") == "me" {
			userCtl.Me(c)
			return
		}
		if requireRole(c, entity.RoleCashier) {
			userCtl.GetUser(c)
		}
	})
	r.PATCH("/users/:userId", auth(), func(c *gin.Context) {
		if c.Param("userId") == "me" {
			userCtl.UpdateMe(c)
			return
		}
		if requireRole(c, entity.RoleManager) {
			userCtl.UpdateUser(c)
		}
	})
	r.PATCH("/users/:userId/password", auth(), func(c *gin.Context) {
		if c.Param("userId") != "me" {
			resp.NotFound(c, "Not found")
			return
		}
		userCtl.UpdatePassword(c)
	})
	r.GET("/users/:userId/transactions", auth(), func(c *gin.Context) {
		if c.Param("userId") != "me" {
			resp.NotFound(c, "Not found")
			return
		}
		txnCtl.MyTransactions(c)
	})
	r.POST("/users/:userId/transactions", auth(), func(c *gin.Context) {
		if c.Param("userId") == "me" {
			txnCtl.CreateRedemption(c)
			return
		}
		txnCtl.CreateTransfer(c)
	})

	r.POST("/transactions", auth(entity.RoleCashier), txnCtl.Create)
	r.GET("/transactions", auth(entity.RoleManager), txnCtl.List)
	r.GET("/transactions/:transactionId", auth(entity.RoleManager), txnCtl.Get)
	r.PATCH("/transactions/:transactionId/suspicious", auth(entity.RoleManager), txnCtl.SetSuspicious)
	r.PATCH("/transactions/:transactionId/processed", auth(entity.RoleCashier), txnCtl.Process)

	r.POST("/promotions", auth(entity.RoleManager), promoCtl.Create)
	r.GET("/promotions", auth(), promoCtl.List)
	r.GET("/promotions/:promotionId", auth(), promoCtl.Get)
	r.PATCH("/promotions/:promotionId", auth(entity.RoleManager), promoCtl.Update)
	r.DELETE("/promotions/:promotionId", auth(entity.RoleManager), promoCtl.Delete)

	r.POST("/events", auth(entity.RoleManager), eventCtl.Create)
	r.GET("/events", auth(), eventCtl.List)
	// Published events are visible without a token; organizers and managers
	// get the full view when they authenticate.
	r.GET("/events/:eventId", middlewares.OptionalAuthMiddleware(secret), eventCtl.Get)
	r.PATCH("/events/:eventId", organizer, eventCtl.Update)
	r.DELETE("/events/:eventId", auth(entity.RoleManager), eventCtl.Delete)

	r.POST("/events/:eventId/organizers", auth(entity.RoleManager), eventCtl.AddOrganizer)
	r.DELETE("/events/:eventId/organizers/:userId", auth(entity.RoleManager), eventCtl.RemoveOrganizer)

	r.POST("/events/:eventId/guests", organizer, eventCtl.AddGuest)
	r.POST("/events/:eventId/guests/me", auth(), eventCtl.RSVP)
	r.DELETE("/events/:eventId/guests/:userId", auth(), func(c *gin.Context) {
		if c.Param("userId") == "me" {
			eventCtl.CancelRSVP(c)
			return
		}
		if requireRole(c, entity.RoleManager) {
			eventCtl.RemoveGuest(c)
		}
	})

	r.POST("/events/:eventId/transactions", organizer, eventCtl.Award)
}
