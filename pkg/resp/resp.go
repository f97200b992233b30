package resp

import (
	"log"
	"net/http"

	"backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}
func Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
}
func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"error": msg})
}
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}
func Conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, gin.H{"error": msg})
}
func Gone(c *gin.Context, msg string) {
	c.JSON(http.StatusGone, gin.H{"error": msg})
}
func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": msg})
}
func ServerError(c *gin.Context, err error) {
	log.Println("internal error:", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// Error maps a service error onto the matching HTTP status.
func Error(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		BadRequest(c, err.Error())
	case apperr.KindUnauthorized:
		Unauthorized(c, err.Error())
	case apperr.KindForbidden:
		Forbidden(c, err.Error())
	case apperr.KindNotFound:
		NotFound(c, err.Error())
	case apperr.KindConflict:
		Conflict(c, err.Error())
	case apperr.KindExpired:
		Gone(c, err.Error())
	case apperr.KindRateLimited:
		TooManyRequests(c, err.Error())
	default:
		ServerError(c, err)
	}
}
