package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/slotwise/scheduling-service/internal/apperr"
)

// statusFor maps an apperr.Kind to the HTTP status the teacher's handlers
// derived from strings.Contains checks against the error message.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvariant:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// paginationParams parses page/limit query params into a 1-indexed page and
// a clamped offset/limit pair, matching ListBookings' convention.
func paginationParams(c *gin.Context) (limit, offset, page int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset = (page - 1) * limit
	return
}
