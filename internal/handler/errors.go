package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/classwork-backend/internal/response"
	"github.com/stemsi/classwork-backend/internal/service"
)

// failDomain translates service sentinel errors into the API error envelope.
// Unknown errors become a 500 so internals never leak to clients.
func failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrWindowNotOpen):
		response.Fail(c, http.StatusConflict, response.ErrWindowNotOpen)
	case errors.Is(err, service.ErrWindowClosed):
		response.Fail(c, http.StatusConflict, response.ErrWindowClosed)
	case errors.Is(err, service.ErrQuotaExceeded):
		response.Fail(c, http.StatusConflict, response.ErrQuotaExceeded)
	case errors.Is(err, service.ErrInvalidAction):
		response.Fail(c, http.StatusConflict, response.ErrInvalidAction)
	case errors.Is(err, service.ErrPolicyDenied):
		response.Fail(c, http.StatusForbidden, response.ErrPolicyDenied)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
