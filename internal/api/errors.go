package api

import (
	"errors"
	"net/http"
	"transaction-summary-api/internal/response"
	"transaction-summary-api/internal/services"
	"transaction-summary-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to an HTTP status. The bool is false for
// errors that are not user-facing.
func statusFor(err error) (int, bool) {
	var rowErr *services.RowError
	if errors.As(err, &rowErr) {
		return http.StatusBadRequest, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, true
	}

	kind, ok := services.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, false
	}
	switch kind {
	case services.UnsupportedMediaType:
		return http.StatusUnsupportedMediaType, true
	case services.InvalidFormat, services.InvalidRange:
		return http.StatusUnprocessableEntity, true
	case services.NoMatchingData:
		return http.StatusNotFound, true
	default:
		return http.StatusBadRequest, true
	}
}

// writeError sends err as {"detail": ...}. Internal errors are logged and
// replaced with a generic message.
func writeError(c *gin.Context, err error) {
	status, public := statusFor(err)
	if !public {
		logging.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		response.ErrorJSON(c, status, "Internal server error")
		return
	}
	if status == http.StatusRequestEntityTooLarge {
		response.ErrorJSON(c, status, "Request body too large")
		return
	}
	response.ErrorJSON(c, status, err.Error())
}
