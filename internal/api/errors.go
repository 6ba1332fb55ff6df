package api

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/pathmerge/internal/httputil"
	"github.com/persistorai/pathmerge/internal/metrics"
)

// Error codes of the ops API.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternalError  = "internal_error"
	ErrCodeUnavailable    = "unavailable"
)

func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
