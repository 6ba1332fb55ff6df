package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/pathmerge/internal/httputil"
	"github.com/persistorai/pathmerge/internal/metrics"
)

func respondError(c *gin.Context, code int, errCode, message string) {
	metrics.ErrorsTotal.WithLabelValues(errCode).Inc()
	httputil.RespondError(c, code, errCode, message)
}
