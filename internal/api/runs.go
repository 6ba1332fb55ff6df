package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunHandler reports merge run progress.
type RunHandler struct {
	progress ProgressReporter
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(progress ProgressReporter) *RunHandler {
	return &RunHandler{progress: progress}
}

// Current handles GET /api/v1/runs/current.
func (h *RunHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, h.progress.Snapshot())
}
