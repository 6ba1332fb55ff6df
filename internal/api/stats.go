package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/metrics"
)

// StatsHandler serves target graph statistics.
type StatsHandler struct {
	counter GraphCounter
	log     *logrus.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(counter GraphCounter, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{counter: counter, log: log}
}

type statsResponse struct {
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// GetStats handles GET /api/v1/stats and refreshes the target gauges.
func (h *StatsHandler) GetStats(c *gin.Context) {
	nodes, edges, err := h.counter.Count(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("stats: counting target")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	metrics.TargetNodes.Set(float64(nodes))
	metrics.TargetEdges.Set(float64(edges))

	c.JSON(http.StatusOK, statsResponse{Nodes: nodes, Edges: edges})
}
