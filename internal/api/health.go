// Package api serves the read-only ops API: metrics, health, node lookup,
// identifier mapping and run progress.
package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// healthCheckTimeout bounds every readiness check.
const healthCheckTimeout = 3 * time.Second

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checks    map[string]HealthChecker
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler probing the named checks.
func NewHealthHandler(checks map[string]HealthChecker, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// Readiness handles GET /api/v1/ready. Every check must pass.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readinessResponse{Status: "ready", Checks: map[string]string{}}
	code := http.StatusOK

	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			h.log.WithError(err).WithField("check", name).Error("readiness check failed")
			resp.Checks[name] = "error"
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable

			continue
		}

		resp.Checks[name] = "ok"
	}

	c.JSON(code, resp)
}
