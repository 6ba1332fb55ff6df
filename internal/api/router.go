package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/middleware"
)

// RouterDeps holds the dependencies of the ops router. All but Log are
// optional; a route is only registered when its dependency is set.
type RouterDeps struct {
	Log         *logrus.Logger
	Checks      map[string]HealthChecker
	Nodes       NodeReader
	Counter     GraphCounter
	Mapper      IdentifierMapper
	Progress    ProgressReporter
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	rateLimit = 50  // requests per second per IP
	rateBurst = 100 // token bucket burst size
)

func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: deps.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
			MaxAge:       time.Hour,
		}))
	}

	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerRoutes(api *gin.RouterGroup, deps *RouterDeps) {
	health := NewHealthHandler(deps.Checks, deps.Log, deps.Version)
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	if deps.Nodes != nil {
		api.GET("/nodes/*id", NewNodeHandler(deps.Nodes, deps.Log).Get)
	}

	if deps.Counter != nil {
		api.GET("/stats", NewStatsHandler(deps.Counter, deps.Log).GetStats)
	}

	if deps.Mapper != nil {
		api.GET("/map/:namespace/*id", NewMappingHandler(deps.Mapper, deps.Log).Map)
	}

	if deps.Progress != nil {
		api.GET("/runs/current", NewRunHandler(deps.Progress).Current)
	}
}

// NewRouter creates the gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(r.Group("/api/v1"), deps)

	return r
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}

		log.WithFields(fields).Debug("request")
	}
}
