package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/infra/config"
	"github.com/arklim/expense-tracker-iam/internal/transport/http/handlers"
	"github.com/arklim/expense-tracker-iam/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Accounts handlers.AccountLifecycle
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Checks   []ReadinessCheck
}

// ReadinessCheck is a named dependency probe served on /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, len(deps.Checks))
	for _, check := range deps.Checks {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck(check.Name, check.Check))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if deps.Accounts != nil {
		api := r.Group("/api/v1")
		authHandler := handlers.NewAuthHandler(deps.Accounts)
		authHandler.RegisterRoutes(api.Group("/auth"))
	}

	return r
}
