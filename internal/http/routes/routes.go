package routes

import (
	"math/rand"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/auth"
	"github.com/coursemarket/server-go/internal/features/course"
	"github.com/coursemarket/server-go/internal/features/livelesson"
	"github.com/coursemarket/server-go/internal/features/notification"
	"github.com/coursemarket/server-go/internal/features/purchase"
	"github.com/coursemarket/server-go/internal/middleware"
	"github.com/coursemarket/server-go/internal/services/matching"
	"github.com/coursemarket/server-go/pkg/cache"
	"github.com/coursemarket/server-go/pkg/config"
	"github.com/coursemarket/server-go/pkg/health"
	"github.com/coursemarket/server-go/pkg/stripe"
)

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, cfg *config.Config, db *gorm.DB, logger *slog.Logger, cacheClient cache.Client, gateway stripe.Gateway) {
	// Health check endpoints (no /api prefix for Kubernetes probes)
	healthHandler := health.NewHandler(db, logger)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)

	// Metrics endpoint for Prometheus
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Database stats endpoint (protected in production)
	if !cfg.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	api := engine.Group("/api")

	// Initialize global middleware instance
	middleware.Initialize(db, cfg.JWTSecret, logger)

	authHandler := auth.NewHandler(db, logger, auth.TokenConfig{
		JWTSecret:          cfg.JWTSecret,
		JWTRefreshSecret:   cfg.JWTRefreshSecret,
		AccessTokenExpiry:  cfg.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.RefreshTokenExpiry,
	})
	auth.RegisterRoutes(api, authHandler)

	courseHandler := course.NewHandler(db, logger, cacheClient)
	course.RegisterRoutes(api, courseHandler)

	purchaseService := purchase.NewService(db, logger, gateway, cfg.Stripe.Currency)
	purchaseHandler := purchase.NewHandler(db, purchaseService, logger, cfg.Stripe.WebhookSecret)
	purchase.RegisterRoutes(api, purchaseHandler)

	matcher := matching.NewService(db, logger, rand.NewSource(time.Now().UnixNano()))
	lessonService := livelesson.NewService(db, logger, matcher)
	lessonHandler := livelesson.NewHandler(lessonService, logger)
	livelesson.RegisterRoutes(api, lessonHandler)

	notificationHandler := notification.NewHandler(db, logger)
	notification.RegisterRoutes(api, notificationHandler)
}
