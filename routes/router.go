package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/greenloop/binpoints/config"
	"github.com/greenloop/binpoints/controllers"
	"github.com/greenloop/binpoints/ledger"
	"github.com/greenloop/binpoints/middleware"
	"github.com/greenloop/binpoints/ratelimit"
	"github.com/greenloop/binpoints/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, limiter ratelimit.Limiter, led *ledger.Ledger) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.GlobalIPRateLimit())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	rewardController := controllers.NewRewardController(db, led)
	eligibilityController := controllers.NewEligibilityController(led)

	api := r.Group("/api/v1")

	rewards := api.Group("/rewards")
	rewards.Use(middleware.AuthRequired())
	rewards.POST("/award", middleware.EndpointRateLimit(limiter, "award"), rewardController.AwardPoints)
	rewards.POST("/redeem", middleware.EndpointRateLimit(limiter, "redeem"), rewardController.RedeemPoints)
	rewards.POST("/eligibility", middleware.EndpointRateLimit(limiter, "eligibility"), eligibilityController.Check)
	rewards.GET("/summary", middleware.EndpointRateLimit(limiter, "summary"), rewardController.Summary)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
