package main

import (
	"context"
	"time"

	"github.com/greenloop/binpoints/config"
	"github.com/greenloop/binpoints/ledger"
	"github.com/greenloop/binpoints/models"
	"github.com/greenloop/binpoints/ratelimit"
	"github.com/greenloop/binpoints/routes"
	"github.com/greenloop/binpoints/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.RewardAccount{},
		&models.UserStatistics{},
		&models.DailyLimitCounter{},
		&models.Transaction{},
		&models.LocationAudit{},
	)

	limiter := buildLimiter(cfg)

	led := ledger.New(db, ledger.CryptoIDGenerator{}, ledger.Options{
		DailyDepositLimit:  cfg.DailyDepositLimit,
		MaxPointsPerAward:  cfg.MaxPointsPerAward,
		FederatedProviders: cfg.FederatedProviders,
	}, utils.Sugar)

	r := routes.SetupRouter(db, limiter, led)

	// Out-of-band sweep of stale rate-limit records
	if sweeper, ok := limiter.(ratelimit.Sweeper); ok {
		janitor := ratelimit.NewJanitor(
			sweeper,
			time.Duration(cfg.JanitorIntervalMinutes)*time.Minute,
			time.Duration(cfg.RateLimitRetentionHours)*time.Hour,
			utils.Sugar,
		)
		janitor.Start(context.Background())
	}

	utils.Sugar.Infof("Starting server on port %s (graceful, limiter backend %s)", cfg.AppPort, cfg.RateLimitBackend)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// buildLimiter selects the admission-control backend from configuration.
func buildLimiter(cfg config.AppConfig) ratelimit.Limiter {
	table := ratelimit.Table{}
	for name, rule := range cfg.RateLimitRules {
		table[name] = ratelimit.Rule{
			MaxRequests:    rule.MaxRequests,
			Window:         time.Duration(rule.WindowMs) * time.Millisecond,
			OnBackendError: ratelimit.FailurePolicy(rule.OnBackendError),
		}
	}

	if cfg.RateLimitBackend == "redis" {
		return ratelimit.NewRedisLimiter(utils.GetRedis(), table)
	}
	return ratelimit.NewMemoryLimiter(table)
}
