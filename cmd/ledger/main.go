// Command ledger runs the feedback ledger: it opens the store, applies
// migrations, starts maintenance jobs and serves the dashboard and ledger write APIs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aimd54/feedback-ledger/internal/api/dashboard"
	"github.com/aimd54/feedback-ledger/internal/api/ledger"
	"github.com/aimd54/feedback-ledger/internal/cache"
	"github.com/aimd54/feedback-ledger/internal/config"
	"github.com/aimd54/feedback-ledger/internal/repository"
	"github.com/aimd54/feedback-ledger/internal/service/activity"
	"github.com/aimd54/feedback-ledger/internal/service/cooldowns"
	"github.com/aimd54/feedback-ledger/internal/service/leaderboard"
	"github.com/aimd54/feedback-ledger/internal/service/members"
	"github.com/aimd54/feedback-ledger/internal/service/pardons"
	"github.com/aimd54/feedback-ledger/internal/service/purchases"
	"github.com/aimd54/feedback-ledger/internal/service/ratings"
	"github.com/aimd54/feedback-ledger/internal/service/scheduler"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Ledger stopped with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	db, err := repository.NewDB(&cfg.Database, log.Component("repository"))
	if err != nil {
		return fmt.Errorf("failed to open ledger store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close ledger store")
		}
	}()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate ledger store: %w", err)
	}

	var leaderboardCache cache.Cache
	if cfg.Database.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err := cache.NewRedisCache(ctx, &cfg.Database.Redis)
		cancel()
		if err != nil {
			// The cache only speeds up reads; run without it.
			log.Warn().Err(err).Msg("Redis unavailable, leaderboard caching disabled")
		} else {
			leaderboardCache = redisCache
			defer redisCache.Close()
		}
	}

	// Repositories
	memberRepo := repository.NewMemberRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	pardonRepo := repository.NewPardonRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	cooldownRepo := repository.NewCooldownRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	// Services
	memberService := members.NewService(memberRepo, log.Component("members"))
	activityService := activity.NewService(activityRepo, log.Component("activity"))
	pardonService := pardons.NewService(pardonRepo, cfg.Ledger.DefaultPardonReason, log.Component("pardons"))
	ratingService := ratings.NewService(ratingRepo, memberRepo, cfg.Ledger.QualityMinRatings, log.Component("ratings"))
	cooldownService := cooldowns.NewService(cooldownRepo, log.Component("cooldowns"))
	purchaseService := purchases.NewService(purchaseRepo, log.Component("purchases"))
	leaderboardService := leaderboard.NewService(memberRepo, activityRepo, pardonRepo, purchaseRepo,
		leaderboardCache, cfg.Ledger.CacheTTL(), log.Component("leaderboard"))

	schedulerService := scheduler.NewService(&cfg.Scheduler, cooldownService, leaderboardService, log.Component("scheduler"))
	if err := schedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer schedulerService.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := dashboard.NewHandler(leaderboardService, activityService, ratingService, pardonService,
		purchaseService, db, log.Component("dashboard"))
	handler.RegisterRoutes(router)

	ledgerHandler := ledger.NewHandler(memberService, activityService, pardonService, ratingService,
		cooldownService, purchaseService, leaderboardService, log.Component("ledger-api"))
	ledgerHandler.RegisterRoutes(router)

	if cfg.Metrics.Prometheus.Enabled {
		router.GET(cfg.Metrics.Prometheus.Path, gin.WrapH(promhttp.Handler()))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("Starting ledger API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	log.Info().Msg("Ledger stopped")
	return nil
}
