// bidder-service — marketplace bid assistant.
//
// Two intake loops watch the Freelancer search streams: the auto loop
// generates proposals and bids on its own, the semi loop defers every
// project to the operator over Telegram with approval links. A cron
// sweep follows up on placed bids, and an HTTP server executes the
// approval callbacks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lancebid/bidder-service/internal/ai"
	"lancebid/bidder-service/internal/bidder"
	"lancebid/bidder-service/internal/config"
	"lancebid/bidder-service/internal/db"
	"lancebid/bidder-service/internal/freelancer"
	"lancebid/bidder-service/internal/logger"
	"lancebid/bidder-service/internal/notify"
	"lancebid/bidder-service/internal/scheduler"
	"lancebid/bidder-service/internal/store"
	"lancebid/bidder-service/internal/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("[bidder-service] Fatal: %v", err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logg := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ─────────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	logg.Info("postgres connected")

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	logg.Info("redis connected")

	projects := store.NewProjects(pool)
	if err := projects.Init(ctx); err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}
	reviews := store.NewReviews(rdb)
	followups := store.NewFollowups(rdb)
	events := store.NewEvents(rdb, logg)

	// ── Collaborators ───────────────────────────────────────────────────────
	market := freelancer.New(cfg.FreelancerBaseURL, cfg.FreelancerToken)

	providers := make([]ai.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, ai.Provider{
			Label:   p.Label,
			Model:   p.Model,
			Backend: ai.NewChatBackend(p.BaseURL, ""),
		})
	}
	failover := ai.NewFailover(providers, cfg.AIRequestDelay, logg)

	telegram := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.HostURL, logg)

	// ── Engine ──────────────────────────────────────────────────────────────
	sup := bidder.NewSupervisor(logg)
	lookback := time.Duration(cfg.LookbackHours * float64(time.Hour))

	autoLoop := bidder.NewAutoLoop(bidder.AutoConfig{
		Jobs:               cfg.AutoJobs,
		Limit:              cfg.AutoLimit,
		Lookback:           lookback,
		BidAvgPercent:      cfg.BidAvgPercent,
		OnlyFixed:          cfg.OnlyFixed,
		MinBudget:          cfg.MinBudget,
		BidPeriod:          cfg.BidPeriod,
		ProposalYears:      cfg.ProposalYears,
		PollDelay:          cfg.AutoPollDelay,
		BidDelay:           30 * time.Second,
		GenerationCooldown: cfg.AutoPollDelay,
		ExhaustionCooldown: cfg.ExhaustionCooldown,
	}, market, failover, telegram, projects, reviews, events, sup, logg)

	semiLoop := bidder.NewSemiLoop(bidder.SemiConfig{
		Jobs:          cfg.SemiJobs,
		Limit:         cfg.SemiLimit,
		Lookback:      lookback,
		BidAvgPercent: cfg.BidAvgPercent,
		MinBudget:     cfg.MinBudget,
		PollDelay:     cfg.SemiPollDelay,
	}, market, telegram, projects, reviews, sup, logg)

	sweep := bidder.NewFollowupSweep(market, projects, followups, telegram, events, logg)
	cronSched := scheduler.New(sweep, cfg.FollowupInterval, logg)
	if err := cronSched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer cronSched.Stop()

	// ── HTTP callbacks ──────────────────────────────────────────────────────
	handler := web.NewHandler(market, failover, telegram, projects, reviews, events,
		cfg.BidPeriod, cfg.ProposalYears, logg)
	srv := web.NewServer(cfg.Port, handler)

	go func() {
		logg.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("http server error", "err", err)
			stop()
		}
	}()

	// ── Operator commands ───────────────────────────────────────────────────
	poller := notify.NewCommandPoller(telegram, sup, cfg.AuthorizedUserIDs, logg)

	logg.Info("bidder service running",
		"autoJobs", cfg.AutoJobs, "semiJobs", cfg.SemiJobs, "onlyFixed", cfg.OnlyFixed)

	sup.Run(ctx, autoLoop.Run, semiLoop.Run, poller.Run)

	// ── Graceful shutdown ───────────────────────────────────────────────────
	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warn("http shutdown error", "err", err)
	}

	logg.Info("stopped")
	return nil
}
