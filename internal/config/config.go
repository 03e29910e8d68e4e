// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process
// exits before touching the network.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider describes one AI completion backend in failover order.
// Format in AI_PROVIDERS: "label|base_url|model;label|base_url|model".
// Model may be empty for backends with a single default model.
type Provider struct {
	Label   string
	BaseURL string
	Model   string
}

// Config holds all runtime configuration for the bidder service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string

	// Marketplace
	FreelancerBaseURL string
	FreelancerToken   string
	AutoJobs          []int // category ids for the auto search stream
	SemiJobs          []int // category ids for the semi search stream
	AutoLimit         int
	SemiLimit         int

	// Bid policy
	LookbackHours float64
	BidAvgPercent float64
	OnlyFixed     bool
	MinBudget     float64
	BidPeriod     int
	ProposalYears int

	// Pacing
	AutoPollDelay      time.Duration
	SemiPollDelay      time.Duration
	ExhaustionCooldown time.Duration
	AIRequestDelay     time.Duration
	FollowupInterval   time.Duration

	// Telegram
	TelegramBotToken  string
	TelegramChatID    string
	AuthorizedUserIDs []int64

	// Base URL for approval callback links sent to the operator.
	HostURL string

	Providers []Provider
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              envOr("PORT", "5000"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFormat:         envOr("LOG_FORMAT", "console"),
		FreelancerBaseURL: envOr("FREELANCER_BASE_URL", "https://www.freelancer.com"),
	}

	for _, req := range []struct {
		name string
		dst  *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_URL", &cfg.RedisURL},
		{"FREELANCER_OAUTH_TOKEN", &cfg.FreelancerToken},
		{"TELEGRAM_BOT_TOKEN", &cfg.TelegramBotToken},
		{"TELEGRAM_CHAT_ID", &cfg.TelegramChatID},
		{"HOST_URL", &cfg.HostURL},
	} {
		v := os.Getenv(req.name)
		if v == "" {
			return nil, fmt.Errorf("%s is required", req.name)
		}
		*req.dst = v
	}
	cfg.HostURL = strings.TrimRight(cfg.HostURL, "/")

	var err error
	if cfg.AutoJobs, err = intList(envOr("AUTO_JOBS", "3131,3033,3030")); err != nil {
		return nil, fmt.Errorf("AUTO_JOBS: %w", err)
	}
	if cfg.SemiJobs, err = intList(envOr("SEMI_JOBS", "3131,3033,3030")); err != nil {
		return nil, fmt.Errorf("SEMI_JOBS: %w", err)
	}
	if cfg.AutoLimit, err = envInt("AUTO_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.SemiLimit, err = envInt("SEMI_LIMIT", 70); err != nil {
		return nil, err
	}
	if cfg.LookbackHours, err = envFloat("LOOKBACK_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.BidAvgPercent, err = envFloat("BID_AVG_PERCENT", 0.50); err != nil {
		return nil, err
	}
	if cfg.BidAvgPercent <= 0 || cfg.BidAvgPercent > 1 {
		return nil, fmt.Errorf("BID_AVG_PERCENT must be in (0, 1], got %v", cfg.BidAvgPercent)
	}
	if cfg.MinBudget, err = envFloat("MIN_BUDGET", 30); err != nil {
		return nil, err
	}
	if cfg.BidPeriod, err = envInt("BID_PERIOD", 3); err != nil {
		return nil, err
	}
	if cfg.ProposalYears, err = envInt("PROPOSAL_YEARS_EXP", 4); err != nil {
		return nil, err
	}
	cfg.OnlyFixed = envOr("ONLY_FIXED", "true") == "true"

	if cfg.AutoPollDelay, err = envDuration("AUTO_POLL_DELAY", 4*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SemiPollDelay, err = envDuration("SEMI_POLL_DELAY", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExhaustionCooldown, err = envDuration("EXHAUSTION_COOLDOWN", 3*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AIRequestDelay, err = envDuration("AI_REQUEST_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FollowupInterval, err = envDuration("FOLLOWUP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	for _, raw := range strings.Split(os.Getenv("AUTHORIZED_USER_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("AUTHORIZED_USER_IDS: bad id %q", raw)
		}
		cfg.AuthorizedUserIDs = append(cfg.AuthorizedUserIDs, id)
	}

	if cfg.Providers, err = parseProviders(os.Getenv("AI_PROVIDERS")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseProviders parses the "label|base_url|model;…" provider list. At
// least one entry is required — without a backend the service cannot
// generate a single proposal.
func parseProviders(raw string) ([]Provider, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("AI_PROVIDERS is required (format: label|base_url|model;…)")
	}

	var providers []Provider
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("AI_PROVIDERS: bad entry %q", entry)
		}
		p := Provider{Label: strings.TrimSpace(parts[0]), BaseURL: strings.TrimRight(strings.TrimSpace(parts[1]), "/")}
		if p.Label == "" || p.BaseURL == "" {
			return nil, fmt.Errorf("AI_PROVIDERS: bad entry %q", entry)
		}
		if len(parts) == 3 {
			p.Model = strings.TrimSpace(parts[2])
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("AI_PROVIDERS has no usable entries")
	}
	return providers, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}

func envFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, s)
	}
	return v, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", name, s)
	}
	return v, nil
}

func intList(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}
