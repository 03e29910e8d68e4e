package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bidder")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("FREELANCER_OAUTH_TOKEN", "token")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")
	t.Setenv("HOST_URL", "https://bids.example.com/")
	t.Setenv("AI_PROVIDERS", "primary|https://ai.example.com|gpt-4")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "5000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if len(cfg.AutoJobs) != 3 || cfg.AutoJobs[0] != 3131 {
		t.Errorf("AutoJobs = %v", cfg.AutoJobs)
	}
	if cfg.AutoLimit != 30 || cfg.SemiLimit != 70 {
		t.Errorf("limits = %d/%d", cfg.AutoLimit, cfg.SemiLimit)
	}
	if cfg.BidAvgPercent != 0.5 || cfg.MinBudget != 30 || !cfg.OnlyFixed {
		t.Errorf("policy = %v/%v/%v", cfg.BidAvgPercent, cfg.MinBudget, cfg.OnlyFixed)
	}
	if cfg.AutoPollDelay != 4*time.Minute || cfg.ExhaustionCooldown != 3*time.Hour {
		t.Errorf("pacing = %v/%v", cfg.AutoPollDelay, cfg.ExhaustionCooldown)
	}
	if cfg.HostURL != "https://bids.example.com" {
		t.Errorf("HostURL = %q, trailing slash not stripped", cfg.HostURL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded without TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadRejectsBadPercent(t *testing.T) {
	setRequired(t)
	t.Setenv("BID_AVG_PERCENT", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted BID_AVG_PERCENT > 1")
	}
}

func TestParseProviders(t *testing.T) {
	providers, err := parseProviders("g4f|http://localhost:1337|gpt-4; backup|https://api.example.com/ ")
	if err != nil {
		t.Fatalf("parseProviders() error = %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(providers))
	}
	if providers[0].Label != "g4f" || providers[0].Model != "gpt-4" {
		t.Errorf("first = %+v", providers[0])
	}
	if providers[1].BaseURL != "https://api.example.com" {
		t.Errorf("second BaseURL = %q, trailing slash not stripped", providers[1].BaseURL)
	}
	if providers[1].Model != "" {
		t.Errorf("second Model = %q, want empty", providers[1].Model)
	}
}

func TestParseProvidersRejectsEmptyAndMalformed(t *testing.T) {
	for _, raw := range []string{"", "  ", "just-a-label", "a|b|c|d"} {
		if _, err := parseProviders(raw); err == nil {
			t.Errorf("parseProviders(%q) succeeded", raw)
		}
	}
}

func TestAuthorizedUserIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTHORIZED_USER_IDS", "111, 222,333")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AuthorizedUserIDs) != 3 || cfg.AuthorizedUserIDs[1] != 222 {
		t.Errorf("AuthorizedUserIDs = %v", cfg.AuthorizedUserIDs)
	}
}
