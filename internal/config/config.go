package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExpiryPolicy decides what happens to a claim that passes its deadline
// without corroboration.
type ExpiryPolicy string

const (
	// ExpirySilent transitions the claim to EXPIRED with no rating effect.
	ExpirySilent ExpiryPolicy = "expire"
	// ExpiryAccept default-accepts the reporter's claimed outcome at expiry.
	ExpiryAccept ExpiryPolicy = "accept"
)

type AppConfig struct {
	ListenAddr       string
	NotifyListenAddr string

	RedisURL    string
	DatabaseURL string

	ClaimWindow   time.Duration
	SweepInterval time.Duration
	ExpiryPolicy  ExpiryPolicy

	// H2HWindow limits the head-to-head gap to the trailing N accepted
	// results; 0 means unbounded.
	H2HWindow int

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":8080",
		NotifyListenAddr: ":8081",
		ClaimWindow:      72 * time.Hour,
		SweepInterval:    5 * time.Minute,
		ExpiryPolicy:     ExpirySilent,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTIFY_LISTEN_ADDR")); v != "" {
		cfg.NotifyListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("CLAIM_WINDOW_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClaimWindow = time.Duration(n) * time.Hour
		}
	}
	if v := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepInterval = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPIRY_POLICY")); v != "" {
		switch ExpiryPolicy(strings.ToLower(v)) {
		case ExpirySilent:
			cfg.ExpiryPolicy = ExpirySilent
		case ExpiryAccept:
			cfg.ExpiryPolicy = ExpiryAccept
		default:
			return nil, errors.New("EXPIRY_POLICY must be 'expire' or 'accept'")
		}
	}
	if v := strings.TrimSpace(os.Getenv("H2H_WINDOW")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.H2HWindow = n
		}
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
