// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	HTTPAddr  string // gateway-service
	AdminAddr string // admin-service

	// Delegation / approval token verification
	PublicKeyPath string
	Issuer        string
	Audience      string
	ClockSkew     time.Duration

	// Manifest & policy
	ManifestPath string
	PolicyPath   string

	// Proposal lifetime
	ProposalTTL time.Duration

	// Downstream API
	DownstreamTimeout time.Duration

	// Admin service auth (static bearer; empty = open, dev only)
	AdminToken string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("GATEWAY_ENV", "dev"),
		HTTPAddr:          env("GATEWAY_HTTP_ADDR", ":8080"),
		AdminAddr:         env("GATEWAY_ADMIN_ADDR", ":8081"),
		PublicKeyPath:     env("GATEWAY_PUBLIC_KEY_PATH", ""),
		Issuer:            env("GATEWAY_ISSUER", "https://api.uavcrew.ai"),
		Audience:          env("GATEWAY_AUDIENCE", "agent-gateway"),
		ClockSkew:         envDur("GATEWAY_CLOCK_SKEW_SEC", 60) * time.Second,
		ManifestPath:      env("GATEWAY_MANIFEST_PATH", "./manifest.yaml"),
		PolicyPath:        env("GATEWAY_POLICY_PATH", ""),
		ProposalTTL:       envDur("GATEWAY_PROPOSAL_TTL_SEC", 900) * time.Second,
		DownstreamTimeout: envDur("DOWNSTREAM_TIMEOUT_SEC", 30) * time.Second,
		AdminToken:        env("GATEWAY_ADMIN_TOKEN", ""),
		RedisURL:          env("REDIS_URL", ""),
		DatabaseURL:       env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory credential store for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
