// Package config provides runtime configuration for the shop API.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every knob the server reads from the environment.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnMaxIdle   time.Duration
	DBConnMaxLife   time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	ReservationTTL time.Duration
	SweepInterval  time.Duration
	CleanAfter     time.Duration

	CatalogCacheTTL time.Duration

	RateRPS   int
	RateBurst int

	WhatsAppNumber   string
	GuestHorizonDays int
	UserHorizonDays  int
}

// Load collects configuration from the environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),

		DatabaseURL:    getenv("DATABASE_URL", ""),
		DBMaxOpenConns: intenv("DB_MAX_OPEN_CONNS", 60),
		DBMaxIdleConns: intenv("DB_MAX_IDLE_CONNS", 20),
		DBConnMaxIdle:  durenv("DB_CONN_MAX_IDLE", 5*time.Minute),
		DBConnMaxLife:  durenv("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		JWTSecret: getenv("JWT_SECRET", "dev-only-secret"),
		TokenTTL:  durenv("TOKEN_TTL", 24*time.Hour),

		ReservationTTL: durenv("RESERVATION_TTL", time.Hour),
		SweepInterval:  durenv("SWEEP_INTERVAL", time.Minute),
		CleanAfter:     durenv("CLEAN_AFTER", 24*time.Hour),

		CatalogCacheTTL: durenv("CATALOG_CACHE_TTL", 45*time.Second),

		RateRPS:   intenv("RATE_RPS", 20),
		RateBurst: intenv("RATE_BURST", 40),

		WhatsAppNumber:   getenv("WHATSAPP_NUMBER", ""),
		GuestHorizonDays: intenv("GUEST_HORIZON_DAYS", 3),
		UserHorizonDays:  intenv("USER_HORIZON_DAYS", 7),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intenv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
