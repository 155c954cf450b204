package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ReservationTTL != time.Hour {
		t.Fatalf("ReservationTTL = %s", cfg.ReservationTTL)
	}
	if cfg.GuestHorizonDays != 3 || cfg.UserHorizonDays != 7 {
		t.Fatalf("horizons = %d/%d", cfg.GuestHorizonDays, cfg.UserHorizonDays)
	}
	if cfg.RateRPS <= 0 || cfg.RateBurst < cfg.RateRPS {
		t.Fatalf("rate limits = %d/%d", cfg.RateRPS, cfg.RateBurst)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("RESERVATION_TTL", "30m")
	t.Setenv("GUEST_HORIZON_DAYS", "5")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ReservationTTL != 30*time.Minute {
		t.Fatalf("ReservationTTL = %s", cfg.ReservationTTL)
	}
	if cfg.GuestHorizonDays != 5 {
		t.Fatalf("GuestHorizonDays = %d", cfg.GuestHorizonDays)
	}
	if cfg.DBMaxOpenConns != 60 {
		t.Fatalf("bad int should fall back to default, got %d", cfg.DBMaxOpenConns)
	}
}
