package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("Port default = %q, want 8080", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("Env default = %q, want development", cfg.Env)
	}
	if !cfg.UseMemoryQueue {
		t.Fatal("UseMemoryQueue should default to true")
	}
	if cfg.BookingMaxAttempts != 3 {
		t.Fatalf("BookingMaxAttempts default = %d, want 3", cfg.BookingMaxAttempts)
	}
	if cfg.NLUTimeout != 8*time.Second {
		t.Fatalf("NLUTimeout default = %v, want 8s", cfg.NLUTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("BOOKING_MAX_ATTEMPTS", "5")
	t.Setenv("BOOKING_RETRY_DELAY", "500ms")
	t.Setenv("EMAIL_PROVIDER", " SES ")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Fatalf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.UseMemoryQueue {
		t.Fatal("UseMemoryQueue should be false")
	}
	if cfg.BookingMaxAttempts != 5 {
		t.Fatalf("BookingMaxAttempts = %d, want 5", cfg.BookingMaxAttempts)
	}
	if cfg.BookingRetryDelay != 500*time.Millisecond {
		t.Fatalf("BookingRetryDelay = %v, want 500ms", cfg.BookingRetryDelay)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("EmailProvider = %q, want ses", cfg.EmailProvider)
	}
}

func TestGetEnvAsIntIgnoresGarbage(t *testing.T) {
	t.Setenv("BOOKING_MAX_ATTEMPTS", "lots")
	cfg := Load()
	if cfg.BookingMaxAttempts != 3 {
		t.Fatalf("BookingMaxAttempts = %d, want default 3", cfg.BookingMaxAttempts)
	}
}
