package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("invite.signing_secret", "test-secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "iconcanvas.db" {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("redis should default to unset, got %q", cfg.RedisAddr)
	}
	if cfg.InviteTTL != 12*time.Hour {
		t.Fatalf("unexpected invite ttl: %v", cfg.InviteTTL)
	}
	if cfg.SessionExpiry != 24*time.Hour {
		t.Fatalf("unexpected session expiry: %v", cfg.SessionExpiry)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	configViper := NewViper()

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected missing signing secret to fail validation")
	}
}

func TestLoadRequiresSomeStorage(t *testing.T) {
	configViper := NewViper()
	configViper.Set("invite.signing_secret", "test-secret")
	configViper.Set("database.path", "")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected missing storage configuration to fail validation")
	}

	configViper.Set("redis.addr", "localhost:6379")
	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("redis address alone should satisfy storage: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected redis address: %q", cfg.RedisAddr)
	}
}

func TestLoadRejectsNonPositiveDurations(t *testing.T) {
	configViper := NewViper()
	configViper.Set("invite.signing_secret", "test-secret")
	configViper.Set("invite.ttl_minutes", 0)

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected zero invite ttl to fail validation")
	}

	configViper.Set("invite.ttl_minutes", 60)
	configViper.Set("session.expiry_minutes", -5)
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected negative session expiry to fail validation")
	}
}
