package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "ICONCANVAS"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "iconcanvas.db"
	defaultLogLevel      = "info"
	defaultInviteTTL     = 12 * time.Hour
	defaultSessionExpiry = 24 * time.Hour
)

// AppConfig captures runtime configuration for the relay server.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	RedisAddr           string
	InviteSigningSecret string
	InviteTTL           time.Duration
	SessionExpiry       time.Duration
	LogLevel            string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper
// instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("redis.addr", "")
	configViper.SetDefault("invite.ttl_minutes", int(defaultInviteTTL.Minutes()))
	configViper.SetDefault("session.expiry_minutes", int(defaultSessionExpiry.Minutes()))
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		RedisAddr:           configViper.GetString("redis.addr"),
		InviteSigningSecret: configViper.GetString("invite.signing_secret"),
		InviteTTL:           time.Duration(configViper.GetInt("invite.ttl_minutes")) * time.Minute,
		SessionExpiry:       time.Duration(configViper.GetInt("session.expiry_minutes")) * time.Minute,
		LogLevel:            configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.InviteSigningSecret) == "" {
		return fmt.Errorf("invite.signing_secret is required")
	}
	if strings.TrimSpace(c.RedisAddr) == "" && strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required when redis.addr is unset")
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("invite.ttl_minutes must be positive")
	}
	if c.SessionExpiry <= 0 {
		return fmt.Errorf("session.expiry_minutes must be positive")
	}
	return nil
}
