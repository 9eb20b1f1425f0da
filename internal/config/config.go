package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	SlotCacheTTL   time.Duration `mapstructure:"SLOT_CACHE_TTL"`
	StoreTimeout   time.Duration `mapstructure:"STORE_TIMEOUT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	Timezone                 string  `mapstructure:"TIMEZONE"`
	StatusAliasesFile        string  `mapstructure:"STATUS_ALIASES_FILE"`
	BulkEditOldRange         string  `mapstructure:"BULK_EDIT_OLD_RANGE"`
	BulkEditEmptyDayFallback bool    `mapstructure:"BULK_EDIT_EMPTY_DAY_FALLBACK"`
	RateLimitRPS             float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst           int     `mapstructure:"RATE_LIMIT_BURST"`
}

var defaults = map[string]interface{}{
	"PORT":                         "8000",
	"ENV":                          "development",
	"LOG_LEVEL":                    "info",
	"DB_MAX_CONNS":                 20,
	"DB_MIN_CONNS":                 5,
	"CORS_ORIGINS":                 "http://localhost:3000",
	"SLOT_CACHE_TTL":               "60s",
	"STORE_TIMEOUT":                "10s",
	"REQUEST_TIMEOUT":              "30s",
	"BODY_LIMIT":                   "1M",
	"TIMEZONE":                     "UTC",
	"BULK_EDIT_OLD_RANGE":          "starts",
	"BULK_EDIT_EMPTY_DAY_FALLBACK": true,
	"RATE_LIMIT_RPS":               50,
	"RATE_LIMIT_BURST":             100,
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "SLOT_CACHE_TTL", "STORE_TIMEOUT", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"TIMEZONE", "STATUS_ALIASES_FILE", "BULK_EDIT_OLD_RANGE", "BULK_EDIT_EMPTY_DAY_FALLBACK",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads the environment, with a .env file in the working directory as
// a fallback.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Unmarshal only sees env vars that are bound explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AuthConfigured reports whether JWTs can be verified: a JWKS source or a
// shared signing key.
func (c *Config) AuthConfigured() bool {
	return c.AuthIssuer != "" || c.AuthJWKSURL != "" || c.AuthSigningKey != ""
}

// Validate rejects settings the server cannot run with. needDatabase is false
// for the in-memory mode.
func (c *Config) Validate(needDatabase bool) error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be development, staging or production, got %q", c.Env)
	}
	if needDatabase && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !c.IsDev() && !c.AuthConfigured() {
		return fmt.Errorf("ENV=%s requires AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY; "+
			"refusing to start without authentication", c.Env)
	}
	if c.Env == "production" && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is for development and testing only")
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch strings.ToLower(c.BulkEditOldRange) {
	case "", "starts", "covered":
	default:
		return fmt.Errorf("BULK_EDIT_OLD_RANGE must be starts or covered, got %q", c.BulkEditOldRange)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	for name, d := range map[string]time.Duration{
		"STORE_TIMEOUT":   c.StoreTimeout,
		"REQUEST_TIMEOUT": c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.SlotCacheTTL < 0 {
		return fmt.Errorf("SLOT_CACHE_TTL must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
