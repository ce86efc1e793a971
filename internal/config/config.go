// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"SPHERELINK_DB_PATH" envDefault:"./data/spherelink.db"`
	SessionSecret string `env:"SPHERELINK_SESSION_SECRET,required"`
	JWTSecret     string `env:"SPHERELINK_JWT_SECRET"` // Falls back to SessionSecret when empty
	ServerHost    string `env:"SPHERELINK_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SPHERELINK_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"SPHERELINK_ENV" envDefault:"development"`
	BaseURL       string `env:"SPHERELINK_BASE_URL" envDefault:"http://localhost:8080"` // Used in email links
	LogLevel      string `env:"SPHERELINK_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"SPHERELINK_UPLOADS_DIR" envDefault:"./uploads"`

	// Cache configuration
	RedisURL     string `env:"SPHERELINK_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"SPHERELINK_CACHE_PREFIX" envDefault:"sphere:"` // Redis key prefix
	CacheTTL     int    `env:"SPHERELINK_CACHE_TTL" envDefault:"300"`        // Default cache TTL in seconds
	CacheMaxSize int    `env:"SPHERELINK_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// SMTP configuration, read at process start. Mail sending is disabled
	// when SMTPHost is empty.
	SMTPHost     string `env:"SPHERELINK_SMTP_HOST"`
	SMTPPort     int    `env:"SPHERELINK_SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SPHERELINK_SMTP_USER"`
	SMTPPassword string `env:"SPHERELINK_SMTP_PASSWORD"`
	SMTPFrom     string `env:"SPHERELINK_SMTP_FROM" envDefault:"spherelinkevents@gmail.com"`

	// Login protection. Failed attempts are counted per account inside
	// LoginFailureWindow; crossing LoginMaxFailures locks the account for
	// LoginLockout, doubling on each repeat lockout.
	LoginIPRate        float64       `env:"SPHERELINK_LOGIN_IP_RATE" envDefault:"0.5"`
	LoginIPBurst       int           `env:"SPHERELINK_LOGIN_IP_BURST" envDefault:"5"`
	LoginMaxFailures   int           `env:"SPHERELINK_LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginLockout       time.Duration `env:"SPHERELINK_LOGIN_LOCKOUT" envDefault:"15m"`
	LoginFailureWindow time.Duration `env:"SPHERELINK_LOGIN_FAILURE_WINDOW" envDefault:"15m"`

	// Seeding configuration
	DoSeed bool `env:"SPHERELINK_DO_SEED" envDefault:"false"` // Seed baseline data on startup
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// MailEnabled returns true if SMTP is configured.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// SMTPAddr returns the SMTP server address in host:port format.
func (c Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}

// TokenSecret returns the secret used to sign API tokens.
func (c Config) TokenSecret() []byte {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret)
	}
	return []byte(c.SessionSecret)
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate session secret length
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SPHERELINK_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("SPHERELINK_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("SPHERELINK_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
