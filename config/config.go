// Package config implements configuration loading for the gateway:
// environment variables under a SDMGW_ prefix, read through spf13/viper,
// with a required-key fail-fast check and documented defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure, grouped by the
// environment surface it's read from.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// EncryptionConfig backs cryptovault.New. Mode is carried even though
// "local" is the only implemented value, so a future KMS-backed mode
// has somewhere to plug in without a config reshape.
type EncryptionConfig struct {
	Mode string
	Key  string // 64 hex chars, decoded by cryptovault.New
}

type RateLimitConfig struct {
	ProxyPerMinute int
	APIPerMinute   int
	LoginPerMinute int
}

type LogConfig struct {
	Level         string
	RetentionDays int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads environment variables via viper, applying defaults for
// everything optional and failing fast if DATABASE_URL, JWT_SECRET, or
// ENCRYPTION_KEY are absent.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SDMGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 3000)
	v.SetDefault("jwt_access_expiry", "15m")
	v.SetDefault("jwt_refresh_expiry", "168h") // 7d
	v.SetDefault("encryption_mode", "local")
	v.SetDefault("rate_limit_proxy", 100)
	v.SetDefault("rate_limit_api", 120)
	v.SetDefault("rate_limit_login", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_retention_days", 30)
	v.SetDefault("allowed_origins", "")

	for _, key := range []string{"database_url", "jwt_secret", "encryption_key", "port",
		"jwt_access_expiry", "jwt_refresh_expiry", "encryption_mode",
		"rate_limit_proxy", "rate_limit_api", "rate_limit_login",
		"log_level", "log_retention_days", "allowed_origins"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	required := map[string]string{
		"database_url":   "DATABASE_URL",
		"jwt_secret":     "JWT_SECRET",
		"encryption_key": "ENCRYPTION_KEY",
	}
	for key, envName := range required {
		if v.GetString(key) == "" {
			return nil, fmt.Errorf("missing required environment variable SDMGW_%s", envName)
		}
	}

	accessExpiry, err := time.ParseDuration(v.GetString("jwt_access_expiry"))
	if err != nil {
		return nil, fmt.Errorf("invalid SDMGW_JWT_ACCESS_EXPIRY: %w", err)
	}
	refreshExpiry, err := time.ParseDuration(v.GetString("jwt_refresh_expiry"))
	if err != nil {
		return nil, fmt.Errorf("invalid SDMGW_JWT_REFRESH_EXPIRY: %w", err)
	}

	var allowedOrigins []string
	if raw := v.GetString("allowed_origins"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(origin))
		}
	}

	return &Config{
		Server:   ServerConfig{Port: v.GetInt("port")},
		Database: DatabaseConfig{URL: v.GetString("database_url")},
		JWT: JWTConfig{
			Secret:        v.GetString("jwt_secret"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Encryption: EncryptionConfig{
			Mode: v.GetString("encryption_mode"),
			Key:  v.GetString("encryption_key"),
		},
		RateLimit: RateLimitConfig{
			ProxyPerMinute: v.GetInt("rate_limit_proxy"),
			APIPerMinute:   v.GetInt("rate_limit_api"),
			LoginPerMinute: v.GetInt("rate_limit_login"),
		},
		Log: LogConfig{
			Level:         v.GetString("log_level"),
			RetentionDays: v.GetInt("log_retention_days"),
		},
		CORS: CORSConfig{AllowedOrigins: allowedOrigins},
	}, nil
}

// GetServerAddr encapsulates the bind address format in one place.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
