// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Env         string
	Port        string
	DatabaseURL string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RedisAddr     string
	RedisPassword string

	// Cloudflare R2 bucket for settlement reports.
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string

	PaymentBaseURL       string
	PaymentKeyID         string
	PaymentKeySecret     string
	PaymentWebhookSecret string
	PaymentGrace         time.Duration

	ProfileSyncURL   string
	ProfileSyncToken string

	AllowedOrigins []string
	ReminderWindow time.Duration
	MetricsToken   string
}

// Load reads the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getenv("APP_ENV", "development"),
		Port:        getenv("PORT", "5200"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		R2AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:        os.Getenv("CDN_BASE_URL"),

		PaymentBaseURL:       getenv("PAYMENT_BASE_URL", "https://api.razorpay.com"),
		PaymentKeyID:         os.Getenv("PAYMENT_KEY_ID"),
		PaymentKeySecret:     os.Getenv("PAYMENT_KEY_SECRET"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		ProfileSyncURL:   os.Getenv("PROFILE_SYNC_URL"),
		ProfileSyncToken: os.Getenv("PROFILE_SYNC_TOKEN"),

		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000")),
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	}

	var err error
	if cfg.ReminderWindow, err = duration("REMINDER_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PaymentGrace, err = duration("PAYMENT_RECONCILE_GRACE", 10*time.Minute); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable not set")
	}
	if cfg.PaymentWebhookSecret == "" {
		cfg.PaymentWebhookSecret = cfg.PaymentKeySecret
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// R2Enabled reports whether settlement reports can be archived.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2Bucket != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
