package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default. Without DATABASE_URL the service keeps
// contacts and dispatches in memory; without REDIS_ADDR idempotency keys are
// held in memory too.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	IdempotencyTTL time.Duration

	// Email relay (EmailJS REST API)
	EmailJSURL        string
	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	RelayTimeout      time.Duration

	// EmailOverrides maps a known-bad address to its replacement,
	// e.g. "ops@gmial.com=ops@gmail.com,old@x.io=new@x.io".
	EmailOverrides map[string]string

	// Delivery
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int // requests per second per channel; 0 disables limiting
	PhoneRegion string

	// Maps
	HereAPIKey string

	// Tracking
	TrackingMinInterval time.Duration
}

// Load reads configuration from the environment. Variables in a .env file in
// the working directory are loaded first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	overrides, err := parseOverrides(os.Getenv("EMAIL_ADDRESS_OVERRIDES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getInt("REDIS_DB", 0),
		IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		EmailJSURL:        getEnv("EMAILJS_URL", "https://api.emailjs.com/api/v1.0/email/send"),
		EmailJSServiceID:  os.Getenv("EMAILJS_SERVICE_ID"),
		EmailJSTemplateID: os.Getenv("EMAILJS_TEMPLATE_ID"),
		EmailJSPublicKey:  os.Getenv("EMAILJS_PUBLIC_KEY"),
		EmailJSPrivateKey: os.Getenv("EMAILJS_PRIVATE_KEY"),
		RelayTimeout:      getDuration("RELAY_TIMEOUT", 10*time.Second),

		EmailOverrides: overrides,

		MaxRetries:  getInt("MAX_RETRIES", 2),
		RetryDelay:  getDuration("RETRY_DELAY", time.Second),
		RateLimit:   getInt("RATE_LIMIT_PER_CHANNEL", 10),
		PhoneRegion: getEnv("PHONE_REGION", "US"),

		HereAPIKey: os.Getenv("HERE_API_KEY"),

		TrackingMinInterval: getDuration("TRACKING_MIN_INTERVAL", 30*time.Second),
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must not be negative, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}

// RelayConfigured reports whether every EmailJS identifier is present.
func (c *Config) RelayConfigured() bool {
	return c.EmailJSServiceID != "" && c.EmailJSTemplateID != "" && c.EmailJSPublicKey != ""
}

func parseOverrides(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("EMAIL_ADDRESS_OVERRIDES: malformed entry %q", pair)
		}
		out[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	return out, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
