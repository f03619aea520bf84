package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

// Submitter names accepted by CHECKOUT_SUBMITTER.
const (
	SubmitterLog    = "log"
	SubmitterEvents = "events"
)

// BreakerConfig configures the circuit breaker in front of the Redis session store.
type BreakerConfig struct {
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// SecurityConfig configures response headers and request limits.
type SecurityConfig struct {
	Headers      bool
	HSTS         bool
	HSTSMaxAge   int
	MaxBodyBytes int64
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	SessionTTL         time.Duration
	Money              money.Options
	Rates              pricing.RateTable
	InheritBilling     bool
	Submitter          string
	SubmitRateMax      int
	SubmitRateWindow   time.Duration
	StoreBreaker       BreakerConfig
	Security           SecurityConfig
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	defaults := pricing.DefaultRates()
	moneyDefaults := money.DefaultOptions()
	var errs []string
	minor := func(key string, fallback int64) int64 {
		v, err := parseInt(k.String(key), fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return v
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		SessionTTL:         parseDuration(k.String("SESSION_TTL"), "30m"),
		Money: money.Options{
			Locale:   valueOrDefault(k.String("PRICING_LOCALE"), moneyDefaults.Locale),
			Currency: valueOrDefault(k.String("PRICING_CURRENCY"), moneyDefaults.Currency),
			Symbol:   valueOrDefault(k.String("PRICING_CURRENCY_SYMBOL"), moneyDefaults.Symbol),
		},
		Rates: pricing.RateTable{
			WhatsApp:          minor("PRICING_RATE_WHATSAPP", defaults.WhatsApp),
			Social:            minor("PRICING_RATE_SOCIAL", defaults.Social),
			Seat:              minor("PRICING_RATE_SEAT", defaults.Seat),
			Broadcast:         minor("PRICING_RATE_BROADCAST", defaults.Broadcast),
			Setup:             minor("PRICING_RATE_SETUP", defaults.Setup),
			AnnualDiscountBps: int(minor("PRICING_ANNUAL_DISCOUNT_BPS", int64(defaults.AnnualDiscountBps))),
		},
		InheritBilling:   parseBool(k.String("CHECKOUT_INHERIT_BILLING")),
		Submitter:        strings.ToLower(valueOrDefault(k.String("CHECKOUT_SUBMITTER"), SubmitterEvents)),
		SubmitRateMax:    int(minor("SUBMIT_RATE_LIMIT_MAX", 5)),
		SubmitRateWindow: parseDuration(k.String("SUBMIT_RATE_LIMIT_WINDOW"), "1m"),
		StoreBreaker: BreakerConfig{
			MinRequests:  int(minor("SESSION_BREAKER_MIN_REQUESTS", 5)),
			FailureRatio: parseFloat(k.String("SESSION_BREAKER_FAILURE_RATIO"), 0.5),
			OpenFor:      parseDuration(k.String("SESSION_BREAKER_OPEN_FOR"), "10s"),
		},
		Security: SecurityConfig{
			Headers:      parseBoolDefault(k.String("SECURE_HEADERS_ENABLE"), true),
			HSTS:         parseBool(k.String("SECURE_HSTS_ENABLE")),
			HSTSMaxAge:   int(minor("SECURE_HSTS_MAX_AGE", 31536000)),
			MaxBodyBytes: minor("SECURE_MAX_BODY_BYTES", 64<<10),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Rates.Validate(); err != nil {
		return nil, err
	}
	if cfg.Submitter != SubmitterLog && cfg.Submitter != SubmitterEvents {
		return nil, fmt.Errorf("CHECKOUT_SUBMITTER must be %q or %q, got %q", SubmitterLog, SubmitterEvents, cfg.Submitter)
	}
	if _, err := money.NewFormatter(cfg.Money); err != nil {
		return nil, fmt.Errorf("pricing formatter: %w", err)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int64) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad is Load for command entrypoints that cannot continue without config.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
