package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/storefront-api/internal/money"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	MigrateOnStart     bool
	ShutdownTimeout    time.Duration
	BodyLimitBytes     int64

	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	JWTClockSkew time.Duration

	DeliveryFeeCents           int64
	FreeShippingThresholdCents int64
	Currency                   string
	CurrencySymbol             string

	BasketTTL        time.Duration
	IdempotencyTTL   time.Duration
	ProductCacheTTL  time.Duration
	LockTTL          time.Duration
	LockMaxWait      time.Duration
	CouponRateMax    int
	CouponRateWindow time.Duration

	LogFormat          string
	LogLevel           string
	MetricsNamespace   string
	MetricsBuckets     string
	TracingExporter    string
	TracingEndpoint    string
	TracingSampleRatio float64
	ServiceName        string

	SecurityHeaders bool
	HSTSEnabled     bool

	PprofEnabled bool
	PprofUser    string
	PprofPass    string

	WebhookURL         string
	WebhookSecret      string
	WebhookTopics      []string
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
	WebhookAsync       bool
	WebhookQueue       string
	WorkerConcurrency  int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START"), true),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		BodyLimitBytes:     parseInt64(k.String("BODY_LIMIT_BYTES"), 1<<20),

		JWTSecret:    k.String("JWT_SECRET"),
		JWTIssuer:    strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:  strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTClockSkew: parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),

		DeliveryFeeCents:           parseInt64(k.String("PRICING_DELIVERY_FEE_CENTS"), int64(pricing.DefaultDeliveryFee)),
		FreeShippingThresholdCents: parseInt64(k.String("PRICING_FREE_SHIPPING_THRESHOLD_CENTS"), int64(pricing.DefaultFreeShippingThreshold)),
		Currency:                   strings.ToUpper(valueOrDefault(k.String("PRICING_CURRENCY"), "EUR")),
		CurrencySymbol:             valueOrDefault(k.String("PRICING_CURRENCY_SYMBOL"), money.DefaultSymbol),

		BasketTTL:        parseDuration(k.String("BASKET_TTL"), "720h"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		ProductCacheTTL:  parseDuration(k.String("PRODUCT_CACHE_TTL"), "5m"),
		LockTTL:          parseDuration(k.String("BASKET_LOCK_TTL"), "10s"),
		LockMaxWait:      parseDuration(k.String("BASKET_LOCK_MAX_WAIT"), "3s"),
		CouponRateMax:    int(parseInt64(k.String("COUPON_RATE_LIMIT_MAX"), 10)),
		CouponRateWindow: parseDuration(k.String("COUPON_RATE_LIMIT_WINDOW"), "1m"),

		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("METRICS_NAMESPACE"), "storefront"),
		MetricsBuckets:     k.String("METRICS_BUCKETS_MS"),
		TracingExporter:    valueOrDefault(k.String("OTEL_TRACES_EXPORTER"), "none"),
		TracingEndpoint:    k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TracingSampleRatio: parseFloat(k.String("OTEL_TRACES_SAMPLER_RATIO"), 1),
		ServiceName:        valueOrDefault(k.String("OTEL_SERVICE_NAME"), "storefront-api"),

		SecurityHeaders: parseBool(k.String("SECURITY_HEADERS"), true),
		HSTSEnabled:     parseBool(k.String("SECURITY_HSTS"), false),

		PprofEnabled: parseBool(k.String("PPROF_ENABLED"), false),
		PprofUser:    strings.TrimSpace(k.String("PPROF_BASIC_AUTH_USER")),
		PprofPass:    strings.TrimSpace(k.String("PPROF_BASIC_AUTH_PASS")),

		WebhookURL:         strings.TrimSpace(k.String("WEBHOOK_URL")),
		WebhookSecret:      k.String("WEBHOOK_SECRET"),
		WebhookTopics:      splitAndTrim(k.String("WEBHOOK_TOPICS")),
		WebhookTimeout:     parseDuration(k.String("WEBHOOK_TIMEOUT"), "5s"),
		WebhookMaxAttempts: int(parseInt64(k.String("WEBHOOK_MAX_ATTEMPTS"), 3)),
		WebhookAsync:       parseBool(k.String("WEBHOOK_ASYNC"), true),
		WebhookQueue:       valueOrDefault(k.String("WEBHOOK_QUEUE"), "webhooks"),
		WorkerConcurrency:  int(parseInt64(k.String("WORKER_CONCURRENCY"), 4)),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.DeliveryFeeCents < 0 || cfg.FreeShippingThresholdCents < 0 {
		return nil, errors.New("pricing amounts must not be negative")
	}
	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		return nil, errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
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

// PricingPolicy returns the configured delivery fee rule.
func (c *Config) PricingPolicy() pricing.Policy {
	return pricing.Policy{
		DeliveryFee:           pricing.Money(c.DeliveryFeeCents),
		FreeShippingThreshold: pricing.Money(c.FreeShippingThresholdCents),
	}
}

// Formatter returns the display formatter for the configured currency.
func (c *Config) Formatter() money.Formatter {
	return money.Formatter{Symbol: c.CurrencySymbol}
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

func parseInt64(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
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
