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
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                string
	Port                  string
	DatabaseURL           string
	DBMaxConns            int32
	MigrateOnStart        bool
	RedisURL              string
	JWTSecret             string
	JWTIssuer             string
	CORSAllowedOrigins    []string
	RequestBodyLimitBytes int64
	RateLimit             string
	IdempotencyTTL        time.Duration
	BillSummaryCacheTTL   time.Duration
	LogFormat             string
	LogLevel              string
	MetricsBucketsMS      string
	OTelExporter          string
	OTelEndpoint          string
	OTelSamplingRatio     float64
	Billing               BillingDefaults
}

// BillingDefaults are the fixed charges applied when a generation request omits them.
type BillingDefaults struct {
	RoomRent             decimal.Decimal
	WaterCharges         decimal.Decimal
	ElectricityCharges   decimal.Decimal
	EstablishmentCharges decimal.Decimal
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                  valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:           strings.TrimSpace(k.String("DATABASE_URL")),
		DBMaxConns:            int32(parseInt(k.String("DB_MAX_CONNS"), 10)),
		MigrateOnStart:        parseBool(k.String("MIGRATE_ON_START")),
		RedisURL:              strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:             k.String("JWT_SECRET"),
		JWTIssuer:             strings.TrimSpace(k.String("JWT_ISSUER")),
		CORSAllowedOrigins:    splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RequestBodyLimitBytes: int64(parseInt(k.String("REQUEST_BODY_LIMIT_BYTES"), 1<<20)),
		RateLimit:             valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BillSummaryCacheTTL:   parseDuration(k.String("BILL_SUMMARY_CACHE_TTL"), "5m"),
		LogFormat:             valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:              valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsBucketsMS:      k.String("HTTP_METRICS_BUCKETS_MS"),
		OTelExporter:          valueOrDefault(k.String("OTEL_EXPORTER"), "none"),
		OTelEndpoint:          strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelSamplingRatio:     parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
	}

	var err error
	if cfg.Billing, err = loadBillingDefaults(k); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func loadBillingDefaults(k *koanf.Koanf) (BillingDefaults, error) {
	var (
		out  BillingDefaults
		errs []string
	)
	for _, f := range []struct {
		key      string
		fallback int64
		dst      *decimal.Decimal
	}{
		{"BILLING_DEFAULT_ROOM_RENT", 150, &out.RoomRent},
		{"BILLING_DEFAULT_WATER", 125, &out.WaterCharges},
		{"BILLING_DEFAULT_ELECTRICITY", 150, &out.ElectricityCharges},
		{"BILLING_DEFAULT_ESTABLISHMENT", 275, &out.EstablishmentCharges},
	} {
		raw := strings.TrimSpace(k.String(f.key))
		if raw == "" {
			*f.dst = decimal.NewFromInt(f.fallback)
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			errs = append(errs, f.key+" must be a non-negative number")
			continue
		}
		*f.dst = v
	}
	if len(errs) > 0 {
		return BillingDefaults{}, errors.New(strings.Join(errs, "; "))
	}
	return out, nil
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

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
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

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
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
