package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds the environment-backed settings for the sync engine.
type Config struct {
	Environment string
	HTTPAddr    string
	DatabaseURL string

	PolarBaseURL       string
	PolarAccessToken   string
	PolarWebhookSecret string

	AuthAdminURL string
	AuthAdminKey string

	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string
	TracingSampling float64
	ServiceName     string
	ServiceVersion  string
}

var (
	ErrMissingDatabaseURL   = errors.New("missing_database_url")
	ErrMissingPolarToken    = errors.New("missing_polar_access_token")
	ErrMissingWebhookSecret = errors.New("missing_polar_webhook_secret")
)

// Load reads configuration from the environment. A .env file is honored when
// present so local runs match deployed behavior.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:        envOr("ENVIRONMENT", "development"),
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PolarBaseURL:       envOr("POLAR_BASE_URL", "https://api.polar.sh"),
		PolarAccessToken:   strings.TrimSpace(os.Getenv("POLAR_ACCESS_TOKEN")),
		PolarWebhookSecret: strings.TrimSpace(os.Getenv("POLAR_WEBHOOK_SECRET")),
		AuthAdminURL:       strings.TrimSpace(os.Getenv("AUTH_ADMIN_URL")),
		AuthAdminKey:       strings.TrimSpace(os.Getenv("AUTH_ADMIN_KEY")),
		TracingEnabled:     envBool("TRACING_ENABLED", false),
		TracingEndpoint:    strings.TrimSpace(os.Getenv("TRACING_ENDPOINT")),
		TracingProtocol:    envOr("TRACING_PROTOCOL", "grpc"),
		TracingSampling:    envFloat("TRACING_SAMPLING_RATIO", 0.1),
		ServiceName:        envOr("SERVICE_NAME", "polarsync"),
		ServiceVersion:     envOr("SERVICE_VERSION", "dev"),
	}

	if cfg.DatabaseURL == "" {
		return cfg, ErrMissingDatabaseURL
	}
	if cfg.PolarAccessToken == "" {
		return cfg, ErrMissingPolarToken
	}
	if cfg.PolarWebhookSecret == "" {
		return cfg, ErrMissingWebhookSecret
	}
	return cfg, nil
}

// IsProduction reports whether the engine runs against the live environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
