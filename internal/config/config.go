package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort    string
	ApiEnabled string

	BusProvider   string
	BusBufferSize int

	StripeSecretKey     string
	WebhookSigningKey   string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	MinPoints           int64
	MaxPoints           int64
	UnitPriceMinorUnits int64
	DefaultBalance      int64
	MaxRetries          int
	RetryBaseMillis     int
}

// New loads and validates configuration from environment variables.
// HTTP server is optional: if POINTSPAY_API_ENABLED != "true", ApiAddr() returns
// an error and the HTTP server simply won't start. The bus provider decides
// whether settlement events flow through NATS or an in-process channel.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:  os.Getenv("POINTSPAY_POSTGRES_USER"),
		DBPass:  os.Getenv("POINTSPAY_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("POINTSPAY_POSTGRES_HOST"),
		DBPort:  os.Getenv("POINTSPAY_POSTGRES_PORT"),
		DBName:  os.Getenv("POINTSPAY_POSTGRES_DB"),
		SSLMode: os.Getenv("POINTSPAY_POSTGRES_SSLMODE"),

		RedisHost: os.Getenv("POINTSPAY_REDIS_HOST"),
		RedisPort: os.Getenv("POINTSPAY_REDIS_PORT"),

		NatsHost: os.Getenv("POINTSPAY_NATS_HOST"),
		NatsPort: os.Getenv("POINTSPAY_NATS_PORT"),

		ApiPort:    os.Getenv("POINTSPAY_API_PORT"),
		ApiEnabled: os.Getenv("POINTSPAY_API_ENABLED"),

		BusProvider:   os.Getenv("POINTSPAY_BUS_PROVIDER"),
		BusBufferSize: getEnvInt("POINTSPAY_BUS_BUFFER_SIZE", 1024),

		StripeSecretKey:    os.Getenv("POINTSPAY_STRIPE_SECRET_KEY"),
		WebhookSigningKey:  os.Getenv("POINTSPAY_WEBHOOK_SIGNING_KEY"),
		CheckoutSuccessURL: os.Getenv("POINTSPAY_CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:  os.Getenv("POINTSPAY_CHECKOUT_CANCEL_URL"),

		MinPoints:           getEnvInt64("POINTSPAY_MIN_POINTS", 10),
		MaxPoints:           getEnvInt64("POINTSPAY_MAX_POINTS", 5000),
		UnitPriceMinorUnits: getEnvInt64("POINTSPAY_UNIT_PRICE_MINOR_UNITS", 10),
		DefaultBalance:      getEnvInt64("POINTSPAY_DEFAULT_BALANCE", 0),
		MaxRetries:          getEnvInt("POINTSPAY_MAX_RETRIES", 3),
		RetryBaseMillis:     getEnvInt("POINTSPAY_RETRY_BASE_MS", 1000),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: POINTSPAY_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: POINTSPAY_REDIS_HOST/PORT")
	}

	// Required: gateway credentials
	if cfg.StripeSecretKey == "" || cfg.WebhookSigningKey == "" {
		return nil, fmt.Errorf("missing required env: POINTSPAY_STRIPE_SECRET_KEY and POINTSPAY_WEBHOOK_SIGNING_KEY")
	}
	if cfg.CheckoutSuccessURL == "" || cfg.CheckoutCancelURL == "" {
		return nil, fmt.Errorf("missing required env: POINTSPAY_CHECKOUT_SUCCESS_URL/CANCEL_URL")
	}

	// Required: bus provider
	if cfg.BusProvider == "" {
		return nil, fmt.Errorf("missing required env: POINTSPAY_BUS_PROVIDER (nats|channel)")
	}
	if cfg.BusProvider != "nats" && cfg.BusProvider != "channel" {
		return nil, fmt.Errorf("invalid bus provider %q, must be 'nats' or 'channel'", cfg.BusProvider)
	}
	if cfg.BusProvider == "nats" && (cfg.NatsHost == "" || cfg.NatsPort == "") {
		return nil, fmt.Errorf("missing required env for nats bus: POINTSPAY_NATS_HOST/PORT")
	}

	// Sanity on purchase bounds
	if cfg.MinPoints <= 0 || cfg.MaxPoints < cfg.MinPoints {
		return nil, fmt.Errorf("invalid points bounds: min=%d max=%d", cfg.MinPoints, cfg.MaxPoints)
	}
	if cfg.UnitPriceMinorUnits <= 0 {
		return nil, fmt.Errorf("invalid unit price: %d", cfg.UnitPriceMinorUnits)
	}
	if cfg.DefaultBalance < 0 {
		return nil, fmt.Errorf("invalid default balance: %d", cfg.DefaultBalance)
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if POINTSPAY_API_ENABLED != "true"; callers should skip
// starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("POINTSPAY_API_PORT is required when POINTSPAY_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (POINTSPAY_API_ENABLED != true)")
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int64
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}
