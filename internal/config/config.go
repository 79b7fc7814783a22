// Package config provides configuration structures and validation for the booking API.
// It handles environment-based configuration for the HTTP server, the payment gateway,
// outgoing email, the reconciliation scheduler and the optional infrastructure
// (Redis, Kafka, PostgreSQL) used around it.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Optional subsystems are disabled when their address field is empty.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	RateLimit      RateLimitConfig
	Reconciliation ReconciliationConfig
	PhonePe        PhonePeConfig
	Fallback       FallbackConfig
	Email          EmailConfig
	OTP            OTPConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
	AllowedOrigins  []string      // Origins accepted by the CORS middleware
}

// RateLimitConfig bounds requests per client IP. The strict limit applies on top of the
// global one for payment creation and notification routes.
type RateLimitConfig struct {
	Enabled        bool
	GlobalRequests int           // Requests allowed per GlobalWindow
	GlobalWindow   time.Duration
	StrictRequests int           // Requests allowed per StrictWindow
	StrictWindow   time.Duration
	IdleTimeout    time.Duration // Clients idle this long are forgotten
}

// ReconciliationConfig controls the background scheduler that polls the gateway
// for PENDING transactions.
type ReconciliationConfig struct {
	Interval               time.Duration // Time between reconciliation passes
	RetryLimit             int           // Status checks before a PENDING transaction times out
	Retention              time.Duration // How long terminal entries are kept after their last check
	Workers                int           // Concurrent gateway checks per pass
	RetryNotifications     bool          // Retry notifications that failed on the terminal transition
	NotificationRetryLimit int           // Attempts per transaction when RetryNotifications is set
}

// PhonePeConfig contains payment gateway credentials and endpoints
type PhonePeConfig struct {
	ClientID        string
	ClientSecret    string
	ClientVersion   string
	Env             string // sandbox or production
	BaseURL         string // Overrides the environment's payment API base URL
	AuthURL         string // Overrides the environment's OAuth base URL
	WebhookUsername string
	WebhookPassword string
	FrontendURL     string        // Used to build the post-payment redirect
	Timeout         time.Duration // Per-request timeout for gateway calls
}

// FallbackConfig describes the UPI deep link offered when the gateway is unavailable
type FallbackConfig struct {
	MerchantVPA string
	PayeeName   string
}

// EmailConfig contains SMTP settings
type EmailConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	OwnerAddress string // Receives booking alerts, failure notices and contact messages
}

// OTPConfig contains one-time code settings
type OTPConfig struct {
	Expiry        time.Duration
	SweepInterval time.Duration // Cleanup period for the in-memory store
	MaxAttempts   int           // Wrong guesses before a code is discarded
}

// RedisConfig contains Redis configuration. An empty Addr selects the in-memory OTP store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// KafkaConfig contains Kafka configuration. Empty Brokers disables event publishing.
type KafkaConfig struct {
	Brokers      string
	OutcomeTopic string // Topic for terminal payment outcomes
	DLQTopic     string // Topic for undelivered notifications
	WriteTimeout time.Duration
}

// PostgresConfig contains PostgreSQL configuration. An empty URL disables manual payment records.
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// validate performs validation of all configuration values,
// collecting every violation instead of stopping at the first one
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate RateLimit config
	if c.RateLimit.Enabled {
		if c.RateLimit.GlobalRequests <= 0 || c.RateLimit.GlobalWindow <= 0 {
			validationErrors = append(validationErrors, "RATE_LIMIT_GLOBAL_REQUESTS and RATE_LIMIT_GLOBAL_WINDOW must be greater than 0")
		}
		if c.RateLimit.StrictRequests <= 0 || c.RateLimit.StrictWindow <= 0 {
			validationErrors = append(validationErrors, "RATE_LIMIT_STRICT_REQUESTS and RATE_LIMIT_STRICT_WINDOW must be greater than 0")
		}
		if c.RateLimit.IdleTimeout <= 0 {
			validationErrors = append(validationErrors, "RATE_LIMIT_IDLE_TIMEOUT must be greater than 0")
		}
	}

	// Validate Reconciliation config
	if c.Reconciliation.Interval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_INTERVAL must be greater than 0")
	}
	if c.Reconciliation.RetryLimit <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_RETRY_LIMIT must be greater than 0")
	}
	if c.Reconciliation.Retention <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_RETENTION must be greater than 0")
	}
	if c.Reconciliation.Workers <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_WORKERS must be greater than 0")
	}
	if c.Reconciliation.RetryNotifications && c.Reconciliation.NotificationRetryLimit <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_NOTIFICATION_RETRY_LIMIT must be greater than 0 when RECONCILER_RETRY_NOTIFICATIONS is set")
	}

	// Validate PhonePe config
	if c.PhonePe.ClientID == "" {
		validationErrors = append(validationErrors, "PHONEPE_CLIENT_ID is required")
	}
	if c.PhonePe.ClientSecret == "" {
		validationErrors = append(validationErrors, "PHONEPE_CLIENT_SECRET is required")
	}
	if c.PhonePe.Env != "sandbox" && c.PhonePe.Env != "production" {
		validationErrors = append(validationErrors, "PHONEPE_ENV must be sandbox or production")
	}
	if c.PhonePe.FrontendURL == "" {
		validationErrors = append(validationErrors, "FRONTEND_URL is required")
	}
	if c.PhonePe.Timeout <= 0 {
		validationErrors = append(validationErrors, "PHONEPE_TIMEOUT must be greater than 0")
	}

	// Validate Fallback config
	if c.Fallback.MerchantVPA == "" {
		validationErrors = append(validationErrors, "FALLBACK_MERCHANT_VPA is required")
	}

	// Validate Email config
	if c.Email.Host == "" {
		validationErrors = append(validationErrors, "EMAIL_HOST is required")
	}
	if c.Email.Port <= 0 {
		validationErrors = append(validationErrors, "EMAIL_PORT must be greater than 0")
	}
	if c.Email.OwnerAddress == "" {
		validationErrors = append(validationErrors, "EMAIL_OWNER_ADDRESS is required")
	}

	// Validate OTP config
	if c.OTP.Expiry <= 0 {
		validationErrors = append(validationErrors, "OTP_EXPIRY must be greater than 0")
	}
	if c.OTP.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "OTP_SWEEP_INTERVAL must be greater than 0")
	}
	if c.OTP.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "OTP_MAX_ATTEMPTS must be greater than 0")
	}

	// Optional subsystems are only checked when enabled
	if c.Kafka.Brokers != "" {
		if c.Kafka.OutcomeTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_OUTCOME_TOPIC is required")
		}
		if c.Kafka.DLQTopic == "" {
			validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
		}
	}
	if c.Postgres.URL != "" {
		if c.Postgres.MaxConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
		}
		if c.Postgres.MinConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
		}
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

// KafkaEnabled reports whether outcome events and the notification dead letter are published
func (c *Config) KafkaEnabled() bool {
	return c.Kafka.Brokers != ""
}

// PostgresEnabled reports whether fallback bookings are recorded
func (c *Config) PostgresEnabled() bool {
	return c.Postgres.URL != ""
}

// RedisEnabled reports whether OTP codes are kept in Redis
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}
