package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigWithName loads configuration using the specified name, auto-detecting the file type
func LoadConfigWithName(configName string) (*Config, error) {
	return loadConfig(configName, "")
}

// LoadConfig loads configuration from a .env file using the provided base name
// This is the preferred method for loading environment-specific configurations
func LoadConfig(configName string) (*Config, error) {
	configFileName := fmt.Sprintf("%s.env", configName)
	return loadConfig(configFileName, "env")
}

// loadConfig handles configuration loading from files and environment variables.
// Defaults are overridden by the config file, which is overridden by the environment.
func loadConfig(configName, configType string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	if configType != "" {
		v.SetConfigType(configType)
	}

	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Printf("INFO: No config file '%s' found, relying on environment variables and defaults.\n", configName)
		} else {
			fmt.Printf("WARNING: Error reading config file (%s): %v\n", v.ConfigFileUsed(), err)
		}
	} else {
		fmt.Printf("INFO: Config loaded from file: %s\n", v.ConfigFileUsed())
	}

	v.AutomaticEnv()

	config := &Config{
		Application: ApplicationConfig{
			Env:  v.GetString("APP_ENV"),
			Name: v.GetString("APP_NAME"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			AllowedOrigins:  splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		RateLimit: RateLimitConfig{
			Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
			GlobalRequests: v.GetInt("RATE_LIMIT_GLOBAL_REQUESTS"),
			GlobalWindow:   v.GetDuration("RATE_LIMIT_GLOBAL_WINDOW"),
			StrictRequests: v.GetInt("RATE_LIMIT_STRICT_REQUESTS"),
			StrictWindow:   v.GetDuration("RATE_LIMIT_STRICT_WINDOW"),
			IdleTimeout:    v.GetDuration("RATE_LIMIT_IDLE_TIMEOUT"),
		},
		Reconciliation: ReconciliationConfig{
			Interval:               v.GetDuration("RECONCILER_INTERVAL"),
			RetryLimit:             v.GetInt("RECONCILER_RETRY_LIMIT"),
			Retention:              v.GetDuration("RECONCILER_RETENTION"),
			Workers:                v.GetInt("RECONCILER_WORKERS"),
			RetryNotifications:     v.GetBool("RECONCILER_RETRY_NOTIFICATIONS"),
			NotificationRetryLimit: v.GetInt("RECONCILER_NOTIFICATION_RETRY_LIMIT"),
		},
		PhonePe: PhonePeConfig{
			ClientID:        v.GetString("PHONEPE_CLIENT_ID"),
			ClientSecret:    v.GetString("PHONEPE_CLIENT_SECRET"),
			ClientVersion:   v.GetString("PHONEPE_CLIENT_VERSION"),
			Env:             strings.ToLower(v.GetString("PHONEPE_ENV")),
			BaseURL:         v.GetString("PHONEPE_BASE_URL"),
			AuthURL:         v.GetString("PHONEPE_AUTH_URL"),
			WebhookUsername: v.GetString("PHONEPE_WEBHOOK_USERNAME"),
			WebhookPassword: v.GetString("PHONEPE_WEBHOOK_PASSWORD"),
			FrontendURL:     strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
			Timeout:         v.GetDuration("PHONEPE_TIMEOUT"),
		},
		Fallback: FallbackConfig{
			MerchantVPA: v.GetString("FALLBACK_MERCHANT_VPA"),
			PayeeName:   v.GetString("FALLBACK_PAYEE_NAME"),
		},
		Email: EmailConfig{
			Host:         v.GetString("EMAIL_HOST"),
			Port:         v.GetInt("EMAIL_PORT"),
			Username:     v.GetString("EMAIL_USER"),
			Password:     v.GetString("EMAIL_PASSWORD"),
			From:         v.GetString("EMAIL_FROM"),
			OwnerAddress: v.GetString("EMAIL_OWNER_ADDRESS"),
		},
		OTP: OTPConfig{
			Expiry:        v.GetDuration("OTP_EXPIRY"),
			SweepInterval: v.GetDuration("OTP_SWEEP_INTERVAL"),
			MaxAttempts:   v.GetInt("OTP_MAX_ATTEMPTS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		},
		Kafka: KafkaConfig{
			Brokers:      v.GetString("KAFKA_BROKERS"),
			OutcomeTopic: v.GetString("KAFKA_OUTCOME_TOPIC"),
			DLQTopic:     v.GetString("KAFKA_DLQ_TOPIC"),
			WriteTimeout: v.GetDuration("KAFKA_WRITE_TIMEOUT"),
		},
		Postgres: PostgresConfig{
			URL:             v.GetString("POSTGRES_URL"),
			MaxConns:        int32(v.GetInt("POSTGRES_MAX_CONNS")),
			MinConns:        int32(v.GetInt("POSTGRES_MIN_CONNS")),
			ConnMaxLifetime: v.GetDuration("POSTGRES_MAX_CONN_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("POSTGRES_MAX_CONN_IDLE_TIME"),
			MigrationsPath:  v.GetString("POSTGRES_MIGRATIONS_PATH"),
		},
	}

	// The owner inbox and sender default to the SMTP account
	if config.Email.OwnerAddress == "" {
		config.Email.OwnerAddress = config.Email.Username
	}
	if config.Email.From == "" {
		config.Email.From = config.Email.Username
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setDefaults initializes configuration with default values.
// These values are used when no configuration file or environment variables are present.
func setDefaults(v *viper.Viper) {
	// HTTP Server defaults
	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 120*time.Second)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "http://localhost:5173")

	// Per-IP rate limits
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_GLOBAL_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_GLOBAL_WINDOW", 15*time.Minute)
	v.SetDefault("RATE_LIMIT_STRICT_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_STRICT_WINDOW", 15*time.Minute)
	v.SetDefault("RATE_LIMIT_IDLE_TIMEOUT", 30*time.Minute)

	// Reconciliation defaults
	v.SetDefault("RECONCILER_INTERVAL", 30*time.Second)
	v.SetDefault("RECONCILER_RETRY_LIMIT", 10)
	v.SetDefault("RECONCILER_RETENTION", 24*time.Hour)
	v.SetDefault("RECONCILER_WORKERS", 4)
	v.SetDefault("RECONCILER_RETRY_NOTIFICATIONS", false)
	v.SetDefault("RECONCILER_NOTIFICATION_RETRY_LIMIT", 3)

	// PhonePe defaults - sandbox until credentials for production are supplied
	v.SetDefault("PHONEPE_CLIENT_VERSION", "1")
	v.SetDefault("PHONEPE_ENV", "sandbox")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("PHONEPE_TIMEOUT", 15*time.Second)

	v.SetDefault("FALLBACK_PAYEE_NAME", "Consultation Booking")

	// Email defaults
	v.SetDefault("EMAIL_HOST", "smtp.gmail.com")
	v.SetDefault("EMAIL_PORT", 587)

	// OTP defaults
	v.SetDefault("OTP_EXPIRY", 10*time.Minute)
	v.SetDefault("OTP_SWEEP_INTERVAL", 5*time.Minute)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)

	// Kafka topics, only used when KAFKA_BROKERS is set
	v.SetDefault("KAFKA_OUTCOME_TOPIC", "booking_payment_outcomes")
	v.SetDefault("KAFKA_DLQ_TOPIC", "booking_notifications_dlq")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", 10*time.Second)

	// PostgreSQL pool defaults, only used when POSTGRES_URL is set
	v.SetDefault("POSTGRES_MAX_CONNS", 5)
	v.SetDefault("POSTGRES_MIN_CONNS", 1)
	v.SetDefault("POSTGRES_MAX_CONN_LIFETIME", time.Hour)
	v.SetDefault("POSTGRES_MAX_CONN_IDLE_TIME", 30*time.Minute)
	v.SetDefault("POSTGRES_MIGRATIONS_PATH", "migrations/postgres")

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "consultation-booking")
}
