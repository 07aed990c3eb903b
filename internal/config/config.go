package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Mist backend
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Redis       RedisConfig
	AWS         AWSConfig
	SMS         SMSConfig
	Push        PushConfig
	Search      SearchConfig
	Logging     LoggingConfig
	Telemetry   TelemetryConfig
	Jobs        JobsConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP and relay listener configuration
type ServerConfig struct {
	Port       int
	RelayPort  int
	APIBaseURL string // used by the relay to persist messages
}

// DatabaseConfig selects the gorm driver and its DSN
type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	URL    string
}

// AuthConfig holds token and verification code settings
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	CodeTTL    time.Duration
	TestCodes  bool // deterministic codes for load testing
	StaticCode string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	Enabled  bool
}

// AWSConfig holds SES and S3 settings
type AWSConfig struct {
	Region     string
	EmailFrom  string
	EmailName  string
	Bucket     string
	CDNBaseURL string
}

// SMSConfig holds Twilio REST credentials
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// PushConfig holds Expo push settings
type PushConfig struct {
	URL string
}

// SearchConfig holds Elasticsearch settings
type SearchConfig struct {
	URL     string
	Enabled bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
	File  string
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SamplingRate float64
	ServiceName  string
}

// JobsConfig holds background job settings
type JobsConfig struct {
	SystemVoters      []string
	MistboxDailyOpens int
	DigestHourUTC     int
}

// RateLimitConfig configures the Redis rate limiter
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables and an optional config file
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mist")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Environment: v.GetString("environment"),
		Server: ServerConfig{
			Port:       v.GetInt("port"),
			RelayPort:  v.GetInt("relay_port"),
			APIBaseURL: v.GetString("api_base_url"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database_driver")),
			URL:    v.GetString("database_url"),
		},
		Auth: AuthConfig{
			JWTSecret:  v.GetString("jwt_secret"),
			TokenTTL:   v.GetDuration("token_ttl"),
			CodeTTL:    v.GetDuration("code_ttl"),
			TestCodes:  v.GetBool("auth_test_codes"),
			StaticCode: v.GetString("auth_static_code"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis_host"),
			Port:     v.GetString("redis_port"),
			Password: v.GetString("redis_password"),
			Enabled:  v.GetString("redis_host") != "",
		},
		AWS: AWSConfig{
			Region:     v.GetString("aws_region"),
			EmailFrom:  v.GetString("email_from"),
			EmailName:  v.GetString("email_from_name"),
			Bucket:     v.GetString("aws_bucket"),
			CDNBaseURL: v.GetString("cdn_base_url"),
		},
		SMS: SMSConfig{
			AccountSID: v.GetString("twilio_account_sid"),
			AuthToken:  v.GetString("twilio_auth_token"),
			FromNumber: v.GetString("twilio_from_number"),
			BaseURL:    v.GetString("twilio_base_url"),
		},
		Push: PushConfig{
			URL: v.GetString("expo_push_url"),
		},
		Search: SearchConfig{
			URL:     v.GetString("elasticsearch_url"),
			Enabled: v.GetString("elasticsearch_url") != "",
		},
		Logging: LoggingConfig{
			Level: v.GetString("log_level"),
			File:  v.GetString("log_file"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("otel_enabled"),
			OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),
			SamplingRate: v.GetFloat64("otel_sampling_rate"),
			ServiceName:  v.GetString("otel_service_name"),
		},
		Jobs: JobsConfig{
			SystemVoters:      splitList(v.GetString("system_voters")),
			MistboxDailyOpens: v.GetInt("mistbox_daily_opens"),
			DigestHourUTC:     v.GetInt("digest_hour_utc"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit_requests"),
			Window:   v.GetDuration("rate_limit_window"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8000)
	v.SetDefault("relay_port", 8001)
	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("database_driver", "postgres")
	v.SetDefault("database_url", "host=localhost port=5432 user=postgres dbname=mist sslmode=disable")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 30*24*time.Hour)
	v.SetDefault("code_ttl", 10*time.Minute)
	v.SetDefault("auth_test_codes", false)
	v.SetDefault("auth_static_code", "123456")
	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("email_from", "")
	v.SetDefault("email_from_name", "Mist")
	v.SetDefault("aws_bucket", "")
	v.SetDefault("cdn_base_url", "")
	v.SetDefault("twilio_account_sid", "")
	v.SetDefault("twilio_auth_token", "")
	v.SetDefault("twilio_from_number", "")
	v.SetDefault("twilio_base_url", "https://api.twilio.com")
	v.SetDefault("expo_push_url", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("elasticsearch_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "server.log")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4318")
	v.SetDefault("otel_sampling_rate", 1.0)
	v.SetDefault("otel_service_name", "mist-backend")
	v.SetDefault("system_voters", "")
	v.SetDefault("mistbox_daily_opens", 3)
	v.SetDefault("digest_hour_utc", 17)
	v.SetDefault("rate_limit_requests", 600)
	v.SetDefault("rate_limit_window", time.Minute)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database_driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.Environment == "production" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters in production")
	}
	if c.Server.Port <= 0 || c.Server.RelayPort <= 0 {
		return fmt.Errorf("port and relay_port must be positive")
	}
	if c.Server.Port == c.Server.RelayPort {
		return fmt.Errorf("relay_port must differ from port")
	}
	if c.Jobs.MistboxDailyOpens < 0 {
		return fmt.Errorf("mistbox_daily_opens must not be negative")
	}
	if c.Jobs.DigestHourUTC < 0 || c.Jobs.DigestHourUTC > 23 {
		return fmt.Errorf("digest_hour_utc must be between 0 and 23")
	}
	return nil
}

// Secret returns the JWT signing key, falling back to a development key
// outside production.
func (c *Config) Secret() []byte {
	if c.Auth.JWTSecret == "" {
		return []byte("mist-development-secret")
	}
	return []byte(c.Auth.JWTSecret)
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
