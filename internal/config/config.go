package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	SMS      SMSConfig      `yaml:"sms"`
	Imports  ImportsConfig  `yaml:"imports"`
	Journeys JourneysConfig `yaml:"journeys"`
	Segments SegmentsConfig `yaml:"segments"`
	Sending  SendingConfig  `yaml:"sending"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ReadTimeout    int      `yaml:"read_timeout_seconds"`
	WriteTimeout   int      `yaml:"write_timeout_seconds"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds Google OAuth authentication configuration
type AuthConfig struct {
	Enabled            bool   `yaml:"enabled"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	RedirectURL        string `yaml:"redirect_url"`
	AllowedDomain      string `yaml:"allowed_domain"`
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
	CookieSecure       bool   `yaml:"cookie_secure"`
}

// SMSConfig holds the SMS provider API settings
type SMSConfig struct {
	AccountID      string `yaml:"account_id"`
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

// ImportsConfig holds CSV import settings
type ImportsConfig struct {
	S3Bucket      string `yaml:"s3_bucket"`
	S3Region      string `yaml:"s3_region"`
	S3Prefix      string `yaml:"s3_prefix"`
	AWSProfile    string `yaml:"aws_profile"`
	BatchSize     int    `yaml:"batch_size"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	PollSeconds   int    `yaml:"poll_seconds"`
}

// JourneysConfig holds journey engine settings
type JourneysConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
	EnrollBatchSize     int  `yaml:"enroll_batch_size"`
}

// SegmentsConfig holds segment count refresh settings
type SegmentsConfig struct {
	RefreshIntervalMinutes int `yaml:"refresh_interval_minutes"`
	CountCacheTTLMinutes   int `yaml:"count_cache_ttl_minutes"`
}

// SendingConfig holds campaign send worker settings
type SendingConfig struct {
	RatePerSecond   int  `yaml:"rate_per_second"`
	BatchSize       int  `yaml:"batch_size"`
	DrainSeconds    int  `yaml:"drain_seconds"`
	SchedulePollSec int  `yaml:"schedule_poll_seconds"`
	EmbedProcessor  bool `yaml:"embed_processor"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "engage_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400 * 7
	}
	if cfg.SMS.BaseURL == "" {
		cfg.SMS.BaseURL = "https://api.textgrid.com/2010-04-01"
	}
	if cfg.SMS.TimeoutSeconds == 0 {
		cfg.SMS.TimeoutSeconds = 30
	}
	if cfg.SMS.MaxRetries == 0 {
		cfg.SMS.MaxRetries = 3
	}
	if cfg.Imports.S3Region == "" {
		cfg.Imports.S3Region = "us-east-1"
	}
	if cfg.Imports.S3Prefix == "" {
		cfg.Imports.S3Prefix = "imports/"
	}
	if cfg.Imports.BatchSize == 0 {
		cfg.Imports.BatchSize = 500
	}
	if cfg.Imports.MaxFileSizeMB == 0 {
		cfg.Imports.MaxFileSizeMB = 100
	}
	if cfg.Imports.PollSeconds == 0 {
		cfg.Imports.PollSeconds = 15
	}
	if cfg.Journeys.TickIntervalSeconds == 0 {
		cfg.Journeys.TickIntervalSeconds = 30
	}
	if cfg.Journeys.EnrollBatchSize == 0 {
		cfg.Journeys.EnrollBatchSize = 200
	}
	if cfg.Segments.RefreshIntervalMinutes == 0 {
		cfg.Segments.RefreshIntervalMinutes = 15
	}
	if cfg.Segments.CountCacheTTLMinutes == 0 {
		cfg.Segments.CountCacheTTLMinutes = 30
	}
	if cfg.Sending.RatePerSecond == 0 {
		cfg.Sending.RatePerSecond = 10
	}
	if cfg.Sending.BatchSize == 0 {
		cfg.Sending.BatchSize = 100
	}
	if cfg.Sending.DrainSeconds == 0 {
		cfg.Sending.DrainSeconds = 5
	}
	if cfg.Sending.SchedulePollSec == 0 {
		cfg.Sending.SchedulePollSec = 20
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from a YAML file, overriding values
// with environment variables where present.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if accountID := os.Getenv("SMS_ACCOUNT_ID"); accountID != "" {
		cfg.SMS.AccountID = accountID
	}
	if apiKey := os.Getenv("SMS_API_KEY"); apiKey != "" {
		cfg.SMS.APIKey = apiKey
	}
	if secret := os.Getenv("SMS_API_SECRET"); secret != "" {
		cfg.SMS.APISecret = secret
	}
	if baseURL := os.Getenv("SMS_BASE_URL"); baseURL != "" {
		cfg.SMS.BaseURL = baseURL
	}
	if secret := os.Getenv("SMS_WEBHOOK_SECRET"); secret != "" {
		cfg.SMS.WebhookSecret = secret
	}
	if clientID := os.Getenv("GOOGLE_CLIENT_ID"); clientID != "" {
		cfg.Auth.GoogleClientID = clientID
		cfg.Auth.Enabled = true
	}
	if clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET"); clientSecret != "" {
		cfg.Auth.GoogleClientSecret = clientSecret
	}
	if redirectURL := os.Getenv("OAUTH_REDIRECT_URL"); redirectURL != "" {
		cfg.Auth.RedirectURL = redirectURL
	}
	if domain := os.Getenv("AUTH_ALLOWED_DOMAIN"); domain != "" {
		cfg.Auth.AllowedDomain = domain
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Auth.SessionSecret = secret
	}
	if bucket := os.Getenv("IMPORTS_S3_BUCKET"); bucket != "" {
		cfg.Imports.S3Bucket = bucket
	}
	if region := os.Getenv("IMPORTS_S3_REGION"); region != "" {
		cfg.Imports.S3Region = region
	}

	return cfg, nil
}

// ServerReadTimeout returns the configured read timeout as a duration.
func (c *Config) ServerReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// ServerWriteTimeout returns the configured write timeout as a duration.
func (c *Config) ServerWriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}
