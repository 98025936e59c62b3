package config

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string
	Timezone       string

	Mongo     MongoConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	SMS       SMSConfig
	SMTP      SMTPConfig
	Dispatch  DispatchConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Sequence  SequenceConfig
	Cleanup   CleanupConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig carries connection pool tuning for pkg/redis.
type RedisConfig struct {
	URL                string
	Host               string
	Port               string
	Password           string
	DB                 int
	PoolSize           int
	MinIdleConns       int
	MaxRetries         int
	RetryDelay         time.Duration
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type SMSConfig struct {
	Enabled    bool
	APIURL     string
	APIKey     string
	SenderName string
	PerMinute  int
	Timeout    time.Duration
}

type SMTPConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
	AppURL    string
}

type DispatchConfig struct {
	Workers    int
	BufferSize int
}

type RateLimitConfig struct {
	Enabled bool
}

type CacheConfig struct {
	ActiveAlertsTTL time.Duration
	KeyPrefix       string
}

// SequenceConfig selects where the per-day identity counters live: "mongo" or "redis".
type SequenceConfig struct {
	Backend string
}

type CleanupConfig struct {
	Interval time.Duration
}

// Load reads configuration from the environment, optionally seeded by a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Env:            v.GetString("ENV"),
		Port:           v.GetString("PORT"),
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		Timezone:       v.GetString("TIMEZONE"),
	}

	cfg.Mongo = MongoConfig{
		URI:      v.GetString("MONGO_URI"),
		Database: v.GetString("MONGO_DATABASE"),
	}

	cfg.Redis = RedisConfig{
		URL:                v.GetString("REDIS_URL"),
		Host:               v.GetString("REDIS_HOST"),
		Port:               v.GetString("REDIS_PORT"),
		Password:           v.GetString("REDIS_PASSWORD"),
		DB:                 v.GetInt("REDIS_DB"),
		PoolSize:           v.GetInt("REDIS_POOL_SIZE"),
		MinIdleConns:       v.GetInt("REDIS_MIN_IDLE_CONNS"),
		MaxRetries:         v.GetInt("REDIS_MAX_RETRIES"),
		RetryDelay:         parseDuration(v.GetString("REDIS_RETRY_DELAY"), time.Second),
		DialTimeout:        parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
		ReadTimeout:        parseDuration(v.GetString("REDIS_READ_TIMEOUT"), 3*time.Second),
		WriteTimeout:       parseDuration(v.GetString("REDIS_WRITE_TIMEOUT"), 3*time.Second),
		PoolTimeout:        parseDuration(v.GetString("REDIS_POOL_TIMEOUT"), 4*time.Second),
		IdleTimeout:        parseDuration(v.GetString("REDIS_IDLE_TIMEOUT"), 5*time.Minute),
		IdleCheckFrequency: parseDuration(v.GetString("REDIS_IDLE_CHECK_FREQUENCY"), time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Expiry: parseDuration(v.GetString("JWT_EXPIRY"), 24*time.Hour),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMS = SMSConfig{
		Enabled:    v.GetBool("SMS_ENABLED"),
		APIURL:     v.GetString("SMS_API_URL"),
		APIKey:     v.GetString("SMS_API_KEY"),
		SenderName: v.GetString("SMS_SENDER_NAME"),
		PerMinute:  v.GetInt("SMS_PER_MINUTE"),
		Timeout:    parseDuration(v.GetString("SMS_TIMEOUT"), 10*time.Second),
	}

	cfg.SMTP = SMTPConfig{
		Enabled:   v.GetBool("SMTP_ENABLED"),
		Host:      v.GetString("SMTP_HOST"),
		Port:      v.GetString("SMTP_PORT"),
		Username:  v.GetString("SMTP_USERNAME"),
		Password:  v.GetString("SMTP_PASSWORD"),
		FromEmail: v.GetString("SMTP_FROM_EMAIL"),
		FromName:  v.GetString("SMTP_FROM_NAME"),
		AppURL:    v.GetString("APP_URL"),
	}

	cfg.Dispatch = DispatchConfig{
		Workers:    v.GetInt("DISPATCH_WORKERS"),
		BufferSize: v.GetInt("DISPATCH_BUFFER_SIZE"),
	}

	cfg.RateLimit = RateLimitConfig{Enabled: v.GetBool("RATE_LIMIT_ENABLED")}

	cfg.Cache = CacheConfig{
		ActiveAlertsTTL: parseDuration(v.GetString("CACHE_ACTIVE_ALERTS_TTL"), 30*time.Second),
		KeyPrefix:       v.GetString("CACHE_KEY_PREFIX"),
	}

	cfg.Sequence = SequenceConfig{Backend: strings.ToLower(v.GetString("SEQUENCE_BACKEND"))}

	cfg.Cleanup = CleanupConfig{
		Interval: parseDuration(v.GetString("CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

// Validate reports configuration that would prevent the server from starting.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("MONGO_URI environment variable is not set")
	}
	if c.Dispatch.Workers <= 0 {
		return errors.New("DISPATCH_WORKERS must be greater than 0")
	}
	if c.Sequence.Backend != "mongo" && c.Sequence.Backend != "redis" {
		return errors.New("SEQUENCE_BACKEND must be one of: mongo, redis")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.New("TIMEZONE is not a valid IANA zone")
	}
	return nil
}

// Location returns the zone used for day-boundary calculations.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("TIMEZONE", "Asia/Manila")

	v.SetDefault("MONGO_DATABASE", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_MAX_RETRIES", 3)

	v.SetDefault("JWT_SECRET", "default-secret-key-change-this-in-production")
	v.SetDefault("JWT_EXPIRY", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMS_ENABLED", false)
	v.SetDefault("SMS_API_URL", "https://semaphore.co/api/v4/messages")
	v.SetDefault("SMS_SENDER_NAME", "BANTAY")
	v.SetDefault("SMS_PER_MINUTE", 120)

	v.SetDefault("SMTP_ENABLED", false)
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_FROM_NAME", "BantayBarangay Malagutay")
	v.SetDefault("APP_URL", "http://localhost:5173")

	v.SetDefault("DISPATCH_WORKERS", 4)
	v.SetDefault("DISPATCH_BUFFER_SIZE", 64)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("CACHE_KEY_PREFIX", "bantay:")
	v.SetDefault("SEQUENCE_BACKEND", "mongo")
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
