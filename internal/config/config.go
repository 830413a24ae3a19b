// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Leveling  LevelingConfig  `mapstructure:"leveling"`
	Streak    StreakConfig    `mapstructure:"streak"`
	Ranks     []RankConfig    `mapstructure:"ranks"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Redis       RedisConfig    `mapstructure:"redis"`
	AutoMigrate bool           `mapstructure:"auto_migrate"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// URL returns the connection URL used by the migration runner.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig contains Redis connection and pool settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AuthConfig contains session token settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  int    `mapstructure:"token_ttl"` // seconds
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Requests      int  `mapstructure:"requests"`
	WindowSeconds int  `mapstructure:"window_seconds"`
}

// Window returns the limiter window as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// RelayConfig contains the WebSocket relay broadcast endpoint.
type RelayConfig struct {
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
	Enabled bool   `mapstructure:"enabled"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// LevelingConfig describes the level curve. Thresholds are cumulative XP values;
// CurveFile, when set, replaces Thresholds with the contents of a YAML file.
type LevelingConfig struct {
	Thresholds []int64 `mapstructure:"thresholds"`
	CurveFile  string  `mapstructure:"curve_file"`
}

// StreakConfig contains daily login reward settings.
type StreakConfig struct {
	Timezone string        `mapstructure:"timezone"`
	BaseXP   int64         `mapstructure:"base_xp"`
	Bonuses  []StreakBonus `mapstructure:"bonuses"`
}

// StreakBonus is a flat bonus granted once the streak reaches Days.
type StreakBonus struct {
	Days  int   `mapstructure:"days"`
	Bonus int64 `mapstructure:"bonus"`
}

// GetLocation returns the timezone used for calendar-day boundaries.
func (c *StreakConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// RankConfig is a donation rank tier with its price per day.
type RankConfig struct {
	ID          uint   `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	PricePerDay string `mapstructure:"price_per_day"`
	Color       string `mapstructure:"color"`
	Badge       string `mapstructure:"badge"`
}

// Price parses the configured price per day.
func (r *RankConfig) Price() (decimal.Decimal, error) {
	return decimal.NewFromString(r.PricePerDay)
}

// SchedulerConfig contains background job settings.
type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	RankSweep string `mapstructure:"rank_sweep"` // cron expression
	Timezone  string `mapstructure:"timezone"`
}

// GetLocation returns the timezone location.
func (c *SchedulerConfig) GetLocation() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// MetricsConfig contains metrics exporter settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig contains Prometheus metrics exporter settings.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/forum-progression/")
	}

	setDefaults(v)

	// Server configuration
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	// PostgreSQL configuration
	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")

	// Redis configuration
	_ = v.BindEnv("database.redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")

	// Auth and relay secrets
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("relay.url", "RELAY_URL")
	_ = v.BindEnv("relay.secret", "RELAY_SECRET")
	_ = v.BindEnv("relay.enabled", "RELAY_ENABLED")

	// Logging configuration
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	_ = v.BindEnv("leveling.curve_file", "LEVEL_CURVE_FILE")
	_ = v.BindEnv("streak.timezone", "STREAK_TIMEZONE")
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "production")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 25)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", 300)
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.pool_size", 10)
	v.SetDefault("auth.token_ttl", 86400)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("relay.timeout", 5)
	v.SetDefault("streak.timezone", "UTC")
	v.SetDefault("streak.base_xp", 10)
	v.SetDefault("streak.bonuses", []map[string]interface{}{
		{"days": 3, "bonus": 2},
		{"days": 7, "bonus": 10},
		{"days": 14, "bonus": 20},
		{"days": 30, "bonus": 50},
	})
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.rank_sweep", "@hourly")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if c.Database.Redis.Enabled && c.Database.Redis.Host == "" {
		return fmt.Errorf("database.redis.host is required when redis is enabled")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Relay.Enabled && c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required when relay is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.WindowSeconds <= 0) {
		return fmt.Errorf("rate_limit.requests and rate_limit.window_seconds must be positive")
	}
	if _, err := c.Streak.GetLocation(); err != nil {
		return fmt.Errorf("invalid streak.timezone %q: %w", c.Streak.Timezone, err)
	}
	if c.Streak.BaseXP <= 0 {
		return fmt.Errorf("streak.base_xp must be positive")
	}
	if err := c.validateRanks(); err != nil {
		return err
	}
	if len(c.Leveling.Thresholds) == 0 && c.Leveling.CurveFile == "" {
		return fmt.Errorf("leveling.thresholds or leveling.curve_file is required")
	}
	for i := 1; i < len(c.Leveling.Thresholds); i++ {
		if c.Leveling.Thresholds[i] <= c.Leveling.Thresholds[i-1] {
			return fmt.Errorf("leveling.thresholds must be strictly increasing")
		}
	}
	return nil
}

func (c *Config) validateRanks() error {
	seen := make(map[uint]bool, len(c.Ranks))
	for i := range c.Ranks {
		r := &c.Ranks[i]
		if r.ID == 0 {
			return fmt.Errorf("ranks[%d].id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rank id %d", r.ID)
		}
		seen[r.ID] = true
		price, err := r.Price()
		if err != nil {
			return fmt.Errorf("ranks[%d].price_per_day: %w", i, err)
		}
		if !price.IsPositive() {
			return fmt.Errorf("ranks[%d].price_per_day must be positive", i)
		}
	}
	return nil
}

// GetRankByID returns a rank configuration by id.
func (c *Config) GetRankByID(id uint) *RankConfig {
	for i := range c.Ranks {
		if c.Ranks[i].ID == id {
			return &c.Ranks[i]
		}
	}
	return nil
}
