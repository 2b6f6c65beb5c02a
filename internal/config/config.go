package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Reddit   RedditConfig   `mapstructure:"reddit"`
	Stocks   StocksConfig   `mapstructure:"stocks"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// RedisConfig holds the optional trending-cache configuration.
// An empty addr disables the cache entirely.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	TrendingTTL time.Duration `mapstructure:"trending_ttl"`
}

// RedditConfig holds the Reddit polling configuration
type RedditConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Subreddits []string      `mapstructure:"subreddits"`
	UserAgent  string        `mapstructure:"user_agent"`
	FetchLimit int           `mapstructure:"fetch_limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StocksConfig holds the market-data API configuration.
// An empty api_key disables price polling.
type StocksConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MonitorConfig holds ingestion-loop behavior configuration
type MonitorConfig struct {
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	PriceRefreshInterval time.Duration `mapstructure:"price_refresh_interval"`
	WindowMinutes        int           `mapstructure:"window_minutes"`
	AlertCooldown        time.Duration `mapstructure:"alert_cooldown"`
	Watchlist            []string      `mapstructure:"watchlist"`
	Enabled              bool          `mapstructure:"enabled"`
}

// AnomalyConfig holds the mention-rate detector configuration
type AnomalyConfig struct {
	ZThreshold  float64 `mapstructure:"z_threshold"`
	WindowHours int     `mapstructure:"window_hours"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("STOCKPULSE")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", "*")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/stockpulse.db")

	// Redis defaults (cache disabled unless addr is set)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.trending_ttl", "60s")

	// Reddit defaults
	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.subreddits", []string{"wallstreetbets", "stocks", "investing"})
	v.SetDefault("reddit.user_agent", "stockpulse/1.0 (mention tracker)")
	v.SetDefault("reddit.fetch_limit", 50)
	v.SetDefault("reddit.timeout", "15s")

	// Stocks defaults
	v.SetDefault("stocks.base_url", "https://api.polygon.io")
	v.SetDefault("stocks.api_key", "")
	v.SetDefault("stocks.timeout", "10s")

	// Telegram defaults (notifications disabled unless configured)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "2s")

	// Monitor defaults
	v.SetDefault("monitor.poll_interval", "45s")
	v.SetDefault("monitor.price_refresh_interval", "30m")
	v.SetDefault("monitor.window_minutes", 60)
	v.SetDefault("monitor.alert_cooldown", "1h")
	v.SetDefault("monitor.watchlist", []string{"GME", "AMC", "TSLA", "AAPL", "NVDA", "PLTR", "BB", "NOK"})
	v.SetDefault("monitor.enabled", true)

	// Anomaly defaults
	v.SetDefault("anomaly.z_threshold", 2.5)
	v.SetDefault("anomaly.window_hours", 24)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Redis config
	if c.Redis.Addr != "" && c.Redis.TrendingTTL < time.Second {
		return fmt.Errorf("redis.trending_ttl must be at least 1 second when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}

	// Validate Reddit config
	if c.Reddit.BaseURL == "" {
		return fmt.Errorf("reddit.base_url is required")
	}
	if len(c.Reddit.Subreddits) == 0 {
		return fmt.Errorf("reddit.subreddits must contain at least one subreddit")
	}
	if c.Reddit.UserAgent == "" {
		return fmt.Errorf("reddit.user_agent is required")
	}
	if c.Reddit.FetchLimit < 1 || c.Reddit.FetchLimit > 100 {
		return fmt.Errorf("reddit.fetch_limit must be between 1 and 100")
	}
	if c.Reddit.Timeout < time.Second {
		return fmt.Errorf("reddit.timeout must be at least 1 second")
	}

	// Validate Stocks config
	if c.Stocks.BaseURL == "" {
		return fmt.Errorf("stocks.base_url is required")
	}
	if c.Stocks.Timeout < time.Second {
		return fmt.Errorf("stocks.timeout must be at least 1 second")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1 when telegram is enabled")
		}
	}

	// Validate Monitor config
	if c.Monitor.PollInterval < 5*time.Second {
		return fmt.Errorf("monitor.poll_interval must be at least 5 seconds")
	}
	if c.Monitor.PriceRefreshInterval < time.Minute {
		return fmt.Errorf("monitor.price_refresh_interval must be at least 1 minute")
	}
	if c.Monitor.WindowMinutes < 1 || c.Monitor.WindowMinutes > 1440 {
		return fmt.Errorf("monitor.window_minutes must be between 1 and 1440")
	}
	if c.Monitor.AlertCooldown < 0 {
		return fmt.Errorf("monitor.alert_cooldown must not be negative")
	}

	// Validate Anomaly config
	if c.Anomaly.ZThreshold <= 0 {
		return fmt.Errorf("anomaly.z_threshold must be positive")
	}
	if c.Anomaly.WindowHours < 1 {
		return fmt.Errorf("anomaly.window_hours must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
