package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/vadimtrunov/cinelist/internal/catalog"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "configs/cinelist.yaml"

const (
	defaultTMDbBaseURL = "https://api.themoviedb.org/3"
	defaultCacheTTL    = 60
)

// Config represents the main application configuration
type Config struct {
	// Catalog API
	TMDb TMDbConfig `yaml:"tmdb"`

	// Browsing defaults
	Browse BrowseConfig `yaml:"browse"`

	// On-disk page cache
	Cache CacheConfig `yaml:"cache"`

	// Frontends
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`

	// Application settings
	App AppConfig `yaml:"app"`
}

// TMDbConfig holds TMDb API configuration
type TMDbConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Language string `yaml:"language,omitempty"` // e.g. "en-US"
	Region   string `yaml:"region,omitempty"`   // e.g. "US", applies to now_playing/upcoming
}

// BrowseConfig holds list defaults shared by the CLI and the bot.
type BrowseConfig struct {
	DefaultCategory string `yaml:"default_category,omitempty"`
}

// CacheConfig controls the bbolt page cache under app.data_dir.
type CacheConfig struct {
	TTLMinutes int   `yaml:"ttl_minutes,omitempty"`
	Disk       *bool `yaml:"disk,omitempty"` // nil means enabled
}

// TTL returns the cache lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// DiskEnabled reports whether the on-disk cache should be opened.
func (c CacheConfig) DiskEnabled() bool {
	return c.Disk == nil || *c.Disk
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids,omitempty"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"
	DataDir  string `yaml:"data_dir"`  // Directory for cache and logs
}

// Load loads configuration from a YAML file with environment variable overrides
func Load(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func validateConfigPath(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables
func (c *Config) applyEnvOverrides() {
	// TMDb
	if v := os.Getenv("CINELIST_TMDB_API_KEY"); v != "" {
		c.TMDb.APIKey = v
	}
	if v := os.Getenv("CINELIST_TMDB_BASE_URL"); v != "" {
		c.TMDb.BaseURL = v
	}
	if v := os.Getenv("CINELIST_TMDB_LANGUAGE"); v != "" {
		c.TMDb.Language = v
	}
	if v := os.Getenv("CINELIST_TMDB_REGION"); v != "" {
		c.TMDb.Region = v
	}

	// Telegram
	if v := os.Getenv("CINELIST_TELEGRAM_BOT_TOKEN"); v != "" {
		if c.Telegram == nil {
			c.Telegram = &TelegramConfig{}
		}
		c.Telegram.BotToken = v
	}

	// App
	if v := os.Getenv("CINELIST_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("CINELIST_DATA_DIR"); v != "" {
		c.App.DataDir = v
	}
}

func (c *Config) setDefaults() {
	if c.TMDb.BaseURL == "" {
		c.TMDb.BaseURL = defaultTMDbBaseURL
	}
	if c.Browse.DefaultCategory == "" {
		c.Browse.DefaultCategory = string(catalog.Popular)
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = defaultCacheTTL
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.DataDir == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			c.App.DataDir = filepath.Join(homeDir, ".cinelist")
		} else {
			c.App.DataDir = ".cinelist"
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TMDb.APIKey == "" {
		return errors.New("tmdb.api_key is required")
	}
	if c.TMDb.BaseURL != "" {
		if err := validateURL(c.TMDb.BaseURL, "tmdb.base_url"); err != nil {
			return err
		}
	}

	if c.Browse.DefaultCategory != "" {
		if _, err := catalog.ParseCategory(c.Browse.DefaultCategory); err != nil {
			return fmt.Errorf("browse.default_category: %w", err)
		}
	}

	if c.Cache.TTLMinutes < 0 {
		return errors.New("cache.ttl_minutes must not be negative")
	}

	if c.Telegram != nil && c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required")
	}

	switch strings.ToLower(c.App.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug, info, warn, error; got %q", c.App.LogLevel)
	}

	return nil
}

// DefaultCategory returns the parsed browse.default_category, falling back to popular.
func (c *Config) DefaultCategory() catalog.Category {
	cat, err := catalog.ParseCategory(c.Browse.DefaultCategory)
	if err != nil {
		return catalog.Popular
	}
	return cat
}

func validateURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing host", field)
	}
	return nil
}
