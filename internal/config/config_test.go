package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vadimtrunov/cinelist/internal/catalog"
)

type validateCase struct {
	name    string
	modify  func(*Config)
	wantErr string
}

// validConfig returns a minimal Config that passes Validate().
func validConfig() Config {
	return Config{
		TMDb:   TMDbConfig{APIKey: "tmdb-key", BaseURL: "https://api.themoviedb.org/3"},
		Browse: BrowseConfig{DefaultCategory: "popular"},
		Cache:  CacheConfig{TTLMinutes: 60},
		App:    AppConfig{LogLevel: "info", DataDir: "/tmp/test"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []validateCase{
		{"valid", nil, ""},
		{"missing_tmdb_key", func(c *Config) { c.TMDb.APIKey = "" }, "tmdb.api_key is required"},
		{"base_url_invalid_scheme", func(c *Config) {
			c.TMDb.BaseURL = "ftp://api.themoviedb.org/3"
		}, "must use http or https"},
		{"base_url_no_host", func(c *Config) { c.TMDb.BaseURL = "http://" }, "missing host"},
		{"category_alias_accepted", func(c *Config) { c.Browse.DefaultCategory = "top-rated" }, ""},
		{"unknown_category", func(c *Config) { c.Browse.DefaultCategory = "trending" }, "browse.default_category"},
		{"negative_ttl", func(c *Config) { c.Cache.TTLMinutes = -5 }, "cache.ttl_minutes must not be negative"},
		{"telegram_missing_token", func(c *Config) {
			c.Telegram = &TelegramConfig{}
		}, "telegram.bot_token is required"},
		{"telegram_valid", func(c *Config) {
			c.Telegram = &TelegramConfig{BotToken: "123:ABC", AllowedUserIDs: []int64{42}}
		}, ""},
		{"invalid_log_level", func(c *Config) { c.App.LogLevel = "trace" }, "app.log_level must be one of"},
		{"warning_accepted", func(c *Config) { c.App.LogLevel = "warning" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			if tt.modify != nil {
				tt.modify(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"valid_http", "http://localhost:8080", ""},
		{"valid_https", "https://api.themoviedb.org", ""},
		{"valid_with_path", "https://api.themoviedb.org/3", ""},
		{"ftp_scheme", "ftp://localhost", "must use http or https"},
		{"no_scheme", "localhost:8080", "must use http or https"},
		{"empty_string", "", "must use http or https"},
		{"missing_host", "http://", "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateURL(tt.url, "test.url")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		cfg := Config{}
		cfg.setDefaults()
		if cfg.TMDb.BaseURL != defaultTMDbBaseURL {
			t.Errorf("base url = %q", cfg.TMDb.BaseURL)
		}
		if cfg.Browse.DefaultCategory != "popular" {
			t.Errorf("default category = %q", cfg.Browse.DefaultCategory)
		}
		if cfg.Cache.TTLMinutes != defaultCacheTTL {
			t.Errorf("ttl = %d", cfg.Cache.TTLMinutes)
		}
		if cfg.App.LogLevel != "info" {
			t.Errorf("expected default log level 'info', got %q", cfg.App.LogLevel)
		}
		if !strings.HasSuffix(cfg.App.DataDir, ".cinelist") {
			t.Errorf("expected DataDir ending in .cinelist, got %q", cfg.App.DataDir)
		}
		if !cfg.Cache.DiskEnabled() {
			t.Error("disk cache should default to enabled")
		}
	})

	t.Run("preserved", func(t *testing.T) {
		t.Parallel()
		disabled := false
		cfg := Config{
			TMDb:   TMDbConfig{BaseURL: "http://proxy:8080/3"},
			Browse: BrowseConfig{DefaultCategory: "upcoming"},
			Cache:  CacheConfig{TTLMinutes: 5, Disk: &disabled},
			App:    AppConfig{LogLevel: "debug", DataDir: "/custom/dir"},
		}
		cfg.setDefaults()
		if cfg.TMDb.BaseURL != "http://proxy:8080/3" || cfg.Browse.DefaultCategory != "upcoming" {
			t.Errorf("defaults overwrote explicit values: %+v", cfg)
		}
		if cfg.Cache.TTL() != 5*time.Minute {
			t.Errorf("TTL() = %v", cfg.Cache.TTL())
		}
		if cfg.Cache.DiskEnabled() {
			t.Error("explicit disk: false should disable the cache")
		}
		if cfg.App.DataDir != "/custom/dir" || cfg.App.LogLevel != "debug" {
			t.Errorf("app settings changed: %+v", cfg.App)
		}
	})
}

func TestDefaultCategory(t *testing.T) {
	t.Parallel()
	cfg := Config{Browse: BrowseConfig{DefaultCategory: "now-playing"}}
	if got := cfg.DefaultCategory(); got != catalog.NowPlaying {
		t.Errorf("DefaultCategory() = %q", got)
	}
	cfg.Browse.DefaultCategory = "bogus"
	if got := cfg.DefaultCategory(); got != catalog.Popular {
		t.Errorf("fallback = %q, want popular", got)
	}
}

func TestLoad_ValidMinimal(t *testing.T) {
	t.Parallel()
	path := writeTempYAML(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TMDb.APIKey != "yaml-key" {
		t.Errorf("expected api key yaml-key, got %q", cfg.TMDb.APIKey)
	}
	if cfg.TMDb.Language != "en-US" {
		t.Errorf("expected language en-US, got %q", cfg.TMDb.Language)
	}
	if cfg.App.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.App.LogLevel)
	}
	if cfg.Telegram != nil {
		t.Error("telegram should stay nil when not configured")
	}
}

func TestLoad_Full(t *testing.T) {
	t.Parallel()
	fullYAML := `
tmdb:
  api_key: tmdb-key
  base_url: http://localhost:9000/3
  language: de-DE
  region: DE
browse:
  default_category: top_rated
cache:
  ttl_minutes: 30
  disk: false
telegram:
  bot_token: "123:ABC"
  allowed_user_ids: [1, 2]
app:
  log_level: debug
  data_dir: /var/lib/cinelist
`
	cfg, err := Load(writeTempYAML(t, fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TMDb.Region != "DE" || cfg.TMDb.BaseURL != "http://localhost:9000/3" {
		t.Errorf("unexpected tmdb config: %+v", cfg.TMDb)
	}
	if cfg.DefaultCategory() != catalog.TopRated {
		t.Errorf("default category = %q", cfg.DefaultCategory())
	}
	if cfg.Cache.DiskEnabled() || cfg.Cache.TTLMinutes != 30 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Telegram == nil || len(cfg.Telegram.AllowedUserIDs) != 2 {
		t.Errorf("unexpected telegram config: %+v", cfg.Telegram)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid_yaml", func(t *testing.T) {
		t.Parallel()
		path := writeTempYAML(t, "{{invalid yaml}}")
		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for invalid YAML")
		}
		if !strings.Contains(err.Error(), "failed to parse") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("file_not_found", func(t *testing.T) {
		t.Parallel()
		_, err := Load("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("expected error for missing file")
		}
		if !strings.Contains(err.Error(), "config file not found") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("path_is_directory", func(t *testing.T) {
		t.Parallel()
		_, err := Load(t.TempDir())
		if err == nil {
			t.Fatal("expected error for directory path")
		}
		if !strings.Contains(err.Error(), "directory") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing_api_key", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeTempYAML(t, "app:\n  log_level: info\n"))
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Run("tmdb", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("CINELIST_TMDB_API_KEY", "env-key")
		t.Setenv("CINELIST_TMDB_LANGUAGE", "fr-FR")
		t.Setenv("CINELIST_TMDB_REGION", "FR")
		t.Setenv("CINELIST_TMDB_BASE_URL", "http://tmdb-proxy:8080/3")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TMDb.APIKey != "env-key" || cfg.TMDb.Language != "fr-FR" || cfg.TMDb.Region != "FR" {
			t.Errorf("unexpected tmdb config: %+v", cfg.TMDb)
		}
		if cfg.TMDb.BaseURL != "http://tmdb-proxy:8080/3" {
			t.Errorf("base url = %q", cfg.TMDb.BaseURL)
		}
	})

	t.Run("telegram_created_from_env", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("CINELIST_TELEGRAM_BOT_TOKEN", "123:TOKEN")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Telegram == nil || cfg.Telegram.BotToken != "123:TOKEN" {
			t.Error("expected telegram created from env")
		}
	})

	t.Run("app", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("CINELIST_LOG_LEVEL", "debug")
		t.Setenv("CINELIST_DATA_DIR", "/data")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.App.LogLevel != "debug" || cfg.App.DataDir != "/data" {
			t.Errorf("unexpected app config: %+v", cfg.App)
		}
	})

	t.Run("invalid_log_level", func(t *testing.T) {
		path := writeTempYAML(t, minimalYAML)
		t.Setenv("CINELIST_LOG_LEVEL", "loud")
		if _, err := Load(path); err == nil {
			t.Fatal("expected validation error for env log level")
		}
	})
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerContext(t *testing.T) {
	t.Parallel()
	if LoggerFromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if LoggerFromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
}

const minimalYAML = `
tmdb:
  api_key: yaml-key
  language: en-US
`

// writeTempYAML creates a temporary YAML file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp yaml: %v", err)
	}
	return path
}
