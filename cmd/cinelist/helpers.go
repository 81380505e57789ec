package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadimtrunov/cinelist/internal/config"
	"github.com/vadimtrunov/cinelist/internal/metadata/tmdb"
	"github.com/vadimtrunov/cinelist/internal/store"
)

// Lipgloss styles used across commands.
var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	styleRating  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow

	styleTitle    = lipgloss.NewStyle().Bold(true)
	styleSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true) // cyan bold

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("5")).
			MarginBottom(1)
)

// loadConfig loads and validates the configuration file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// initCatalog creates the TMDb client, backed by the on-disk page cache when
// enabled. The returned func releases the cache.
func initCatalog(cfg *config.Config, logger *slog.Logger) (*tmdb.Client, func(), error) {
	opts := []tmdb.Option{
		tmdb.WithBaseURL(cfg.TMDb.BaseURL),
		tmdb.WithLanguage(cfg.TMDb.Language),
		tmdb.WithRegion(cfg.TMDb.Region),
	}

	cleanup := func() {}
	if cfg.Cache.DiskEnabled() {
		pages, err := store.Open(cfg.App.DataDir, cfg.Cache.TTL())
		if err != nil {
			return nil, nil, fmt.Errorf("open page cache: %w", err)
		}
		opts = append(opts, tmdb.WithPageCache(pages))
		cleanup = func() {
			if err := pages.Close(); err != nil {
				logger.Warn("failed to close page cache", slog.String("error", err.Error()))
			}
		}
	}

	client := tmdb.New(cfg.TMDb.APIKey, logger, opts...)
	logger.Debug("TMDb client initialized", slog.String("url", sanitizeURL(cfg.TMDb.BaseURL)))
	return client, cleanup, nil
}

// openLogFile opens <data_dir>/cinelist.log for full-screen commands, where
// stdout belongs to the terminal UI.
func openLogFile(cfg *config.Config) (io.WriteCloser, error) {
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.App.DataDir, "cinelist.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// sanitizeURL strips credentials, query params, and fragment from a URL for safe logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return "<redacted>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
