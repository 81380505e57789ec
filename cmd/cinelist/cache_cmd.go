package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/cinelist/internal/store"
)

// newCacheCmd returns the "cache" subcommand group for the on-disk page cache.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge the on-disk page cache",
	}

	cmd.AddCommand(newCacheStatsCmd(), newCachePurgeCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many pages are cached",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withPageStore(func(s *store.PageStore, path string) error {
				fmt.Println(styleInfo.Render(fmt.Sprintf("%d cached pages", s.Len())))
				fmt.Println(styleDim.Render("  " + path))
				return nil
			})
		},
	}
}

func newCachePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired pages from the cache",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withPageStore(func(s *store.PageStore, _ string) error {
				n, err := s.Purge()
				if err != nil {
					return err
				}
				fmt.Println(styleSuccess.Render(fmt.Sprintf("✓ Removed %d expired pages, %d left", n, s.Len())))
				return nil
			})
		},
	}
}

// withPageStore opens the page cache named by the configuration for the duration of fn.
func withPageStore(fn func(s *store.PageStore, path string) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Cache.DiskEnabled() {
		return fmt.Errorf("disk cache is disabled (cache.disk: false)")
	}

	s, err := store.Open(cfg.App.DataDir, cfg.Cache.TTL())
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s, filepath.Join(cfg.App.DataDir, "cache.db"))
}
