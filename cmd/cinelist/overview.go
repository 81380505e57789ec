package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vadimtrunov/cinelist/internal/catalog"
	"github.com/vadimtrunov/cinelist/internal/config"
	"github.com/vadimtrunov/cinelist/internal/core"
	"github.com/vadimtrunov/cinelist/internal/listing"
)

func newOverviewCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show the first page of every category side by side",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if top < 1 {
				return fmt.Errorf("--top must be at least 1, got %d", top)
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := config.SetupLogger(cfg.App.LogLevel, os.Stderr)
			client, cleanup, err := initCatalog(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sections, err := fetchOverview(ctx, client)
			if err != nil {
				return err
			}
			printOverview(os.Stdout, sections, top)
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 5, "movies to show per category")
	return cmd
}

// overviewSection is the first page of one category.
type overviewSection struct {
	category catalog.Category
	page     *catalog.MoviePage
}

// fetchOverview loads page 1 of every category concurrently. The first
// failure cancels the remaining fetches.
func fetchOverview(ctx context.Context, movies core.MovieService) ([]overviewSection, error) {
	categories := catalog.Categories()
	sections := make([]overviewSection, len(categories))

	g, ctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			page, err := listing.FetchCategory(ctx, movies, category, 1)
			if err != nil {
				return fmt.Errorf("%s: %w", category, err)
			}
			sections[i] = overviewSection{category: category, page: page}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sections, nil
}

func printOverview(w io.Writer, sections []overviewSection, top int) {
	for _, s := range sections {
		fmt.Fprintln(w, styleHeader.Render(fmt.Sprintf("%s (%d results)", s.category.Title(), s.page.TotalResults)))
		if len(s.page.Movies) == 0 {
			fmt.Fprintln(w, styleDim.Render("  nothing listed"))
		}
		for i, m := range s.page.Movies {
			if i == top {
				break
			}
			fmt.Fprintf(w, "  %s %s%s\n", styleDim.Render(fmt.Sprintf("%d.", i+1)), styleTitle.Render(m.Title), movieMeta(m))
		}
		fmt.Fprintln(w)
	}
}
