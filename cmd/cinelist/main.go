package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/cinelist/internal/config"
)

const version = "0.1.0"

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cinelist",
		Short: "Browse and search the TMDb movie catalog",
		Long: "cinelist lists popular, now-playing, upcoming and top-rated movies from TMDb,\n" +
			"searches by keyword, and pages through results from the terminal, Telegram or MCP.",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to configuration file")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(
		newVersionCmd(),
		newListCmd(),
		newSearchCmd(),
		newOverviewCmd(),
		newBrowseCmd(),
		newBotCmd(),
		newMCPServeCmd(),
		newCacheCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("cinelist v%s\n", version)
		},
	}
}
