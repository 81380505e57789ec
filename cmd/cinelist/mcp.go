package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/cinelist/internal/config"
	mcpserver "github.com/vadimtrunov/cinelist/internal/mcp"
)

// newMCPServeCmd returns the hidden "mcp-serve" subcommand.
// It exposes the catalog as MCP tools over stdin/stdout; stdout carries the
// protocol, so logs go to stderr.
func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Start MCP server over stdio",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			srv := mcpserver.NewServer(mcpserver.Deps{Movies: client, Details: client}, version, logger)
			return srv.ServeStdio(cmd.Context())
		},
	}
}
