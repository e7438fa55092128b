package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perforate-org/arche/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "arche",
	Short: "Papers and articles over an indexed key-value store",
	Long: `arche serves papers and articles to MCP clients. Entities live in a
durable key-value backend (SQLite, BadgerDB or memory); the in-memory indices
are snapshotted on shutdown and restored, or rebuilt, on start.

Examples:
  # Serve over stdio as the anonymous user
  arche serve

  # Serve over HTTP with API keys
  ARCHE_TRANSPORT=http ARCHE_AUTH_ENABLED=true arche serve

  # Show what the stored snapshot holds
  arche snapshot inspect`,
	SilenceUsage: true,
}

// configPath overrides ARCHE_CONFIG_PATH.
var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $ARCHE_CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(keysCmd)
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
