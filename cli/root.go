// Package cli holds the command line entry points of the studio backend.
package cli

import (
	"fmt"
	"os"

	"github.com/camden-git/studiobackend/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "studiobackend",
	Short:         "Photo gallery backend for studios",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd, reprocessCmd, createUserCmd)
}

// Execute runs the command selected by the process arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
