package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
	"github.com/zatekoja/facilitydirectory/pkg/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "facilities",
	Short: "VA facility directory",
	Long: `Serves the VA facility directory API and manages its facility store.

Facilities are collected from the VAST database and reference files, stored in
Postgres, merged with CMS overlays at read time and cached per generation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
		observability.ParseLevel(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(bandsCmd)
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
