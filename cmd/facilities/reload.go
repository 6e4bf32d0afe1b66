package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Collect every facility and reconcile the facility store",
	Long: `Run every collector once, write the results to the facility store and print
the reload report as JSON. Running servers drop their caches when Redis is
enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		metrics, err := observability.InitMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		a, err := newApp(ctx, cfg, metrics, true)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.reload.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reload failed: %w", err)
		}
		log.Info().
			Str("reload_id", report.ReloadID).
			Int("problems", len(report.Problems)).
			Bool("changed", report.Changed()).
			Dur("duration", report.Timing.TotalDuration).
			Msg("Reload finished")

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}
