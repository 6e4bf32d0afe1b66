package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/facilitydirectory/internal/adapters/collectors"
	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
)

var bandVersion string

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "Manage drive-time bands used by the nearby endpoint",
}

var bandsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a GeoJSON drive-time band export from the reference source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, nil, false)
		if err != nil {
			return err
		}
		defer a.Close()

		version := bandVersion
		if version == "" {
			version = time.Now().UTC().Format("2006-01-02")
		}

		bands, err := collectors.LoadDriveTimeBands(ctx, a.reference, args[0], version)
		if err != nil {
			return err
		}
		for _, band := range bands {
			if err := a.bandRepo.Save(ctx, band); err != nil {
				return fmt.Errorf("failed to save band %s: %w", band.ID, err)
			}
		}
		a.invalidation.Invalidate(ctx, entities.CacheEventBandsImported, "")

		log.Info().Int("bands", len(bands)).Str("version", version).Msg("Drive-time bands imported")
		return nil
	},
}

func init() {
	bandsImportCmd.Flags().StringVar(&bandVersion, "version", "", "Data-set version tag (defaults to today's date)")
	bandsCmd.AddCommand(bandsImportCmd)
}
