package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/facilitydirectory/internal/adapters/database"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the facility store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := postgres.NewClient(ctx, "facility store", &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to facility store: %w", err)
		}
		defer client.Close()

		if err := database.Migrate(ctx, client); err != nil {
			return err
		}
		log.Info().Str("database", cfg.Database.Database).Msg("Schema is up to date")
		return nil
	},
}
