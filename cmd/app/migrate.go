package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	pg "discord-storefront/internal/infra/db/postgres"
)

func migrateCmd(flags *rootFlags) *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			pool, err := pg.Connect(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer pool.Close()

			if err := pg.ApplySchema(ctx, pool, schema); err != nil {
				return err
			}
			logger.Info().Str("schema", schema).Msg("schema applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "deploy/postgres/init.sql", "path to the schema file")
	return cmd
}
