package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"symposium/api/internal/store"
)

func newMigrateCmd(load func() (appEnv, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rt, err := load()
				if err != nil {
					return err
				}
				db, err := store.Open(cmd.Context(), rt.cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("database connection failed: %w", err)
				}
				defer db.Close()

				applied, err := store.ApplyMigrations(cmd.Context(), db.DB, rt.cfg.MigrationsDir)
				if err != nil {
					return err
				}
				rt.logger.Info("migrations applied", zap.Strings("versions", applied))
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rt, err := load()
				if err != nil {
					return err
				}
				db, err := store.Open(cmd.Context(), rt.cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("database connection failed: %w", err)
				}
				defer db.Close()

				version, err := store.RollbackLatest(cmd.Context(), db.DB, rt.cfg.MigrationsDir)
				if err != nil {
					return err
				}
				if version == "" {
					rt.logger.Info("no migration to roll back")
					return nil
				}
				rt.logger.Info("migration rolled back", zap.String("version", version))
				return nil
			},
		},
	)
	return cmd
}
