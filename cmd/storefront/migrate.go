package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations (products, cart_slots)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is not set")
		}
		version, err := db.Migrate(cfg.Database.DSN, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}
