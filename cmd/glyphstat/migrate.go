package main

import (
	"github.com/spf13/cobra"

	"glyphstat/adapters/sqlstore"
	apperrors "glyphstat/internal/errors"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL verdict ledger schema",
	}
	run := func(apply bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s := c.cfg.Storage
			if s.Driver != "sqlite" && s.Driver != "postgres" {
				return apperrors.ConfigInvalid("migrations need a sqlite or postgres storage driver, got " + s.Driver)
			}
			db, err := sqlstore.Connect(cmd.Context(), s.Driver, s.DSN)
			if err != nil {
				return apperrors.WithCode(apperrors.CodeDatabaseError, err)
			}
			defer db.Close()

			m := sqlstore.NewMigrator(db, c.logger)
			if apply {
				if err := m.Up(cmd.Context()); err != nil {
					return err
				}
			}
			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(status)
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "status", Short: "List migrations and whether they are applied", RunE: run(false)},
		&cobra.Command{Use: "up", Short: "Apply pending migrations", RunE: run(true)},
	)
	return cmd
}
