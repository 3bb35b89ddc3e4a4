package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bellsbank/bellsbank/internal/bootstrap"
	"github.com/bellsbank/bellsbank/internal/migrate"
)

func newMigrateCommand(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending profile schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
				DBConfig: a.Config.Postgres,
				Logger:   a.Logger,
			})
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			m, err := migrate.New(migrate.Options{DB: db, Logger: a.Logger})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				pending, err := m.Pending(ctx)
				if err != nil {
					return err
				}
				for _, mg := range pending {
					if _, err := fmt.Fprintln(out, mg.Version); err != nil {
						return err
					}
				}
				return nil
			}

			applied, err := m.Up(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "applied %d migration(s)\n", len(applied))
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}
