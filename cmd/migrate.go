package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/magazine-archive/internal/storage/postgres"
)

// newMigrateCmd creates the 'migrate' subcommand, which applies the embedded
// schema migrations to db.dsn.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			if rt.cfg.DB.DSN == "" {
				return errors.New("db.dsn is required for migrate")
			}
			return postgres.Migrate(rt.cfg.DB.DSN, rt.logger)
		},
	}
}
