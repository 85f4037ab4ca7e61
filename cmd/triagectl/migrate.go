package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/deskflow/helpdesk-service/internal/persistence"
)

func newMigrateCmd(s *session) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := s.cfg.Postgres.DSN
			if dsn == "" {
				return errors.New("POSTGRES_DSN is required")
			}
			if down {
				return persistence.RollbackMigrations(dsn, s.logger)
			}
			return persistence.RunMigrations(dsn, s.logger)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration")
	return cmd
}
