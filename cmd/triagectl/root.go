package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/app"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/observability"
)

// session carries what every subcommand needs once the root has loaded it.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:   "triagectl",
		Short: "Triage and maintenance tool for the help-desk service",
		Long: `triagectl assigns pending tickets, previews candidate technicians,
applies schema migrations and mints bearer tokens for local testing.

Configuration is read the same way as the API server: environment variables,
an optional .env file and an optional YAML file named by CONFIG_PATH.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger, cfg.App)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			s.cfg = cfg
			s.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.logger != nil {
				_ = s.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newMigrateCmd(s),
		newAssignCmd(s),
		newAssignPendingCmd(s),
		newCandidatesCmd(s),
		newTokenCmd(s),
	)
	return root
}

func (s *session) container(ctx context.Context) (*app.Container, error) {
	return app.New(ctx, s.cfg, s.logger)
}

func parseTicketID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
