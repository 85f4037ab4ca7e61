package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/domain"
)

func newTokenCmd(s *session) *cobra.Command {
	var (
		userID       int64
		role         string
		technicianID int64
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		Example: `  triagectl token --user-id 1 --role administrator
  triagectl token --user-id 100 --role technician --technician-id 3
  triagectl token --user-id 100 --role technician`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			principal := domain.Principal{UserID: userID, Role: parsed}
			if technicianID > 0 {
				principal.TechnicianID = &technicianID
			} else if parsed == domain.RoleTechnician {
				id, err := s.technicianFor(cmd.Context(), userID)
				if err != nil {
					return err
				}
				principal.TechnicianID = &id
			}
			tokens := auth.NewTokenManager(s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(principal)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id carried by the token")
	cmd.Flags().StringVar(&role, "role", "", "ADMINISTRATOR, TECHNICIAN or CLIENT")
	cmd.Flags().Int64Var(&technicianID, "technician-id", 0, "technician id; looked up from the user id when omitted")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

// technicianFor looks up the technician profile of userID in the store.
func (s *session) technicianFor(ctx context.Context, userID int64) (int64, error) {
	container, err := s.container(ctx)
	if err != nil {
		return 0, err
	}
	defer container.Close()
	tech, err := container.Technicians.ForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve technician for user %d: %w", userID, err)
	}
	return tech.ID, nil
}
