package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

func newAssignCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <ticket-id>",
		Short: "Automatically assign one PENDING ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticketID, err := parseTicketID(args[0])
			if err != nil {
				return err
			}
			c, err := s.container(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.Triage.AutoAssign(cmd.Context(), ticketID, time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newAssignPendingCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "assign-pending",
		Short: "Automatically assign every PENDING ticket, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.container(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			results, err := c.Triage.BatchAutoAssign(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func newCandidatesCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <ticket-id>",
		Short: "Rank the eligible technicians for a ticket without assigning it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticketID, err := parseTicketID(args[0])
			if err != nil {
				return err
			}
			c, err := s.container(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			operator := domain.Principal{UserID: s.cfg.Triage.SystemUserID, Role: domain.RoleAdministrator}
			preview, err := c.Triage.Candidates(cmd.Context(), operator, ticketID, time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), preview)
		},
	}
}
