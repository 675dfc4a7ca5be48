// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/riskguard/internal/auth"
	"github.com/tomtom215/riskguard/internal/config"
)

func newIssueTokenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-admin-token <operator>",
		Short: "Print a signed admin bearer token for the approval endpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return issueAdminToken(cmd.OutOrStdout(), cfg.Server, args[0])
		},
	}
}

func issueAdminToken(w io.Writer, cfg config.ServerConfig, operator string) error {
	manager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.AdminTokenTTL)
	if err != nil {
		return fmt.Errorf("admin auth: %w", err)
	}
	token, err := manager.Issue(operator, auth.RoleAdmin)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
