package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/wallet-controller/internal/controller"
)

// runWallet starts a session, creates or opens the wallet, scopes it to the
// selected account and runs fn. The daemon is always shut down afterwards.
func (cc *commandContext) runWallet(cmd *cobra.Command, fn func(ctx context.Context, s *controller.Session) error) error {
	ctx := cmd.Context()
	return controller.WithSession(ctx, cc.cfg, func(s *controller.Session) error {
		if cc.create {
			if _, err := s.CreateWallet(ctx, cc.wallet); err != nil {
				return fmt.Errorf("create wallet: %w", err)
			}
		} else {
			if _, err := s.OpenWallet(ctx, cc.wallet); err != nil {
				return fmt.Errorf("open wallet: %w", err)
			}
		}
		s.SelectAccount(cc.account)
		return fn(ctx, s)
	})
}

// print writes v as JSON when --json is set and as a table otherwise.
func (cc *commandContext) print(cmd *cobra.Command, v any, headers []string, rows [][]string, aligns []columnAlignment) error {
	if cc.json {
		return writeJSON(cmd, v)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
	return nil
}
