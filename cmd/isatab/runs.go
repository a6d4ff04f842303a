package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"isatab/internal/ledger"
)

func newRunsCmd(a *app) *cobra.Command {
	var investigation string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded write runs from the configured ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := ledger.Open(cmd.Context(), a.cfg.Ledger)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			if store == nil {
				return errors.New("no ledger configured; set ISATAB_LEDGER_DRIVER")
			}
			defer func() { _ = store.Close() }()
			runs, err := store.List(cmd.Context(), investigation)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}
	cmd.Flags().StringVar(&investigation, "investigation", "", "Only runs of this investigation identifier")
	return cmd
}
