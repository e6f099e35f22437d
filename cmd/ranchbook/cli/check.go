package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
)

// CheckSummary is the JSON output of the check command.
type CheckSummary struct {
	OK              bool                    `json:"ok"`
	Unbalanced      []ledger.IntegrityIssue `json:"unbalanced"`
	InventoryDrifts []inventory.Drift       `json:"inventory_drifts"`
}

func newCheckCommand(rt Runtime) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify ledger balance and inventory quantities now",
		Long:  "Runs the ledger integrity and inventory reconcile checks synchronously. Exits 10 when findings exist.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checkers, cleanup, err := rt.Checkers(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			issues, err := checkers.Ledger.CheckIntegrity(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("ledger integrity: %w", err)
			}
			drifts, err := checkers.Inventory.Reconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("inventory reconcile: %w", err)
			}
			summary := CheckSummary{
				OK:              len(issues) == 0 && len(drifts) == 0,
				Unbalanced:      nonNil(issues),
				InventoryDrifts: nonNil(drifts),
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := json.NewEncoder(out).Encode(summary); err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
			} else {
				renderCheckHuman(out, summary)
			}
			if !summary.OK {
				return &ExitError{Code: 10, Message: "integrity findings detected"}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum unbalanced transactions to report")

	return cmd
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func renderCheckHuman(out io.Writer, summary CheckSummary) {
	if summary.OK {
		_, _ = fmt.Fprintln(out, "Ledger balanced and inventory reconciled.")
		return
	}
	if len(summary.Unbalanced) > 0 {
		_, _ = fmt.Fprintf(out, "%d unbalanced transaction(s):\n", len(summary.Unbalanced))
		for _, issue := range summary.Unbalanced {
			_, _ = fmt.Fprintf(out, " - %s debit %s credit %s entries %d\n",
				issue.TransactionID, issue.Debit.StringFixed(2), issue.Credit.StringFixed(2), issue.Entries)
		}
	}
	if len(summary.InventoryDrifts) > 0 {
		_, _ = fmt.Fprintf(out, "%d inventory drift(s):\n", len(summary.InventoryDrifts))
		for _, d := range summary.InventoryDrifts {
			_, _ = fmt.Fprintf(out, " - %s\n", d.String())
		}
	}
}
