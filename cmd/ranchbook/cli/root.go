// Package cli holds the operator commands of the ranchbook binary.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/jobs"
)

// Runtime opens the resources each command needs. Cleanup funcs release them.
type Runtime interface {
	Serve(ctx context.Context) error
	Migrate(ctx context.Context) error
	Checkers(ctx context.Context) (Checkers, func(), error)
	Jobs(ctx context.Context) (*JobsCLI, error)
	Seeder(ctx context.Context) (Seeder, func(), error)
}

// Checkers are the synchronous integrity checks run by the check command.
type Checkers struct {
	Ledger    jobs.LedgerChecker
	Inventory jobs.InventoryReconciler
}

// Seeder creates the default chart of accounts for a tenant.
type Seeder interface {
	SeedDefaults(ctx context.Context, tenantID uuid.UUID) ([]accounts.Account, error)
}

// ExitError carries a process exit code other than 1.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// NewRootCommand creates the root command with all subcommands registered. Running it
// without a subcommand starts the API server.
func NewRootCommand(rt Runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "ranchbook",
		Short: "Farm and ranch bookkeeping API",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.Serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := rt.Migrate(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		newCheckCommand(rt),
		newJobsCommand(rt),
		newAccountsCommand(rt),
	)
	return root
}
