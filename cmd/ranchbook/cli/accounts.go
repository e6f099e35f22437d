package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAccountsCommand(rt Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts maintenance",
	}

	var tenant string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create the default farm chart of accounts for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("invalid --tenant %q: %w", tenant, err)
			}
			seeder, cleanup, err := rt.Seeder(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			created, err := seeder.SeedDefaults(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%d account(s) created\n", len(created))
			for _, acc := range created {
				_, _ = fmt.Fprintf(out, " - %s %s\n", acc.Code, acc.Name)
			}
			return nil
		},
	}
	seed.Flags().StringVar(&tenant, "tenant", "", "tenant id (required)")
	_ = seed.MarkFlagRequired("tenant")

	cmd.AddCommand(seed)
	return cmd
}
