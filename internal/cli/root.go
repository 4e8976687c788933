package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/spf13/cobra"
)

// Backend opens what the commands operate on. Close is called once the
// command finishes.
type Backend struct {
	Open    func(ctx context.Context) (svc *pos.Service, close func(), err error)
	Migrate func(ctx context.Context) error
}

// NewRootCmd creates the posctl command tree.
func NewRootCmd(b Backend) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "posctl",
		Short: "Operate the point-of-sale register from the terminal",
		Long: `posctl manages the product catalog, rings up sales and prints
sales reports against the POS database.

Example:
	posctl products add --name Laptop --price 999.99 --category Electronics --stock 10
	posctl sale 1:1 2:2
	posctl report --from 2024-01-01 --to 2024-01-31
`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(NewMigrateCmd(b))
	rootCmd.AddCommand(NewSeedCmd(b))
	rootCmd.AddCommand(NewProductsCmd(b))
	rootCmd.AddCommand(NewSaleCmd(b))
	rootCmd.AddCommand(NewReportCmd(b))
	rootCmd.AddCommand(NewSyncCmd(b))
	return rootCmd
}

// Execute runs the root command
func Execute(b Backend) {
	if err := NewRootCmd(b).Execute(); err != nil {
		os.Exit(1)
	}
}

// withService opens the backend around fn.
func withService(cmd *cobra.Command, b Backend, fn func(ctx context.Context, svc *pos.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := b.Open(ctx)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer closeFn()
	return fn(ctx, svc)
}

func NewMigrateCmd(b Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the POS tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if b.Migrate == nil {
				return fmt.Errorf("migrate is not supported by this backend")
			}
			if err := b.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
