package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/spf13/cobra"
)

func NewSyncCmd(b Backend) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and acknowledge sales awaiting upload",
	}

	unsyncedCmd := &cobra.Command{
		Use:   "unsynced",
		Short: "List sale lines not yet synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				lines, err := svc.UnsyncedSales(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TRANSACTION\tPRODUCT\tQTY\tUNIT PRICE\tTOTAL")
				for _, l := range lines {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.TransactionID, l.ProductName, l.Quantity,
						l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
				}
				fmt.Fprintf(tw, "\nUnsynced sales: %d\n", len(lines))
				return tw.Flush()
			})
		},
	}

	markCmd := &cobra.Command{
		Use:   "mark <transaction_id>...",
		Short: "Mark transactions as synced after a manual upload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				for _, txn := range args {
					if _, err := svc.MarkSynced(ctx, txn); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s synced\n", txn)
				}
				return nil
			})
		},
	}

	syncCmd.AddCommand(unsyncedCmd, markCmd)
	return syncCmd
}
