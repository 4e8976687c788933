package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/spf13/cobra"
)

func NewReportCmd(b Backend) *cobra.Command {
	var from, to string
	var top int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the sales summary and top selling products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dr, err := pos.ParseDateRange(from, to)
			if err != nil {
				return err
			}
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				sum, err := svc.Summary(ctx, dr)
				if err != nil {
					return err
				}
				ranked, err := svc.TopProducts(ctx, dr, top)
				if err != nil {
					return err
				}
				writeReport(cmd.OutOrStdout(), from, to, sum, ranked)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Start date, YYYY-MM-DD or RFC3339 (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "End date, YYYY-MM-DD or RFC3339 (inclusive)")
	cmd.Flags().IntVar(&top, "top", pos.DefaultTopLimit, "Number of top selling products to list")
	return cmd
}

func writeReport(w io.Writer, from, to string, sum pos.Summary, ranked []pos.TopProduct) {
	fmt.Fprint(w, "SALES REPORT\n============\n\n")
	if from != "" || to != "" {
		fmt.Fprintf(w, "Period: %s to %s\n", orDefault(from, "Start"), orDefault(to, "End"))
	} else {
		fmt.Fprintln(w, "Period: All time")
	}
	fmt.Fprintf(w, "\nTransactions: %d\n", sum.TransactionsCount)
	fmt.Fprintf(w, "Items Sold: %d\n", sum.ItemsSold)
	fmt.Fprintf(w, "Total Revenue: %s\n", sum.TotalRevenue.StringFixed(2))

	fmt.Fprint(w, "\nTOP SELLING PRODUCTS\n====================\n\n")
	for i, p := range ranked {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, p.Name, p.Category)
		fmt.Fprintf(w, "   Sold: %d units, Revenue: %s\n", p.TotalSold, p.TotalRevenue.StringFixed(2))
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
