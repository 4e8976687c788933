package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/spf13/cobra"
)

// parseCartLine reads "<product_id>:<quantity>"; a bare id means one unit.
func parseCartLine(s string) (pos.SaleItem, error) {
	idPart, qtyPart, hasQty := strings.Cut(s, ":")
	id, err := parseID(idPart)
	if err != nil {
		return pos.SaleItem{}, err
	}
	qty := 1
	if hasQty {
		qty, err = strconv.Atoi(qtyPart)
		if err != nil {
			return pos.SaleItem{}, &pos.ValidationError{Field: "quantity", Reason: fmt.Sprintf("%q is not a number", qtyPart)}
		}
	}
	return pos.SaleItem{ProductID: id, Quantity: qty}, nil
}

func NewSaleCmd(b Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "sale <product_id>[:<qty>]...",
		Short: "Ring up a sale",
		Long: `Ring up one checkout. Every argument is a cart line; all lines are
committed together or not at all.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]pos.SaleItem, 0, len(args))
			for _, a := range args {
				it, err := parseCartLine(a)
				if err != nil {
					return err
				}
				items = append(items, it)
			}
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				txn, err := svc.ProcessSale(ctx, items)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sale processed successfully! Transaction ID: %s\n", txn)
				return nil
			})
		},
	}
}
