package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewProductsCmd groups the catalog commands.
func NewProductsCmd(b Backend) *cobra.Command {
	productsCmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "List and edit the product catalog",
	}
	productsCmd.AddCommand(newProductsListCmd(b), newProductsAddCmd(b), newProductsUpdateCmd(b), newProductsDeleteCmd(b))
	return productsCmd
}

func newProductsListCmd(b Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				ps, err := svc.ListProducts(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCATEGORY\tSTOCK")
				for _, p := range ps {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Category, p.StockQuantity)
				}
				return tw.Flush()
			})
		},
	}
}

// productFlags binds the editable product fields to cmd.
func productFlags(cmd *cobra.Command) func() (pos.ProductInput, error) {
	name := cmd.Flags().String("name", "", "Product name (required)")
	price := cmd.Flags().String("price", "", "Unit price, e.g. 24.99 (required)")
	category := cmd.Flags().String("category", "", "Category (required)")
	stock := cmd.Flags().Int("stock", 0, "Units in stock")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("category")

	return func() (pos.ProductInput, error) {
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return pos.ProductInput{}, &pos.ValidationError{Field: "price", Reason: "not a number"}
		}
		return pos.ProductInput{Name: *name, Price: p, Category: *category, StockQuantity: *stock}, nil
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &pos.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a product id", s)}
	}
	return id, nil
}

func newProductsAddCmd(b Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the catalog",
		Args:  cobra.NoArgs,
	}
	input := productFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in, err := input()
		if err != nil {
			return err
		}
		return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
			id, err := svc.CreateProduct(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product added successfully (id %d)\n", id)
			return nil
		})
	}
	return cmd
}

func newProductsUpdateCmd(b Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a product's name, price, category and stock",
		Args:  cobra.ExactArgs(1),
	}
	input := productFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		in, err := input()
		if err != nil {
			return err
		}
		return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
			if err := svc.UpdateProduct(ctx, id, in); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Product updated successfully")
			return nil
		})
	}
	return cmd
}

func newProductsDeleteCmd(b Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product that has never been sold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				if err := svc.DeleteProduct(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Product deleted successfully")
				return nil
			})
		},
	}
}
