package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Catalog is the layout of a seed file:
//
//	products:
//	  - name: Laptop
//	    price: "999.99"
//	    category: Electronics
//	    stock_quantity: 10
type Catalog struct {
	Products []CatalogProduct `yaml:"products"`
}

type CatalogProduct struct {
	Name          string `yaml:"name"`
	Price         string `yaml:"price"`
	Category      string `yaml:"category"`
	StockQuantity int    `yaml:"stock_quantity"`
}

// LoadCatalog reads and validates a seed file.
func LoadCatalog(path string) ([]pos.ProductInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	out := make([]pos.ProductInput, 0, len(c.Products))
	for i, p := range c.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: products[%d] (%s): bad price %q", path, i, p.Name, p.Price)
		}
		out = append(out, pos.ProductInput{Name: p.Name, Price: price, Category: p.Category, StockQuantity: p.StockQuantity})
	}
	return out, nil
}

func NewSeedCmd(b Backend) *cobra.Command {
	var file string
	var ifEmpty bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products from a YAML catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := LoadCatalog(file)
			if err != nil {
				return err
			}
			return withService(cmd, b, func(ctx context.Context, svc *pos.Service) error {
				if ifEmpty {
					existing, err := svc.ListProducts(ctx)
					if err != nil {
						return err
					}
					if len(existing) > 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "catalog already has %d products, skipping\n", len(existing))
						return nil
					}
				}
				for _, p := range products {
					if _, err := svc.CreateProduct(ctx, p); err != nil {
						return fmt.Errorf("seed %s: %w", p.Name, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d products\n", len(products))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "Path to the YAML catalog")
	cmd.Flags().BoolVar(&ifEmpty, "if-empty", false, "Only seed when the catalog has no products")
	return cmd
}
