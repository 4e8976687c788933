package pos

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultTopLimit = 10

// Service is the POS core: catalog edits, checkout, reports and sync
// bookkeeping on top of a Store.
type Service struct {
	Store Store
	// NewTxnID defaults to NewTransactionID.
	NewTxnID func() string
}

func (s *Service) txnID() string {
	if s.NewTxnID != nil {
		return s.NewTxnID()
	}
	return NewTransactionID()
}

// ProcessSale records one checkout. Lines are handled in order against the
// stock as left by the previous lines; the first failing line aborts the
// whole sale and nothing is committed.
func (s *Service) ProcessSale(ctx context.Context, items []SaleItem) (string, error) {
	if len(items) == 0 {
		return "", invalid("items", "at least one line is required")
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return "", invalid(fmt.Sprintf("items[%d].quantity", i), "must be a positive integer")
		}
	}

	txnID := s.txnID()
	err := s.Store.InTx(ctx, func(tx Tx) error {
		for _, it := range items {
			p, err := tx.LockProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.StockQuantity < it.Quantity {
				return &InsufficientStockError{ProductID: p.ID, Requested: it.Quantity, Available: p.StockQuantity}
			}
			if err := tx.DecrementStock(ctx, p.ID, it.Quantity); err != nil {
				return err
			}
			line := SaleLine{
				TransactionID: txnID,
				ProductID:     p.ID,
				Quantity:      it.Quantity,
				UnitPrice:     p.Price,
				LineTotal:     p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
			}
			if err := tx.InsertSaleLine(ctx, &line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

func validateProduct(in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	switch {
	case in.Name == "":
		return in, invalid("name", "required")
	case in.Category == "":
		return in, invalid("category", "required")
	case in.Price.IsNegative():
		return in, invalid("price", "must not be negative")
	case !in.Price.Equal(in.Price.Round(2)):
		// prices are stored as NUMERIC(12,2)
		return in, invalid("price", "at most 2 decimal places")
	case in.StockQuantity < 0:
		return in, invalid("stock_quantity", "must not be negative")
	}
	return in, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (int64, error) {
	in, err := validateProduct(in)
	if err != nil {
		return 0, err
	}
	return s.Store.CreateProduct(ctx, in)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.Store.GetProduct(ctx, id)
}

// UpdateProduct replaces name, price, category and stock of an existing
// product. Past sale lines keep the price they were sold at.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) error {
	in, err := validateProduct(in)
	if err != nil {
		return err
	}
	return s.Store.UpdateProduct(ctx, id, in)
}

// DeleteProduct fails with IntegrityError while sale lines reference it.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.Store.DeleteProduct(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, r DateRange) ([]SaleLine, error) {
	return s.Store.ListSales(ctx, r)
}

func (s *Service) Summary(ctx context.Context, r DateRange) (Summary, error) {
	return s.Store.Summary(ctx, r)
}

// TopProducts ranks products by units sold, ties broken by lowest product id.
// A zero limit means DefaultTopLimit.
func (s *Service) TopProducts(ctx context.Context, r DateRange, limit int) ([]TopProduct, error) {
	if limit == 0 {
		limit = DefaultTopLimit
	}
	if limit < 0 {
		return nil, invalid("limit", "must be positive")
	}
	return s.Store.TopProducts(ctx, r, limit)
}

func (s *Service) UnsyncedSales(ctx context.Context) ([]SaleLine, error) {
	return s.Store.UnsyncedSales(ctx)
}

// MarkSynced flags every line of txnID as synced and appends a success entry
// to the sync log, both in one transaction.
func (s *Service) MarkSynced(ctx context.Context, txnID string) (bool, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return false, invalid("transaction_id", "required")
	}
	err := s.Store.InTx(ctx, func(tx Tx) error {
		n, err := tx.CountLines(ctx, txnID)
		if err != nil {
			return err
		}
		if n == 0 {
			return transactionNotFound(txnID)
		}
		if err := tx.MarkSynced(ctx, txnID); err != nil {
			return err
		}
		return tx.AppendSyncLog(ctx, txnID, SyncSuccess, "")
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordSyncFailure logs a failed upload attempt. Sync flags are untouched.
func (s *Service) RecordSyncFailure(ctx context.Context, txnID, reason string) error {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return invalid("transaction_id", "required")
	}
	return s.Store.InTx(ctx, func(tx Tx) error {
		n, err := tx.CountLines(ctx, txnID)
		if err != nil {
			return err
		}
		if n == 0 {
			return transactionNotFound(txnID)
		}
		return tx.AppendSyncLog(ctx, txnID, SyncFailed, reason)
	})
}

func (s *Service) SyncLog(ctx context.Context, txnID string) ([]SyncLogEntry, error) {
	if strings.TrimSpace(txnID) == "" {
		return nil, invalid("transaction_id", "required")
	}
	return s.Store.SyncLog(ctx, txnID)
}

// GroupByTransaction splits lines into per-transaction batches, keeping the
// order in which transactions first appear.
func GroupByTransaction(lines []SaleLine) (order []string, byTxn map[string][]SaleLine) {
	byTxn = make(map[string][]SaleLine)
	for _, l := range lines {
		if _, ok := byTxn[l.TransactionID]; !ok {
			order = append(order, l.TransactionID)
		}
		byTxn[l.TransactionID] = append(byTxn[l.TransactionID], l)
	}
	return order, byTxn
}
