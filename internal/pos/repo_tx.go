package pos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type pgTx struct{ tx pgx.Tx }

// LockProduct takes the row lock (FOR UPDATE) so concurrent checkouts of the
// same product queue behind each other until commit/rollback.
func (t *pgTx) LockProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, price, category, stock_quantity
		FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, productNotFound(id)
	}
	return p, err
}

func (t *pgTx) DecrementStock(ctx context.Context, id int64, qty int) error {
	var left int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE id=$1 AND stock_quantity >= $2
		RETURNING stock_quantity`, id, qty).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		// row vanished or stock moved under us despite the lock
		var stock int
		if err := t.tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, id).Scan(&stock); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return productNotFound(id)
			}
			return err
		}
		return &InsufficientStockError{ProductID: id, Requested: qty, Available: stock}
	}
	return err
}

func (t *pgTx) InsertSaleLine(ctx context.Context, l *SaleLine) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO sales(transaction_id, product_id, quantity, unit_price, line_total)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`,
		l.TransactionID, l.ProductID, l.Quantity, l.UnitPrice.String(), l.LineTotal.String(),
	).Scan(&l.ID, &l.Timestamp)
}

func (t *pgTx) CountLines(ctx context.Context, txnID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE transaction_id=$1`, txnID).Scan(&n)
	return n, err
}

func (t *pgTx) MarkSynced(ctx context.Context, txnID string) error {
	_, err := t.tx.Exec(ctx, `UPDATE sales SET synced = true WHERE transaction_id=$1`, txnID)
	return err
}

func (t *pgTx) AppendSyncLog(ctx context.Context, txnID string, status SyncStatus, detail string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sync_log(transaction_id, status, detail)
		VALUES ($1,$2,$3)`, txnID, string(status), detail)
	return err
}
