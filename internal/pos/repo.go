package pos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE foreign_key_violation
const pgForeignKeyViolation = "23503"

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// InTx: BEGIN -> fn -> COMMIT; any error from fn rolls back via defer.
func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) CreateProduct(ctx context.Context, in ProductInput) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(name, price, category, stock_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		in.Name, in.Price.String(), in.Category, in.StockQuantity,
	).Scan(&id)
	return id, err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, price, category, stock_quantity
                                FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.StockQuantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `SELECT id, name, price, category, stock_quantity
                               FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, productNotFound(id)
	}
	return p, err
}

func (r *Repo) UpdateProduct(ctx context.Context, id int64, in ProductInput) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, price=$3, category=$4, stock_quantity=$5
		WHERE id=$1`,
		id, in.Name, in.Price.String(), in.Category, in.StockQuantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return productNotFound(id)
	}
	return nil
}

// DeleteProduct relies on the sales.product_id foreign key (ON DELETE
// RESTRICT) to refuse products that have been sold.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return &IntegrityError{ProductID: id, Reason: "cannot delete product with existing sales records"}
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return productNotFound(id)
	}
	return nil
}

const saleLineCols = `s.id, s.transaction_id, s.product_id, p.name, s.quantity,
	s.unit_price, s.line_total, s.created_at, s.synced`

func scanSaleLines(rows pgx.Rows) ([]SaleLine, error) {
	defer rows.Close()
	out := []SaleLine{}
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.TransactionID, &l.ProductID, &l.ProductName, &l.Quantity,
			&l.UnitPrice, &l.LineTotal, &l.Timestamp, &l.Synced); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) ListSales(ctx context.Context, dr DateRange) ([]SaleLine, error) {
	where, args := dr.where("s.created_at", 1)
	rows, err := r.DB.Query(ctx, `SELECT `+saleLineCols+`
		FROM sales s JOIN products p ON s.product_id = p.id`+where+`
		ORDER BY s.created_at DESC, s.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	return scanSaleLines(rows)
}

func (r *Repo) Summary(ctx context.Context, dr DateRange) (Summary, error) {
	where, args := dr.where("created_at", 1)
	var sum Summary
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(DISTINCT transaction_id),
		       COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(line_total), 0)
		FROM sales`+where, args...).
		Scan(&sum.TransactionsCount, &sum.ItemsSold, &sum.TotalRevenue)
	return sum, err
}

func (r *Repo) TopProducts(ctx context.Context, dr DateRange, limit int) ([]TopProduct, error) {
	where, args := dr.where("s.created_at", 2)
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, p.category, SUM(s.quantity), SUM(s.line_total)
		FROM sales s JOIN products p ON s.product_id = p.id`+where+`
		GROUP BY p.id, p.name, p.category
		ORDER BY SUM(s.quantity) DESC, p.id ASC
		LIMIT $1`, append([]any{limit}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TopProduct{}
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.Category, &t.TotalSold, &t.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) UnsyncedSales(ctx context.Context) ([]SaleLine, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+saleLineCols+`
		FROM sales s JOIN products p ON s.product_id = p.id
		WHERE NOT s.synced
		ORDER BY s.id`)
	if err != nil {
		return nil, err
	}
	return scanSaleLines(rows)
}

func (r *Repo) SyncLog(ctx context.Context, txnID string) ([]SyncLogEntry, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, transaction_id, sync_time, status, detail
		FROM sync_log WHERE transaction_id=$1 ORDER BY id`, txnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SyncLogEntry{}
	for rows.Next() {
		var e SyncLogEntry
		var status string
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.SyncTime, &status, &e.Detail); err != nil {
			return nil, err
		}
		e.Status = SyncStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
