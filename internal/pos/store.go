package pos

import "context"

// Store is the datastore the POS service runs against. Repo is the Postgres
// implementation; MemStore keeps everything in process.
type Store interface {
	// InTx runs fn in one transaction. A non-nil error from fn rolls back
	// every mutation made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateProduct(ctx context.Context, in ProductInput) (int64, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) error
	DeleteProduct(ctx context.Context, id int64) error

	ListSales(ctx context.Context, r DateRange) ([]SaleLine, error)
	Summary(ctx context.Context, r DateRange) (Summary, error)
	TopProducts(ctx context.Context, r DateRange, limit int) ([]TopProduct, error)
	UnsyncedSales(ctx context.Context) ([]SaleLine, error)
	SyncLog(ctx context.Context, txnID string) ([]SyncLogEntry, error)
}

// Tx holds the mutations that have to commit together.
type Tx interface {
	// LockProduct reads a product and holds it until the transaction ends.
	LockProduct(ctx context.Context, id int64) (Product, error)
	DecrementStock(ctx context.Context, id int64, qty int) error
	// InsertSaleLine stores l and fills in its ID and Timestamp.
	InsertSaleLine(ctx context.Context, l *SaleLine) error
	CountLines(ctx context.Context, txnID string) (int, error)
	MarkSynced(ctx context.Context, txnID string) error
	AppendSyncLog(ctx context.Context, txnID string, status SyncStatus, detail string) error
}
