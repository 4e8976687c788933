package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
}

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	StockQuantity int             `json:"stock_quantity"`
}

// SaleItem is one cart line handed to ProcessSale.
type SaleItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// SaleLine is an immutable record of one sold line. Only Synced changes
// after insert.
type SaleLine struct {
	ID            int64           `json:"id"`
	TransactionID string          `json:"transaction_id"`
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"` // snapshot at sale time
	LineTotal     decimal.Decimal `json:"line_total"`
	Timestamp     time.Time       `json:"timestamp"`
	Synced        bool            `json:"synced"`
}

type SyncLogEntry struct {
	ID            int64      `json:"id"`
	TransactionID string     `json:"transaction_id"`
	SyncTime      time.Time  `json:"sync_time"`
	Status        SyncStatus `json:"status"`
	Detail        string     `json:"detail,omitempty"`
}

type Summary struct {
	TransactionsCount int             `json:"transactions_count"`
	ItemsSold         int             `json:"items_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
}

type TopProduct struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	TotalSold    int             `json:"total_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}
