package pos

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventSaleRecorded = "SaleRecorded"
	EventSaleAcked    = "SaleSyncAcked"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "pos-syncer"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // transaction_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payloads ----

type SaleRecordedLine struct {
	LineID    int64           `json:"line_id"`
	ProductID int64           `json:"product_id"`
	Product   string          `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	SoldAt    time.Time       `json:"sold_at"`
}

type SaleRecordedPayload struct {
	TransactionID string             `json:"transaction_id"`
	Lines         []SaleRecordedLine `json:"lines"`
	Total         decimal.Decimal    `json:"total"`
}

const (
	AckAccepted = "ACCEPTED"
	AckRejected = "REJECTED"
)

type SaleAckedPayload struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`           // ACCEPTED | REJECTED
	Reason        string `json:"reason,omitempty"` // when REJECTED
}

// NewSaleRecordedPayload builds the upload payload for the lines of one
// transaction.
func NewSaleRecordedPayload(txnID string, lines []SaleLine) SaleRecordedPayload {
	p := SaleRecordedPayload{TransactionID: txnID, Total: decimal.Zero}
	for _, l := range lines {
		p.Lines = append(p.Lines, SaleRecordedLine{
			LineID:    l.ID,
			ProductID: l.ProductID,
			Product:   l.ProductName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
			SoldAt:    l.Timestamp,
		})
		p.Total = p.Total.Add(l.LineTotal)
	}
	return p
}
