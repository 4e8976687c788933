package redisx

import "time"

const (
	// Checkout idempotency: idem:sale:{Idempotency-Key} -> transaction_id,
	// or IdemPending while the first request is still selling
	KeyIdemSale = "idem:sale:%s"
	IdemPending = "pending"

	// Upload pending ack: sync:inflight:{transaction_id}
	KeySyncInflight = "sync:inflight:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
