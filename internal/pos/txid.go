package pos

import "github.com/google/uuid"

// NewTransactionID returns a time-ordered identifier that stays unique no
// matter how many sales land in the same second.
func NewTransactionID() string {
	return "TXN-" + uuid.Must(uuid.NewV7()).String()
}
