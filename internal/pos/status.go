package pos

// SyncStatus is the outcome recorded in the sync log for one attempt.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)
