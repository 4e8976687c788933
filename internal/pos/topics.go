package pos

const (
	TopicSaleRecorded = "pos.sales.recorded"
	TopicSaleAcked    = "pos.sales.acked"
)

// Partition key = transaction_id, so every event of one sale keeps its order.
func PartitionKey(txnID string) []byte { return []byte(txnID) }
