package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-pos/internal/kafka"
	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/ariefcatur/go-pos/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	msgs []kafkago.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func setup(t *testing.T) (*Service, *recordingPublisher, []string) {
	t.Helper()
	ctx := context.Background()
	core := &pos.Service{Store: &pos.MemStore{}}
	chair, err := core.CreateProduct(ctx, pos.ProductInput{Name: "Chair", Price: decimal.RequireFromString("89.99"), Category: "Furniture", StockQuantity: 12})
	require.NoError(t, err)
	desk, err := core.CreateProduct(ctx, pos.ProductInput{Name: "Desk", Price: decimal.RequireFromString("149.99"), Category: "Furniture", StockQuantity: 8})
	require.NoError(t, err)

	t1, err := core.ProcessSale(ctx, []pos.SaleItem{{ProductID: chair, Quantity: 2}, {ProductID: desk, Quantity: 1}})
	require.NoError(t, err)
	t2, err := core.ProcessSale(ctx, []pos.SaleItem{{ProductID: desk, Quantity: 1}})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return &Service{POS: core, Producer: pub, ServiceName: "pos-syncer"}, pub, []string{t1, t2}
}

func ackMessage(t *testing.T, eventID, txn, status, reason string) kafkago.Message {
	t.Helper()
	env := pos.Envelope{
		EventID:       eventID,
		EventType:     pos.EventSaleAcked,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "cloud",
		CorrelationID: txn,
		Payload:       kafkax.MustMarshal(pos.SaleAckedPayload{TransactionID: txn, Status: status, Reason: reason}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestUploadPending(t *testing.T) {
	ctx := context.Background()

	t.Run("PublishesOneEventPerTransaction", func(t *testing.T) {
		svc, pub, txns := setup(t)

		n, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Len(t, pub.msgs, 2)

		m := pub.msgs[0]
		require.Equal(t, txns[0], string(m.Key))
		require.Equal(t, pos.EventSaleRecorded, kafkax.HeaderValue(m, "x-event-type"))

		var env pos.Envelope
		require.NoError(t, json.Unmarshal(m.Value, &env))
		require.Equal(t, txns[0], env.CorrelationID)
		require.Equal(t, "pos-syncer", env.Producer)
		p, err := kafkax.UnwrapPayload[pos.SaleRecordedPayload](env.Payload)
		require.NoError(t, err)
		require.Len(t, p.Lines, 2)
		require.True(t, p.Total.Equal(decimal.RequireFromString("329.97")))
	})

	t.Run("SkipsSyncedTransactions", func(t *testing.T) {
		svc, pub, txns := setup(t)
		require.NoError(t, svc.HandleAck(ctx, ackMessage(t, "e1", txns[0], pos.AckAccepted, "")))

		n, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, txns[1], string(pub.msgs[0].Key))
	})
}

func TestHandleAck(t *testing.T) {
	ctx := context.Background()

	t.Run("AcceptedMarksSynced", func(t *testing.T) {
		svc, _, txns := setup(t)
		require.NoError(t, svc.HandleAck(ctx, ackMessage(t, "e1", txns[1], pos.AckAccepted, "")))

		unsynced, err := svc.POS.UnsyncedSales(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 2)
		for _, l := range unsynced {
			require.Equal(t, txns[0], l.TransactionID)
		}
		log, err := svc.POS.SyncLog(ctx, txns[1])
		require.NoError(t, err)
		require.Len(t, log, 1)
		require.Equal(t, pos.SyncSuccess, log[0].Status)
	})

	t.Run("RejectedLogsFailure", func(t *testing.T) {
		svc, _, txns := setup(t)
		require.NoError(t, svc.HandleAck(ctx, ackMessage(t, "e2", txns[0], pos.AckRejected, "schema mismatch")))

		unsynced, err := svc.POS.UnsyncedSales(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 3)
		log, err := svc.POS.SyncLog(ctx, txns[0])
		require.NoError(t, err)
		require.Len(t, log, 1)
		require.Equal(t, pos.SyncFailed, log[0].Status)
		require.Equal(t, "schema mismatch", log[0].Detail)
	})

	t.Run("IgnoresUnknownTransactionAndGarbage", func(t *testing.T) {
		svc, _, _ := setup(t)
		require.NoError(t, svc.HandleAck(ctx, ackMessage(t, "e3", "TXN-nope", pos.AckAccepted, "")))
		require.NoError(t, svc.HandleAck(ctx, kafkago.Message{Value: []byte("not json")}))

		other := pos.Envelope{EventID: "e4", EventType: pos.EventSaleRecorded}
		require.NoError(t, svc.HandleAck(ctx, kafkago.Message{Value: kafkax.MustMarshal(other)}))
	})
}

func withRedis(t *testing.T, svc *Service) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc.Redis = rdb
	svc.InflightTTL = time.Minute
	return mr
}

func TestSyncWithRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("UploadPending_SkipsInflightTransactions", func(t *testing.T) {
		svc, pub, txns := setup(t)
		mr := withRedis(t, svc)

		n, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		for _, txn := range txns {
			key := fmt.Sprintf(redisx.KeySyncInflight, txn)
			require.True(t, mr.Exists(key))
			require.Equal(t, time.Minute, mr.TTL(key))
		}

		n, err = svc.UploadPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n)
		require.Len(t, pub.msgs, 2)
	})

	t.Run("UploadPending_RetriesAfterMarkerExpires", func(t *testing.T) {
		svc, pub, _ := setup(t)
		mr := withRedis(t, svc)

		_, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		n, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Len(t, pub.msgs, 4)
	})

	t.Run("RejectedAck_ReenablesUpload", func(t *testing.T) {
		svc, pub, txns := setup(t)
		mr := withRedis(t, svc)

		_, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		require.NoError(t, svc.HandleAck(ctx, ackMessage(t, "e1", txns[0], pos.AckRejected, "timeout")))
		require.False(t, mr.Exists(fmt.Sprintf(redisx.KeySyncInflight, txns[0])))

		n, err := svc.UploadPending(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, txns[0], string(pub.msgs[len(pub.msgs)-1].Key))
	})

	t.Run("DuplicateAck_AppliedOnce", func(t *testing.T) {
		svc, _, txns := setup(t)
		mr := withRedis(t, svc)

		require.NoError(t, svc.HandleAck(ctx, ackMessage(t, "e1", txns[0], pos.AckRejected, "timeout")))
		accepted := ackMessage(t, "e2", txns[0], pos.AckAccepted, "")
		require.NoError(t, svc.HandleAck(ctx, accepted))
		require.NoError(t, svc.HandleAck(ctx, accepted))

		log, err := svc.POS.SyncLog(ctx, txns[0])
		require.NoError(t, err)
		require.Len(t, log, 2)
		require.Equal(t, pos.SyncFailed, log[0].Status)
		require.Equal(t, pos.SyncSuccess, log[1].Status)
		require.True(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "pos-syncer", "e2")))
	})
}
