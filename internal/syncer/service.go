package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	kafkax "github.com/ariefcatur/go-pos/internal/kafka"
	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/ariefcatur/go-pos/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service uploads unsynced sales and applies the acknowledgements that come
// back. Redis is optional: without it every tick republishes all pending
// transactions and acks are not deduplicated.
type Service struct {
	POS         *pos.Service
	Redis       *redis.Client
	Producer    Publisher // publishes pos.sales.recorded
	ServiceName string
	InflightTTL time.Duration
}

// Run uploads on every tick until ctx is done.
func (s *Service) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if n, err := s.UploadPending(ctx); err != nil {
			log.Printf("sync upload: %v", err)
		} else if n > 0 {
			log.Printf("sync upload: published %d transactions", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// UploadPending publishes one SaleRecorded event per unsynced transaction
// that is not already waiting for an ack. Returns how many were published.
func (s *Service) UploadPending(ctx context.Context) (int, error) {
	lines, err := s.POS.UnsyncedSales(ctx)
	if err != nil {
		return 0, err
	}
	order, byTxn := pos.GroupByTransaction(lines)

	published := 0
	for _, txn := range order {
		if s.Redis != nil {
			key := fmt.Sprintf(redisx.KeySyncInflight, txn)
			ok, err := redisx.Claim(ctx, s.Redis, key, time.Now().UTC().Format(time.RFC3339), s.inflightTTL())
			if err != nil {
				return published, err
			}
			if !ok {
				continue // still waiting for the ack
			}
		}
		s.publishRecorded(txn, byTxn[txn])
		published++
	}
	return published, nil
}

func (s *Service) inflightTTL() time.Duration {
	if s.InflightTTL > 0 {
		return s.InflightTTL
	}
	return 5 * time.Minute
}

func (s *Service) publishRecorded(txn string, lines []pos.SaleLine) {
	ev := pos.Envelope{
		EventID:       uuid.NewString(),
		EventType:     pos.EventSaleRecorded,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: txn,
		Payload:       kafkax.MustMarshal(pos.NewSaleRecordedPayload(txn, lines)),
	}
	s.Producer.Publish(pos.PartitionKey(txn), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(pos.EventSaleRecorded, 1)...)
}

// HandleAck is installed as the consumer handler for pos.sales.acked.
func (s *Service) HandleAck(ctx context.Context, m kafkago.Message) error {
	var env pos.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("sync ack: drop undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != pos.EventSaleAcked {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if s.Redis != nil {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[pos.SaleAckedPayload](env.Payload)
	if err != nil {
		log.Printf("sync ack %s: %v", env.EventID, err)
		return nil
	}

	switch p.Status {
	case pos.AckAccepted:
		_, err = s.POS.MarkSynced(ctx, p.TransactionID)
	case pos.AckRejected:
		err = s.POS.RecordSyncFailure(ctx, p.TransactionID, p.Reason)
		if err == nil && s.Redis != nil {
			// let the next tick retry
			_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeySyncInflight, p.TransactionID)).Err()
		}
	default:
		log.Printf("sync ack %s: unknown status %q", env.EventID, p.Status)
		return nil
	}
	if pos.IsNotFound(err) || pos.IsValidation(err) {
		log.Printf("sync ack %s: %v", env.EventID, err)
		err = nil
	}
	if err != nil {
		return err
	}

	if s.Redis != nil {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}
