package kafka

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is done and its offset may be
// committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches messages and hands them to workers until ctx is cancelled.
// A failed message is retried in place and only committed once the handler
// succeeds, so the group offset never moves past it. With more than one
// worker, commits of a partition may land out of order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 64)
	done := make(chan struct{})
	for i := 0; i < c.workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for m := range jobs {
				if !handleUntilDone(ctx, h, m, retryBackoff) {
					continue // shutting down; left for redelivery
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Printf("commit %s offset=%d: %v", m.Topic, m.Offset, err)
				}
			}
		}()
	}
	stop := func() {
		close(jobs)
		for i := 0; i < c.workers; i++ {
			<-done
		}
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

const (
	retryBackoff    = 200 * time.Millisecond
	maxRetryBackoff = 10 * time.Second
)

// handleUntilDone runs h on m until it succeeds, doubling the wait between
// attempts up to maxRetryBackoff. It returns false if ctx ends first.
func handleUntilDone(ctx context.Context, h Handler, m kafka.Message, wait time.Duration) bool {
	for {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.Printf("consumer %s offset=%d: %v (retry in %s)", m.Topic, m.Offset, err, wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if wait *= 2; wait > maxRetryBackoff {
			wait = maxRetryBackoff
		}
	}
}
