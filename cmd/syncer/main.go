package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-pos/internal/config"
	kafkax "github.com/ariefcatur/go-pos/internal/kafka"
	"github.com/ariefcatur/go-pos/internal/pos"
	"github.com/ariefcatur/go-pos/internal/postgres"
	"github.com/ariefcatur/go-pos/internal/redisx"
	"github.com/ariefcatur/go-pos/internal/syncer"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer: sale uploads
	prod := kafkax.NewProducer(cfg.KafkaBrokers, pos.TopicSaleRecorded, 1024)
	prod.Start()

	svc := &syncer.Service{
		POS:         &pos.Service{Store: &pos.Repo{DB: db}},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-syncer",
		InflightTTL: cfg.SyncInflightTTL,
	}

	// Consumer: acks from the system of record. One worker keeps acks of a
	// partition in order.
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.SyncGroup, pos.TopicSaleAcked, 1)
	go func() {
		log.Printf("sync ack consumer started: group=%s topic=%s", cfg.SyncGroup, pos.TopicSaleAcked)
		if err := cons.Start(ctx, svc.HandleAck); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	uploaded := make(chan struct{})
	go func() {
		defer close(uploaded)
		log.Printf("sync uploader started: every %s -> %s", cfg.SyncInterval, pos.TopicSaleRecorded)
		svc.Run(ctx, cfg.SyncInterval)
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down syncer...")
	cancel()
	<-uploaded
	prod.Close()
	prod.WaitClosed()
}
