package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-sales-graphql/internal/config"
	kafkax "github.com/ariefcatur/go-sales-graphql/internal/kafka"
	"github.com/ariefcatur/go-sales-graphql/internal/logx"
	"github.com/ariefcatur/go-sales-graphql/internal/redisx"
	"github.com/ariefcatur/go-sales-graphql/internal/reports"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// reports-worker keeps the leaderboard cache honest: it follows the order event
// stream and drops cached reports whenever an order lands in COMPLETED.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-reports"

	log, err := logx.New(cfg.LogLevel, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	w := &reports.Worker{
		Cache: redisx.EventCache{Redis: rdb, Service: name},
		Log:   log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReportsGroup, sales.TopicOrders, cfg.ReportsWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("reports consumer started",
			zap.String("group", cfg.ReportsGroup),
			zap.String("topic", sales.TopicOrders),
			zap.Int("workers", cfg.ReportsWorkers))
		if err := cons.Start(ctx, w.HandleOrderEvent); err != nil && ctx.Err() == nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	<-done
}
