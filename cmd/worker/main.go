// Package main is the entry point for the stockbook background worker.
// It relays outbox messages and purges published ones.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockbook/internal/infrastructure/storage/postgres"
	"stockbook/internal/metrics"
	"stockbook/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting stockbook worker")

	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	relay := postgres.NewOutboxRelay(pool.Unwrap(), getEnvInt("OUTBOX_BATCH_SIZE", 100), &logHandler{log: log})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runRelay(ctx, relay, log)
	}()
	go func() {
		defer wg.Done()
		runPurge(ctx, relay, log)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// runRelay drains the outbox in a poll loop.
func runRelay(ctx context.Context, relay *postgres.OutboxRelay, log *logger.Logger) {
	interval := getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := relay.ProcessBatch(ctx)
			if err != nil {
				log.Errorw("outbox batch failed", "error", err)
				metrics.OutboxProcessed.WithLabelValues("error").Inc()
				continue
			}
			if processed > 0 {
				log.Debugw("outbox batch processed", "count", processed)
				metrics.OutboxProcessed.WithLabelValues("published").Add(float64(processed))
			}
		}
	}
}

// runPurge removes published messages past the retention window.
func runPurge(ctx context.Context, relay *postgres.OutboxRelay, log *logger.Logger) {
	retention := getEnvDuration("OUTBOX_RETENTION", 72*time.Hour)
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := relay.PurgePublished(ctx, retention)
			if err != nil {
				log.Errorw("outbox purge failed", "error", err)
				continue
			}
			if purged > 0 {
				log.Infow("purged published outbox messages", "count", purged)
			}
		}
	}
}

// logHandler is the default delivery target: it logs the event.
// Swap in a broker-backed handler when one is available.
type logHandler struct {
	log *logger.Logger
}

func (h *logHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	h.log.Infow("outbox event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID.String(),
	)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
