package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/companion-api/internal/ai"
	"github.com/suPer8Hu/companion-api/internal/config"
	"github.com/suPer8Hu/companion-api/internal/insights"
	"github.com/suPer8Hu/companion-api/internal/queue"
	"github.com/suPer8Hu/companion-api/internal/store/gormstore"
	"github.com/suPer8Hu/companion-api/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if cfg.DBDSN == "" || cfg.RabbitURL == "" {
		slog.Error("worker requires DB_DSN and RABBIT_URL")
		os.Exit(1)
	}

	st, err := gormstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("db open", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// summaries use the same provider as chat, non-streaming
	provider, err := ai.NewRegistryFromConfig(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil && !errors.Is(err, ai.ErrNotConfigured) {
		slog.Error("invalid ai provider", "provider", cfg.AIProvider, "err", err)
		os.Exit(1)
	}
	if provider == nil {
		slog.Warn("ai provider not configured, jobs will fail", "provider", cfg.AIProvider)
	}

	//  strict concurrency control: prefetch == pool size
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		slog.Error("rabbit consume", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	slog.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", cfg.WorkerConcurrency)

	processor := insights.NewProcessor(st, provider)
	queue.RunWorkers(ctx, consumer, cfg.WorkerConcurrency, processor.Process)
}
