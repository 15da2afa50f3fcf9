package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/config"
	"github.com/trainlyhq/trainly-core/internal/credits"
	"github.com/trainlyhq/trainly-core/internal/database"
	"github.com/trainlyhq/trainly-core/internal/document"
	"github.com/trainlyhq/trainly-core/internal/ingest"
	"github.com/trainlyhq/trainly-core/internal/llm"
	"github.com/trainlyhq/trainly-core/internal/queue"
	"github.com/trainlyhq/trainly-core/internal/queue/workers"
	"github.com/trainlyhq/trainly-core/internal/vectorstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	docSvc := document.NewService(db)
	chatSvc := chat.NewService(db)
	ledger := credits.NewLedger(db)
	gateway := llm.NewGateway(cfg.LLM)
	store := vectorstore.NewPgVectorStore(db)
	ingestSvc := ingest.NewService(docSvc, gateway, store)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(workers.NewIngestWorker(ingestSvc).ProcessTask))
	registry.Register(queue.TypeKeyUsage, asynq.HandlerFunc(workers.NewKeyUsageWorker(chatSvc).ProcessTask))
	registry.Register(queue.TypeCreditsReset, asynq.HandlerFunc(workers.NewCreditsResetWorker(ledger).ProcessTask))

	// The credit-period sweep is self-scheduling; one instance enqueues it
	// hourly alongside the consumers.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register("@every 1h", asynq.NewTask(queue.TypeCreditsReset, nil)); err != nil {
		slog.Error("register credits sweep", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			slog.Error("scheduler error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
