package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"veritag/internal/anchor"
	"veritag/internal/batch"
	batchmetrics "veritag/internal/batch/metrics"
	batchservice "veritag/internal/batch/service"
	"veritag/internal/platform/config"
	"veritag/internal/platform/logger"
	"veritag/internal/worker"
)

// main runs the background worker: queued issuance jobs plus the periodic
// expiry sweep. It shares nothing with the server process except the database
// and the queue.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.Redis.URL == "" {
		log.Error("worker requires VERITAG_REDIS_URL for the job queue")
		os.Exit(1)
	}
	connOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		log.Error("parse redis URL", "error", err)
		os.Exit(1)
	}

	var store batch.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = batch.NewPostgres(db)
	} else {
		// In-memory issuance from a worker is only useful for local smoke
		// tests; the server process cannot see its results.
		log.Warn("no postgres DSN configured, issued batches stay local to this process")
		store = batch.NewInMemoryStore()
	}

	var anchorer anchor.Anchorer
	if cfg.Anchor.URL != "" {
		anchorer = anchor.NewHTTPAnchor(cfg.Anchor.URL, &http.Client{Timeout: cfg.Anchor.Timeout})
	} else {
		anchorer = anchor.NewInMemory()
	}

	batches := batchservice.New(store, anchorer, log,
		batchservice.WithMetrics(batchmetrics.New()),
		batchservice.WithWorkers(cfg.IssuanceWorkers),
	)
	processor := worker.NewProcessor(batches, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go processor.RunExpirySweep(sweepCtx, cfg.ExpirySweepInterval)

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	log.Info("starting veritag worker",
		"concurrency", cfg.WorkerConcurrency,
		"sweep_interval", cfg.ExpirySweepInterval.String(),
	)

	go func() {
		if err := srv.Run(processor.Handler()); err != nil {
			log.Error("worker error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	stopSweep()
	srv.Shutdown()
}
