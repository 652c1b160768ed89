package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"veritag/internal/anchor"
	"veritag/internal/batch"
	batchhandler "veritag/internal/batch/handler"
	batchmetrics "veritag/internal/batch/metrics"
	batchservice "veritag/internal/batch/service"
	"veritag/internal/platform/config"
	"veritag/internal/platform/httpserver"
	"veritag/internal/platform/kafka"
	"veritag/internal/platform/logger"
	platformredis "veritag/internal/platform/redis"
	"veritag/internal/queue"
	"veritag/internal/scanledger"
	"veritag/internal/shipment"
	shipmenthandler "veritag/internal/shipment/handler"
	shipmentmetrics "veritag/internal/shipment/metrics"
	shipmentservice "veritag/internal/shipment/service"
	httptransport "veritag/internal/transport/http"
	"veritag/internal/verify"
	verifyhandler "veritag/internal/verify/handler"
	verifymetrics "veritag/internal/verify/metrics"
)

// main wires dependencies and keeps the server lifecycle small. Subsystems
// with empty configuration fall back to in-memory implementations, so a bare
// `go run ./cmd/server` gives a working single-node setup.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		batchStore    batch.Store
		shipmentStore shipment.Store
		ledger        scanledger.Store
		txRunner      shipment.TxRunner
		healthChecks  = map[string]func(ctx context.Context) error{}
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := applySchemas(db); err != nil {
			log.Error("apply schemas", "error", err)
			os.Exit(1)
		}
		batchStore = batch.NewPostgres(db)
		shipmentStore = shipment.NewPostgres(db)
		ledger = scanledger.NewPostgres(db)
		txRunner = shipment.NewPostgresTxRunner(db)
		healthChecks["postgres"] = db.PingContext
	} else {
		log.Info("no postgres DSN configured, using in-memory stores")
		batchStore = batch.NewInMemoryStore()
		shipmentStore = shipment.NewInMemoryStore()
		ledger = scanledger.NewInMemoryStore()
		txRunner = shipment.NewInMemoryTxRunner()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthChecks["redis"] = redisClient.Health
	}

	publisher, err := kafka.NewPublisher(cfg.Kafka, log)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	var anchorer anchor.Anchorer
	if cfg.Anchor.URL != "" {
		anchorer = anchor.NewHTTPAnchor(cfg.Anchor.URL, &http.Client{Timeout: cfg.Anchor.Timeout})
	} else {
		log.Info("no anchor URL configured, using in-memory anchor store")
		anchorer = anchor.NewInMemory()
	}

	batches := batchservice.New(batchStore, anchorer, log,
		batchservice.WithMetrics(batchmetrics.New()),
		batchservice.WithWorkers(cfg.IssuanceWorkers),
	)
	shipments := shipmentservice.New(shipmentStore, batches, log,
		shipmentservice.WithMetrics(shipmentmetrics.New()),
		shipmentservice.WithTxRunner(txRunner),
	)

	verifyOpts := []verify.Option{verify.WithMetrics(verifymetrics.New())}
	if redisClient != nil {
		verifyOpts = append(verifyOpts, verify.WithScanIndex(scanledger.NewRedisScanIndex(redisClient.Client)))
	}
	if publisher != nil {
		verifyOpts = append(verifyOpts, verify.WithPublisher(publisher))
	}
	verifier := verify.New(batches, ledger, log, verifyOpts...)

	var enqueuer batchhandler.Enqueuer
	if cfg.Redis.URL != "" {
		connOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
		if err != nil {
			log.Error("parse redis URL for queue", "error", err)
			os.Exit(1)
		}
		client := asynq.NewClient(connOpt)
		defer client.Close()
		enqueuer = asynqEnqueuer{client: client}
	}

	router := httptransport.NewRouter(httptransport.Deps{
		AdminToken:   cfg.AdminToken,
		Batches:      batchhandler.New(batches, enqueuer, log),
		Shipments:    shipmenthandler.New(shipments, log),
		Verify:       verifyhandler.New(verifier, log),
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting veritag server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func applySchemas(db *sql.DB) error {
	for _, schema := range []string{batch.Schema, shipment.Schema, scanledger.Schema} {
		if _, err := db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// asynqEnqueuer adapts the asynq client to the handler's Enqueuer interface.
type asynqEnqueuer struct {
	client *asynq.Client
}

func (e asynqEnqueuer) EnqueueIssue(ctx context.Context, payload queue.IssuePayload) (string, error) {
	return queue.EnqueueIssue(ctx, e.client, payload)
}
