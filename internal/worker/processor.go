// Package worker processes background jobs: queued issuance runs and the
// periodic expiry sweep.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	batchservice "veritag/internal/batch/service"
	"veritag/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	batches *batchservice.Service
	logger  *slog.Logger
}

func NewProcessor(batches *batchservice.Service, logger *slog.Logger) *Processor {
	return &Processor{batches: batches, logger: logger}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.IssueBatchTask, p.handleIssue)
	return mux
}

func (p *Processor) handleIssue(ctx context.Context, task *asynq.Task) error {
	var payload queue.IssuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	start := time.Now()
	res, err := p.batches.IssueBatch(ctx, batchservice.IssueRequest{
		ProductType: payload.ProductType,
		Quantity:    payload.Quantity,
		Unit:        payload.Unit,
		ProducedAt:  payload.ProducedAt,
		ShelfLife:   time.Duration(payload.ShelfLifeDays) * 24 * time.Hour,
		Progress: func(generated, total int) {
			if generated%1000 == 0 || generated == total {
				p.logger.DebugContext(ctx, "issuance progress",
					"generated", generated, "total", total)
			}
		},
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "queued issuance failed",
			"product_type", payload.ProductType,
			"quantity", payload.Quantity,
			"error", err,
		)
		return err
	}

	p.logger.InfoContext(ctx, "queued issuance completed",
		"batch_id", res.Batch.ID.String(),
		"batch_number", res.Batch.BatchNumber,
		"codes", len(res.Codes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// RunExpirySweep flips codes of past-shelf-life batches to expired on a fixed
// interval until ctx is cancelled.
func (p *Processor) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.batches.ExpireCodes(ctx, time.Now()); err != nil {
				p.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}
