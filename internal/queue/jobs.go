// Package queue defines the background jobs shared by the API server (which
// enqueues) and the worker (which processes). Large issuance runs go through
// here so the HTTP request returns immediately.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// IssueBatchTask generates and anchors a full batch of codes.
	IssueBatchTask = "batch:issue"
)

// IssuePayload carries everything the worker needs to run an issuance.
type IssuePayload struct {
	ProductType   string    `json:"product_type"`
	Quantity      int       `json:"quantity"`
	Unit          string    `json:"unit"`
	ProducedAt    time.Time `json:"produced_at"`
	ShelfLifeDays int       `json:"shelf_life_days"`
}

// EnqueueIssue schedules a background issuance and returns the task ID so the
// caller can correlate worker logs with the originating request.
func EnqueueIssue(ctx context.Context, client *asynq.Client, payload IssuePayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(IssueBatchTask, data)
	info, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
	if err != nil {
		return "", fmt.Errorf("enqueue issue task: %w", err)
	}
	return info.ID, nil
}
