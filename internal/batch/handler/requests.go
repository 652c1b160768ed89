package handler

import (
	"strings"
	"time"

	"veritag/internal/batch"
	dErrors "veritag/pkg/domain-errors"
)

// IssueRequest is the HTTP request body for POST /batches.
type IssueRequest struct {
	ProductType   string    `json:"product_type"`
	Quantity      int       `json:"quantity"`
	Unit          string    `json:"unit"`
	ProducedAt    time.Time `json:"produced_at"`
	ShelfLifeDays int       `json:"shelf_life_days"`
}

// Validate validates the issuance request. Policy lookup and quantity bounds
// stay with the service; this catches what is wrong before any store call.
func (r *IssueRequest) Validate() error {
	r.ProductType = strings.ToLower(strings.TrimSpace(r.ProductType))
	if r.ProductType == "" {
		return dErrors.New(dErrors.CodeBadRequest, "product_type is required")
	}
	if r.Quantity <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "quantity must be positive")
	}
	r.Unit = strings.TrimSpace(r.Unit)
	if r.Unit == "" {
		return dErrors.New(dErrors.CodeBadRequest, "unit is required")
	}
	if r.ProducedAt.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "produced_at is required")
	}
	if r.ShelfLifeDays <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "shelf_life_days must be positive")
	}
	return nil
}

// ShelfLife converts the validated day count to a duration.
func (r *IssueRequest) ShelfLife() time.Duration {
	return time.Duration(r.ShelfLifeDays) * 24 * time.Hour
}

// AdvanceRequest is the HTTP request body for POST /batches/{batchID}/status.
type AdvanceRequest struct {
	Status string `json:"status"`

	parsedStatus batch.Status
}

// Validate parses the target status.
func (r *AdvanceRequest) Validate() error {
	status, err := batch.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *AdvanceRequest) ParsedStatus() batch.Status {
	return r.parsedStatus
}
