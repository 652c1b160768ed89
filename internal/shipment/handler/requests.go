package handler

import (
	"strings"
	"time"

	"veritag/internal/shipment"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /shipments.
type CreateRequest struct {
	BatchIDs         []string  `json:"batch_ids"`
	Origin           string    `json:"origin"`
	Destination      string    `json:"destination"`
	DepartedAt       time.Time `json:"departed_at"`
	EstimatedArrival time.Time `json:"estimated_arrival"`

	parsedBatchIDs []domain.BatchID
}

// Validate parses and validates the creation request.
func (r *CreateRequest) Validate() error {
	if len(r.BatchIDs) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "batch_ids is required")
	}
	r.parsedBatchIDs = make([]domain.BatchID, 0, len(r.BatchIDs))
	for _, raw := range r.BatchIDs {
		id, err := domain.ParseBatchID(raw)
		if err != nil {
			return err
		}
		r.parsedBatchIDs = append(r.parsedBatchIDs, id)
	}
	r.Origin = strings.TrimSpace(r.Origin)
	if r.Origin == "" {
		return dErrors.New(dErrors.CodeBadRequest, "origin is required")
	}
	r.Destination = strings.TrimSpace(r.Destination)
	if r.Destination == "" {
		return dErrors.New(dErrors.CodeBadRequest, "destination is required")
	}
	if r.DepartedAt.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "departed_at is required")
	}
	return nil
}

// ParsedBatchIDs returns the validated batch identifiers.
func (r *CreateRequest) ParsedBatchIDs() []domain.BatchID {
	return r.parsedBatchIDs
}

// TransitionRequest is the HTTP request body for POST /shipments/{shipmentID}/status.
type TransitionRequest struct {
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
	Location string    `json:"location"`
	Note     string    `json:"note"`

	parsedStatus shipment.Status
}

// Validate parses the target status. A zero At is filled in from the request
// clock by the service.
func (r *TransitionRequest) Validate() error {
	status, err := shipment.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	r.Location = strings.TrimSpace(r.Location)
	return nil
}

// ParsedStatus returns the validated target status.
func (r *TransitionRequest) ParsedStatus() shipment.Status {
	return r.parsedStatus
}
