package handler

import (
	"time"

	"veritag/internal/batch"
	batchservice "veritag/internal/batch/service"
)

// BatchResponse is the HTTP representation of a batch.
type BatchResponse struct {
	ID           string    `json:"id"`
	BatchNumber  string    `json:"batch_number"`
	ProductType  string    `json:"product_type"`
	Quantity     int       `json:"quantity"`
	Unit         string    `json:"unit"`
	ProducedAt   time.Time `json:"produced_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Status       string    `json:"status"`
	ManifestHash string    `json:"manifest_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FromBatch converts a domain batch to its HTTP representation.
func FromBatch(b *batch.Batch) *BatchResponse {
	return &BatchResponse{
		ID:           b.ID.String(),
		BatchNumber:  b.BatchNumber,
		ProductType:  b.ProductType,
		Quantity:     b.Quantity,
		Unit:         b.Unit,
		ProducedAt:   b.ProducedAt,
		ExpiresAt:    b.ExpiresAt,
		Status:       string(b.Status),
		ManifestHash: b.ManifestHash,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// CodeResponse is the HTTP representation of one issued code.
type CodeResponse struct {
	Code      string     `json:"code"`
	Sequence  int        `json:"sequence"`
	Status    string     `json:"status"`
	IssuedAt  time.Time  `json:"issued_at"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
}

// FromCodes converts issued codes to their HTTP representation.
func FromCodes(codes []batch.Code) []CodeResponse {
	out := make([]CodeResponse, 0, len(codes))
	for i := range codes {
		out = append(out, CodeResponse{
			Code:      codes[i].Value,
			Sequence:  codes[i].Sequence,
			Status:    string(codes[i].Status),
			IssuedAt:  codes[i].IssuedAt,
			ScannedAt: codes[i].ScannedAt,
		})
	}
	return out
}

// IssueResponse is the HTTP response for POST /batches.
type IssueResponse struct {
	Batch *BatchResponse `json:"batch"`
	Codes []CodeResponse `json:"codes"`
}

// FromIssueResult converts an issuance result to its HTTP representation.
func FromIssueResult(res *batchservice.IssueResult) *IssueResponse {
	return &IssueResponse{
		Batch: FromBatch(res.Batch),
		Codes: FromCodes(res.Codes),
	}
}

// JobResponse is the HTTP response for POST /batches/jobs.
type JobResponse struct {
	TaskID string `json:"task_id"`
}
