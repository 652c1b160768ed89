package handler

import (
	"time"

	"veritag/internal/scanledger"
	"veritag/internal/verify"
)

// VerdictResponse is the HTTP response for POST /verify.
type VerdictResponse struct {
	Verdict        string         `json:"verdict"`
	Code           string         `json:"code"`
	ScannedAt      time.Time      `json:"scanned_at"`
	Batch          *BatchSummary  `json:"batch,omitempty"`
	FirstScannedAt *time.Time     `json:"first_scanned_at,omitempty"`
	FirstLocation  string         `json:"first_location,omitempty"`
}

// BatchSummary is the batch context carried by a verdict.
type BatchSummary struct {
	BatchNumber string    `json:"batch_number"`
	ProductType string    `json:"product_type"`
	ProducedAt  time.Time `json:"produced_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Status      string    `json:"status"`
}

// FromVerdict converts a domain verdict to its HTTP representation.
func FromVerdict(v *verify.Verdict) *VerdictResponse {
	resp := &VerdictResponse{
		Verdict:        string(v.Kind),
		Code:           v.Code,
		ScannedAt:      v.ScannedAt,
		FirstScannedAt: v.FirstScannedAt,
		FirstLocation:  v.FirstLocation,
	}
	if v.Batch != nil {
		resp.Batch = &BatchSummary{
			BatchNumber: v.Batch.BatchNumber,
			ProductType: v.Batch.ProductType,
			ProducedAt:  v.Batch.ProducedAt,
			ExpiresAt:   v.Batch.ExpiresAt,
			Status:      string(v.Batch.Status),
		}
	}
	return resp
}

// ScanResponse is one ledger record in the scan history response.
type ScanResponse struct {
	ID        string    `json:"id"`
	ScannedAt time.Time `json:"scanned_at"`
	Location  string    `json:"location,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Verdict   string    `json:"verdict"`
}

// FromRecords converts ledger records to their HTTP representation.
func FromRecords(records []scanledger.ScanRecord) []ScanResponse {
	out := make([]ScanResponse, 0, len(records))
	for i := range records {
		out = append(out, ScanResponse{
			ID:        records[i].ID.String(),
			ScannedAt: records[i].ScannedAt,
			Location:  records[i].Location,
			AgentID:   records[i].AgentID,
			Verdict:   records[i].Verdict,
		})
	}
	return out
}
