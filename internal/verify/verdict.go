// Package verify resolves scanned codes to verdicts. A verdict is data, not
// an error: every scan of a syntactically plausible code gets a closed
// answer, and every attempt lands in the scan ledger regardless of outcome.
package verify

import (
	"time"

	"veritag/internal/batch"
)

// VerdictKind is the closed set of verification outcomes.
type VerdictKind string

const (
	// VerdictVerified is the first valid use of an active code.
	VerdictVerified VerdictKind = "verified"
	// VerdictExpired means the code's batch is past shelf life, or the code
	// was already swept to expired.
	VerdictExpired VerdictKind = "expired"
	// VerdictTampered means the batch manifest no longer matches its anchored
	// hash, or the code was revoked after an earlier tamper detection.
	VerdictTampered VerdictKind = "tampered"
	// VerdictDuplicateScan is any scan after the first valid use. The code
	// stays scanned; the repeat is recorded as suspicious, not punished.
	VerdictDuplicateScan VerdictKind = "duplicate_scan"
	// VerdictUnknownCode means the code is well-formed but was never issued.
	VerdictUnknownCode VerdictKind = "unknown_code"
)

// Verdict is the resolved outcome of one scan, with enough batch context for
// a consumer-facing display.
type Verdict struct {
	Kind      VerdictKind
	Code      string
	ScannedAt time.Time

	// Batch is set for every verdict that resolved to an issued code.
	Batch *BatchSummary

	// FirstScannedAt is set on duplicate verdicts: when the first valid use
	// happened.
	FirstScannedAt *time.Time
	// FirstLocation is where the first valid use happened, when known.
	FirstLocation string
}

// BatchSummary is the slice of batch state a verdict carries.
type BatchSummary struct {
	BatchNumber string
	ProductType string
	ProducedAt  time.Time
	ExpiresAt   time.Time
	Status      batch.Status
}

func summarize(b *batch.Batch) *BatchSummary {
	return &BatchSummary{
		BatchNumber: b.BatchNumber,
		ProductType: b.ProductType,
		ProducedAt:  b.ProducedAt,
		ExpiresAt:   b.ExpiresAt,
		Status:      b.Status,
	}
}
