// Package scanledger owns the append-only record of verification attempts.
// It is both the audit trail of every scan and the input to duplicate and
// replay detection. Records are never mutated or deleted; a correction is a
// new record referencing the one it corrects.
package scanledger

import (
	"time"

	"veritag/pkg/domain"
)

// ScanRecord captures one verification attempt, whatever its outcome.
type ScanRecord struct {
	ID        domain.ScanID
	Code      string
	ScannedAt time.Time
	Location  string
	AgentID   string
	// Verdict is the resolved verification outcome label
	// (verified, expired, tampered, duplicate_scan, unknown_code).
	Verdict string
	// Corrects references an earlier record this one amends. Corrections are
	// modeled as new records, never as mutation of the original.
	Corrects *domain.ScanID
}
