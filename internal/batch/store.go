package batch

import (
	"context"
	"time"

	"veritag/pkg/domain"
)

// Store persists batches and their codes. Implementations return sentinel
// errors (pkg/platform/sentinel) for factual states; services translate them
// into coded domain errors.
type Store interface {
	// ReserveSequences atomically reserves n sequence numbers in the
	// (prefix, production date) namespace identified by key, returning the
	// first reserved number. Concurrent issuers for the same key serialize
	// here, which is what keeps code strings unique without retries in the
	// common case.
	ReserveSequences(ctx context.Context, key string, n int) (first int, err error)

	// CreateBatch persists a batch together with its full code set, all or
	// nothing. Returns sentinel.ErrConflict if any code string or the batch
	// number already exists; nothing is persisted in that case.
	CreateBatch(ctx context.Context, b *Batch, codes []Code) error

	// FindByID returns the batch or sentinel.ErrNotFound.
	FindByID(ctx context.Context, id domain.BatchID) (*Batch, error)

	// FindCode returns the code record or sentinel.ErrNotFound.
	FindCode(ctx context.Context, code string) (*Code, error)

	// ListCodes returns the batch's codes in sequence order.
	ListCodes(ctx context.Context, id domain.BatchID) ([]Code, error)

	// Execute atomically runs validate then mutate on the batch while holding
	// the entity lock (mutex in memory, row lock in postgres), so a custody
	// transition cannot race another writer.
	Execute(ctx context.Context, id domain.BatchID, validate func(*Batch) error, mutate func(*Batch)) (*Batch, error)

	// ClaimFirstUse flips a code from active to scanned if and only if it is
	// still active: the at-most-once guarantee for first valid use. Returns
	// sentinel.ErrAlreadyUsed if the code is already scanned,
	// sentinel.ErrInvalidState if it is revoked or expired, and
	// sentinel.ErrNotFound if it does not exist.
	ClaimFirstUse(ctx context.Context, code string, scannedAt time.Time) error

	// RevokeCode marks a code revoked regardless of its current state. Used
	// when verification detects tampering.
	RevokeCode(ctx context.Context, code string) error

	// ExpireCodes marks all still-active codes of batches whose shelf life
	// has passed at now as expired, returning how many were flipped.
	ExpireCodes(ctx context.Context, now time.Time) (int, error)
}
