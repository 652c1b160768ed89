// Package batch owns the Batch and Code entities: issuing a production lot
// with its unit-level identity codes, and moving the lot through its custody
// states. All status legality lives here, next to the types, so no caller can
// invent a transition.
package batch

import (
	"strings"
	"time"

	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
)

// Status is the custody state of a batch. Transitions are strictly linear.
type Status string

const (
	StatusFactory     Status = "factory"
	StatusInTransit   Status = "in_transit"
	StatusAtWarehouse Status = "at_warehouse"
	StatusDistributed Status = "distributed"
)

// next holds the single legal successor of each state.
var next = map[Status]Status{
	StatusFactory:     StatusInTransit,
	StatusInTransit:   StatusAtWarehouse,
	StatusAtWarehouse: StatusDistributed,
}

// Next returns the single legal successor of a status, if any. Distributed is
// terminal.
func Next(s Status) (Status, bool) {
	n, ok := next[s]
	return n, ok
}

// ParseStatus validates a status string from untrusted input.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusFactory, StatusInTransit, StatusAtWarehouse, StatusDistributed:
		return Status(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown batch status %q", s)
}

// CodeStatus is the lifecycle state of a single identity code.
type CodeStatus string

const (
	CodeStatusActive  CodeStatus = "active"
	CodeStatusScanned CodeStatus = "scanned"
	CodeStatusExpired CodeStatus = "expired"
	CodeStatusRevoked CodeStatus = "revoked"
)

// Batch is one produced lot of a single product type. Never deleted; its
// status is the only thing that moves.
type Batch struct {
	ID           domain.BatchID
	BatchNumber  string
	ProductType  string
	Quantity     int
	Unit         string
	ProducedAt   time.Time
	ExpiresAt    time.Time
	Status       Status
	ManifestHash string
	AnchorRef    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewBatch validates issuance input and returns a batch in the Factory state.
// The manifest hash and anchor reference are filled in by the issuer once the
// code set exists.
func NewBatch(id domain.BatchID, batchNumber, productType string, quantity int, unit string, producedAt time.Time, shelfLife time.Duration, now time.Time) (*Batch, error) {
	productType = strings.TrimSpace(productType)
	if productType == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "product type is required")
	}
	if quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "quantity must be positive")
	}
	if strings.TrimSpace(unit) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unit is required")
	}
	if shelfLife <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "shelf life must be positive")
	}
	return &Batch{
		ID:          id,
		BatchNumber: batchNumber,
		ProductType: productType,
		Quantity:    quantity,
		Unit:        unit,
		ProducedAt:  producedAt,
		ExpiresAt:   producedAt.Add(shelfLife),
		Status:      StatusFactory,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanAdvanceTo checks transition legality without mutating. Each state has
// exactly one successor; anything else is an illegal transition.
func (b *Batch) CanAdvanceTo(target Status) error {
	if next[b.Status] == target {
		return nil
	}
	return dErrors.Newf(dErrors.CodeIllegalTransition,
		"batch %s cannot move from %s to %s", b.BatchNumber, b.Status, target)
}

// ApplyStatus records a transition already validated by CanAdvanceTo.
func (b *Batch) ApplyStatus(target Status, now time.Time) {
	b.Status = target
	b.UpdatedAt = now
}

// Expired reports whether the batch shelf life has passed at the given time.
// The boundary is inclusive: a scan at exactly ExpiresAt is still valid.
func (b *Batch) Expired(at time.Time) bool {
	return at.After(b.ExpiresAt)
}

// Code is one scannable unit-level identifier belonging to exactly one batch.
type Code struct {
	Value     string
	BatchID   domain.BatchID
	Sequence  int
	IssuedAt  time.Time
	Status    CodeStatus
	ScannedAt *time.Time
}
