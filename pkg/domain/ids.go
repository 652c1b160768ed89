// Package domain holds domain primitives shared across modules: typed entity
// identifiers and the scannable Code primitive. Validity is enforced at parse
// time so invalid values cannot travel further into the system.
package domain

import (
	"github.com/google/uuid"

	dErrors "veritag/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types prevent a shipment ID from being
// passed where a batch ID is expected; the compiler enforces it.
type (
	BatchID    uuid.UUID
	ShipmentID uuid.UUID
	ScanID     uuid.UUID
)

func (id BatchID) String() string    { return uuid.UUID(id).String() }
func (id ShipmentID) String() string { return uuid.UUID(id).String() }
func (id ScanID) String() string     { return uuid.UUID(id).String() }

func (id BatchID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ShipmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ScanID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewBatchID allocates a fresh batch identifier.
func NewBatchID() BatchID { return BatchID(uuid.New()) }

// NewShipmentID allocates a fresh shipment identifier.
func NewShipmentID() ShipmentID { return ShipmentID(uuid.New()) }

// NewScanID allocates a fresh scan record identifier.
func NewScanID() ScanID { return ScanID(uuid.New()) }

// ParseBatchID validates and returns a BatchID from its string form.
func ParseBatchID(s string) (BatchID, error) {
	u, err := parseID(s)
	return BatchID(u), err
}

// ParseShipmentID validates and returns a ShipmentID from its string form.
func ParseShipmentID(s string) (ShipmentID, error) {
	u, err := parseID(s)
	return ShipmentID(u), err
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "identifier is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "identifier is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "identifier must not be the nil UUID")
	}
	return u, nil
}
