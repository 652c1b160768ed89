package shipment

import (
	"context"

	"veritag/pkg/domain"
)

// Store persists shipments and their tracking history.
//
// Execute runs validate, then mutate while holding whatever exclusivity the
// backend provides for the shipment row. If validate fails the shipment is
// untouched and the error is returned as-is.
type Store interface {
	Create(ctx context.Context, s *Shipment) error
	FindByID(ctx context.Context, id domain.ShipmentID) (*Shipment, error)
	ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*Shipment, error)
	Execute(ctx context.Context, id domain.ShipmentID, validate func(*Shipment) error, mutate func(*Shipment) error) (*Shipment, error)
}

// TxRunner brackets a multi-store mutation in one transactional boundary.
// The postgres runner opens a real transaction and stores it in ctx so both
// the shipment store and the batch store join it; the in-memory runner
// serializes callers so validate-then-mutate sequences stay consistent.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
