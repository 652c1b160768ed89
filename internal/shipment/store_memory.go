package shipment

import (
	"context"
	"sync"

	"veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
)

// InMemoryStore is the development and test backend.
type InMemoryStore struct {
	mu        sync.RWMutex
	shipments map[domain.ShipmentID]*Shipment
	byBatch   map[domain.BatchID][]domain.ShipmentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		shipments: make(map[domain.ShipmentID]*Shipment),
		byBatch:   make(map[domain.BatchID][]domain.ShipmentID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sh *Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.shipments[sh.ID]; exists {
		return sentinel.ErrConflict
	}
	s.shipments[sh.ID] = copyShipment(sh)
	for _, bid := range sh.BatchIDs {
		s.byBatch[bid] = append(s.byBatch[bid], sh.ID)
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ShipmentID) (*Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shipments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyShipment(sh), nil
}

func (s *InMemoryStore) ListByBatch(_ context.Context, batchID domain.BatchID) ([]*Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byBatch[batchID]
	out := make([]*Shipment, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyShipment(s.shipments[id]))
	}
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, id domain.ShipmentID, validate func(*Shipment) error, mutate func(*Shipment) error) (*Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shipments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(sh); err != nil {
		return nil, err
	}
	staged := copyShipment(sh)
	if err := mutate(staged); err != nil {
		return nil, err
	}
	s.shipments[id] = staged
	return copyShipment(staged), nil
}

func copyShipment(sh *Shipment) *Shipment {
	cp := *sh
	cp.BatchIDs = append([]domain.BatchID(nil), sh.BatchIDs...)
	cp.Events = append([]TrackingEvent(nil), sh.Events...)
	if sh.ArrivedAt != nil {
		at := *sh.ArrivedAt
		cp.ArrivedAt = &at
	}
	return &cp
}

// InMemoryTxRunner serializes cross-store mutations with a single mutex. It
// cannot undo already-applied writes, so callers validate everything they are
// about to touch before mutating anything.
type InMemoryTxRunner struct {
	mu sync.Mutex
}

func NewInMemoryTxRunner() *InMemoryTxRunner { return &InMemoryTxRunner{} }

func (r *InMemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
