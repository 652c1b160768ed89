// Package service implements shipment custody operations: creation, status
// transitions with tracking history, and the completion reconciliation that
// moves every carried batch to distributed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veritag/internal/batch"
	"veritag/internal/shipment"
	"veritag/internal/shipment/metrics"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/requestcontext"
)

// BatchCustody is the slice of the batch service a shipment needs: existence
// checks at creation and stepwise advancement at completion.
type BatchCustody interface {
	GetBatch(ctx context.Context, id domain.BatchID) (*batch.Batch, error)
	AdvanceBatchStatus(ctx context.Context, id domain.BatchID, target batch.Status) (*batch.Batch, error)
}

type Service struct {
	store   shipment.Store
	batches BatchCustody
	tx      shipment.TxRunner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner swaps the transactional boundary used for completion. The
// postgres deployment injects a runner that opens one SQL transaction shared
// by the shipment and batch stores.
func WithTxRunner(tx shipment.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func New(store shipment.Store, batches BatchCustody, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		batches: batches,
		tx:      shipment.NewInMemoryTxRunner(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries validated-at-the-edge creation input.
type CreateRequest struct {
	BatchIDs         []domain.BatchID
	Origin           string
	Destination      string
	DepartedAt       time.Time
	EstimatedArrival time.Time
}

// CreateShipment registers a new custody transfer. Every referenced batch
// must exist and must not already be distributed.
func (s *Service) CreateShipment(ctx context.Context, req CreateRequest) (*shipment.Shipment, error) {
	now := requestcontext.Now(ctx)
	sh, err := shipment.NewShipment(domain.NewShipmentID(), req.BatchIDs, req.Origin, req.Destination,
		req.DepartedAt, req.EstimatedArrival, now)
	if err != nil {
		return nil, err
	}
	// Referencing an unknown or already-distributed batch is bad creation
	// input, not a lookup miss on the shipment surface.
	for _, bid := range req.BatchIDs {
		b, err := s.batches.GetBatch(ctx, bid)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.Newf(dErrors.CodeBadRequest, "batch %s does not exist", bid)
			}
			return nil, err
		}
		if b.Status == batch.StatusDistributed {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "batch %s is already distributed", bid)
		}
	}
	if err := s.store.Create(ctx, sh); err != nil {
		return nil, translateStoreErr(err)
	}
	s.metrics.IncrementCreated()
	s.logger.InfoContext(ctx, "shipment created",
		"shipment_id", sh.ID.String(),
		"batches", len(sh.BatchIDs),
		"origin", sh.Origin,
		"destination", sh.Destination,
	)
	return sh, nil
}

func (s *Service) GetShipment(ctx context.Context, id domain.ShipmentID) (*shipment.Shipment, error) {
	sh, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return sh, nil
}

func (s *Service) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*shipment.Shipment, error) {
	out, err := s.store.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return out, nil
}

// TransitionRequest describes one observed custody event.
type TransitionRequest struct {
	Target   shipment.Status
	At       time.Time
	Location string
	Note     string
}

// AdvanceShipmentStatus applies one transition and appends its tracking
// event. A transition to Completed also reconciles every carried batch to
// distributed; the reconciliation and the shipment transition share one
// transactional boundary, so a batch failure leaves the shipment untouched.
func (s *Service) AdvanceShipmentStatus(ctx context.Context, id domain.ShipmentID, req TransitionRequest) (*shipment.Shipment, error) {
	if req.At.IsZero() {
		req.At = requestcontext.Now(ctx)
	}

	var out *shipment.Shipment
	apply := func(ctx context.Context) error {
		sh, err := s.store.Execute(ctx, id,
			func(sh *shipment.Shipment) error { return sh.CanAdvanceTo(req.Target) },
			func(sh *shipment.Shipment) error { return sh.Apply(req.Target, req.At, req.Location, req.Note) },
		)
		if err != nil {
			return translateStoreErr(err)
		}
		if req.Target == shipment.StatusCompleted {
			if err := s.reconcileBatches(ctx, sh); err != nil {
				return err
			}
		}
		out = sh
		return nil
	}

	var err error
	if req.Target == shipment.StatusCompleted {
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			// Validate before any write: the in-memory runner cannot
			// roll back.
			sh, err := s.store.FindByID(txCtx, id)
			if err != nil {
				return translateStoreErr(err)
			}
			if err := sh.CanAdvanceTo(req.Target); err != nil {
				return err
			}
			for _, bid := range sh.BatchIDs {
				if _, err := s.batches.GetBatch(txCtx, bid); err != nil {
					return err
				}
			}
			return apply(txCtx)
		})
	} else {
		err = apply(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(req.Target))
	s.logger.InfoContext(ctx, "shipment transitioned",
		"shipment_id", id.String(),
		"status", string(req.Target),
		"location", req.Location,
	)
	return out, nil
}

// reconcileBatches walks each carried batch forward to distributed. A batch
// that is already distributed is left alone, which makes completion retries
// idempotent at the batch level.
func (s *Service) reconcileBatches(ctx context.Context, sh *shipment.Shipment) error {
	for _, bid := range sh.BatchIDs {
		b, err := s.batches.GetBatch(ctx, bid)
		if err != nil {
			return err
		}
		for b.Status != batch.StatusDistributed {
			target, ok := batch.Next(b.Status)
			if !ok {
				return dErrors.Newf(dErrors.CodeInternal, "batch %s stuck in %s", bid, b.Status)
			}
			if b, err = s.batches.AdvanceBatchStatus(ctx, bid, target); err != nil {
				return err
			}
		}
		s.metrics.IncrementDelivered()
	}
	return nil
}

func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "shipment not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "shipment already exists")
	default:
		var dErr *dErrors.Error
		if errors.As(err, &dErr) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "shipment store failure")
	}
}
