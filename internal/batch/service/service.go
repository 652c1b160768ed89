package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veritag/internal/anchor"
	"veritag/internal/batch"
	batchmetrics "veritag/internal/batch/metrics"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/requestcontext"
)

// Service orchestrates batch issuance and custody transitions. Issuance is
// all-or-nothing: code generation, registry-wide uniqueness, and anchoring
// either all succeed or nothing is persisted.
type Service struct {
	store    batch.Store
	anchorer anchor.Anchorer
	policies *batch.PolicyTable
	logger   *slog.Logger
	metrics  *batchmetrics.Metrics
	workers  int
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *batchmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWorkers bounds the concurrency of bulk code generation.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPolicies replaces the default codes-per-unit policy table.
func WithPolicies(t *batch.PolicyTable) Option {
	return func(s *Service) { s.policies = t }
}

// New constructs the batch registry service.
func New(store batch.Store, anchorer anchor.Anchorer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		anchorer: anchorer,
		policies: batch.DefaultPolicies(),
		logger:   logger,
		workers:  8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, id domain.BatchID) (*batch.Batch, error) {
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "batch")
	}
	return b, nil
}

// ListCodes returns all codes of a batch in sequence order.
func (s *Service) ListCodes(ctx context.Context, id domain.BatchID) ([]batch.Code, error) {
	codes, err := s.store.ListCodes(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "batch")
	}
	return codes, nil
}

// FindCode resolves a single code record. Used by the verification service.
func (s *Service) FindCode(ctx context.Context, code string) (*batch.Code, error) {
	c, err := s.store.FindCode(ctx, code)
	if err != nil {
		return nil, translateStoreErr(err, "code")
	}
	return c, nil
}

// AdvanceBatchStatus moves a batch one step along its custody path. The
// validate-then-mutate pair runs under the store's entity lock, so a
// concurrent transition cannot slip between check and write.
func (s *Service) AdvanceBatchStatus(ctx context.Context, id domain.BatchID, target batch.Status) (*batch.Batch, error) {
	now := requestcontext.Now(ctx)
	b, err := s.store.Execute(ctx, id,
		func(b *batch.Batch) error {
			return b.CanAdvanceTo(target)
		},
		func(b *batch.Batch) {
			b.ApplyStatus(target, now)
		},
	)
	if err != nil {
		return nil, translateStoreErr(err, "batch")
	}

	s.logger.InfoContext(ctx, "batch status advanced",
		"batch_id", b.ID,
		"batch_number", b.BatchNumber,
		"status", b.Status,
	)
	return b, nil
}

// ClaimFirstUse flips a code active→scanned exactly once. Exposed for the
// verification service, which owns the scanned transition.
func (s *Service) ClaimFirstUse(ctx context.Context, code string, scannedAt time.Time) error {
	return s.store.ClaimFirstUse(ctx, code, scannedAt)
}

// RevokeCode marks a code revoked after detected tampering.
func (s *Service) RevokeCode(ctx context.Context, code string) error {
	if err := s.store.RevokeCode(ctx, code); err != nil {
		return translateStoreErr(err, "code")
	}
	return nil
}

// ExpireCodes flips active codes of past-shelf-life batches to expired.
// Invoked by the background worker on a schedule.
func (s *Service) ExpireCodes(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.ExpireCodes(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "expire codes")
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired codes", "count", n)
	}
	return n, nil
}

// VerifyManifest recomputes the batch manifest from stored state and checks
// it against the anchored value. Returns false when either the local
// recomputation or the anchor disagrees: the batch has been tampered with.
func (s *Service) VerifyManifest(ctx context.Context, b *batch.Batch) (bool, error) {
	codes, err := s.store.ListCodes(ctx, b.ID)
	if err != nil {
		return false, translateStoreErr(err, "batch")
	}
	recomputed := batch.HashManifest(batch.BuildManifest(b, codes))
	if recomputed != b.ManifestHash {
		return false, nil
	}
	ok, err := s.anchorer.Verify(ctx, b.ManifestHash, b.AnchorRef)
	if err != nil {
		return false, anchorErr(err)
	}
	return ok, nil
}

func translateStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "%s not found", entity)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Newf(dErrors.CodeConflict, "%s already exists", entity)
	default:
		if de := new(dErrors.Error); errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "store failure")
	}
}

func anchorErr(err error) error {
	if dErrors.HasCode(err, dErrors.CodeAnchorUnavailable) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeAnchorUnavailable, "anchor store failure")
}
