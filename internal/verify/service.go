package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veritag/internal/batch"
	"veritag/internal/scanledger"
	"veritag/internal/verify/metrics"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/requestcontext"
)

// CodeRegistry is the slice of the batch service verification needs.
type CodeRegistry interface {
	FindCode(ctx context.Context, code string) (*batch.Code, error)
	GetBatch(ctx context.Context, id domain.BatchID) (*batch.Batch, error)
	VerifyManifest(ctx context.Context, b *batch.Batch) (bool, error)
	ClaimFirstUse(ctx context.Context, code string, scannedAt time.Time) error
	RevokeCode(ctx context.Context, code string) error
}

// ScanIndex is a shared fast-path marker of scanned codes. Optional; the
// ledger plus the store's first-use claim stay authoritative without it.
type ScanIndex interface {
	IsScanned(ctx context.Context, code string) (bool, error)
	MarkScanned(ctx context.Context, code string, ttl time.Duration) error
}

// EventPublisher emits scan events for downstream consumers. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// ScanEvent is the published record of a resolved scan.
type ScanEvent struct {
	Code      string    `json:"code"`
	Verdict   string    `json:"verdict"`
	ScannedAt time.Time `json:"scanned_at"`
	Location  string    `json:"location,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	BatchNum  string    `json:"batch_number,omitempty"`
}

type Service struct {
	registry  CodeRegistry
	ledger    scanledger.Store
	index     ScanIndex
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithScanIndex(idx ScanIndex) Option {
	return func(s *Service) { s.index = idx }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(registry CodeRegistry, ledger scanledger.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		ledger:   ledger,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request is one scan to resolve.
type Request struct {
	Code     string
	Location string
	// ScannedAt defaults to the request time when zero.
	ScannedAt time.Time
}

// Verify resolves a scanned code to a verdict. Every syntactically plausible
// scan is recorded in the ledger whatever the outcome; only infrastructure
// failures (store, anchor) surface as errors.
func (s *Service) Verify(ctx context.Context, req Request) (*Verdict, error) {
	start := time.Now()
	if req.ScannedAt.IsZero() {
		req.ScannedAt = requestcontext.Now(ctx)
	}

	verdict, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	record := scanledger.ScanRecord{
		ID:        domain.NewScanID(),
		Code:      req.Code,
		ScannedAt: req.ScannedAt,
		Location:  req.Location,
		AgentID:   requestcontext.AgentID(ctx),
		Verdict:   string(verdict.Kind),
	}
	if err := s.ledger.Append(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "append scan record")
	}

	s.metrics.ObserveVerdict(string(verdict.Kind), start)
	s.publish(ctx, req, verdict)
	s.logger.InfoContext(ctx, "scan resolved",
		"code", req.Code,
		"verdict", string(verdict.Kind),
		"location", req.Location,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return verdict, nil
}

func (s *Service) resolve(ctx context.Context, req Request) (*Verdict, error) {
	verdict := &Verdict{Code: req.Code, ScannedAt: req.ScannedAt}

	// A string that fails the grammar is not a code at all: the scanner gets
	// a malformed_code error, not a verdict, and nothing is ledgered.
	if _, err := domain.ParseCode(req.Code); err != nil {
		return nil, err
	}

	code, err := s.registry.FindCode(ctx, req.Code)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			verdict.Kind = VerdictUnknownCode
			return verdict, nil
		}
		return nil, err
	}

	b, err := s.registry.GetBatch(ctx, code.BatchID)
	if err != nil {
		return nil, err
	}
	verdict.Batch = summarize(b)

	if code.Status == batch.CodeStatusExpired || b.Expired(req.ScannedAt) {
		verdict.Kind = VerdictExpired
		return verdict, nil
	}

	if code.Status == batch.CodeStatusRevoked {
		verdict.Kind = VerdictTampered
		return verdict, nil
	}

	intact, err := s.registry.VerifyManifest(ctx, b)
	if err != nil {
		return nil, err
	}
	if !intact {
		if err := s.registry.RevokeCode(ctx, req.Code); err != nil {
			s.logger.ErrorContext(ctx, "revoke after tamper detection failed",
				"code", req.Code, "error", err)
		}
		verdict.Kind = VerdictTampered
		return verdict, nil
	}

	// Shared fast path first, then the authoritative first-use claim. The
	// claim is a compare-and-swap in the store, so two racing scans of a
	// fresh code cannot both come back verified.
	if s.index != nil {
		seen, err := s.index.IsScanned(ctx, req.Code)
		if err != nil {
			s.logger.WarnContext(ctx, "scan index unavailable", "error", err)
		} else if seen {
			return s.duplicateVerdict(ctx, req, verdict)
		}
	}

	err = s.registry.ClaimFirstUse(ctx, req.Code, req.ScannedAt)
	switch {
	case err == nil:
		verdict.Kind = VerdictVerified
		s.markScanned(ctx, req.Code, b)
		return verdict, nil
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return s.duplicateVerdict(ctx, req, verdict)
	case errors.Is(err, sentinel.ErrInvalidState):
		// Lost a race with an expiry sweep or a revocation; re-read and
		// classify from the final state.
		code, ferr := s.registry.FindCode(ctx, req.Code)
		if ferr != nil {
			return nil, ferr
		}
		if code.Status == batch.CodeStatusRevoked {
			verdict.Kind = VerdictTampered
		} else {
			verdict.Kind = VerdictExpired
		}
		return verdict, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "claim first use")
	}
}

func (s *Service) duplicateVerdict(ctx context.Context, req Request, verdict *Verdict) (*Verdict, error) {
	verdict.Kind = VerdictDuplicateScan
	records, err := s.ledger.ListByCode(ctx, req.Code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "prior scan lookup")
	}
	for i := range records {
		if records[i].Verdict == string(VerdictVerified) {
			at := records[i].ScannedAt
			verdict.FirstScannedAt = &at
			verdict.FirstLocation = records[i].Location
			break
		}
	}
	return verdict, nil
}

func (s *Service) markScanned(ctx context.Context, code string, b *batch.Batch) {
	if s.index == nil {
		return
	}
	ttl := time.Until(b.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.index.MarkScanned(ctx, code, ttl); err != nil {
		s.logger.WarnContext(ctx, "scan index write failed", "code", code, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, req Request, verdict *Verdict) {
	if s.publisher == nil {
		return
	}
	event := ScanEvent{
		Code:      req.Code,
		Verdict:   string(verdict.Kind),
		ScannedAt: req.ScannedAt,
		Location:  req.Location,
		AgentID:   requestcontext.AgentID(ctx),
	}
	if verdict.Batch != nil {
		event.BatchNum = verdict.Batch.BatchNumber
	}
	if err := s.publisher.Publish(ctx, req.Code, event); err != nil {
		s.logger.WarnContext(ctx, "scan event publish failed", "code", req.Code, "error", err)
	}
}

// History returns every recorded scan of a code in append order.
func (s *Service) History(ctx context.Context, code string) ([]scanledger.ScanRecord, error) {
	records, err := s.ledger.ListByCode(ctx, code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list scans")
	}
	return records, nil
}
