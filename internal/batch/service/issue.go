package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"veritag/internal/batch"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/sentinel"
	"veritag/pkg/requestcontext"
)

// ProgressFunc reports bulk generation progress: generated codes out of total.
// Called from the issuing goroutine, roughly once per worker chunk.
type ProgressFunc func(generated, total int)

// IssueRequest carries the issuance command.
type IssueRequest struct {
	ProductType string
	Quantity    int
	Unit        string
	ProducedAt  time.Time
	ShelfLife   time.Duration
	// Progress is optional; nil means no progress reporting.
	Progress ProgressFunc
}

// IssueResult is the committed batch with its full code set.
type IssueResult struct {
	Batch *batch.Batch
	Codes []batch.Code
}

// Collisions from concurrent issuers are resolved by reserving a fresh
// sequence range, so more than a couple of retries means something is
// genuinely wrong.
const maxIssueAttempts = 3

// chunkSize is how many codes one worker generates between progress reports.
const chunkSize = 256

// IssueBatch issues a production batch and its identity codes. The whole
// operation is one logical transaction: if code generation is cancelled, the
// anchor store is unreachable, or the commit collides, nothing is persisted.
func (s *Service) IssueBatch(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	start := time.Now()
	result, err := s.issueBatch(ctx, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementIssueFailure()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveIssue(start, len(result.Codes))
	}
	s.logger.InfoContext(ctx, "batch issued",
		"batch_id", result.Batch.ID,
		"batch_number", result.Batch.BatchNumber,
		"product_type", result.Batch.ProductType,
		"codes", len(result.Codes),
		"anchor_ref", result.Batch.AnchorRef,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Service) issueBatch(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	policy, err := s.policies.Lookup(req.ProductType)
	if err != nil {
		return nil, err
	}
	codeCount := req.Quantity * policy.CodesPerUnit

	var lastErr error
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		result, err := s.issueAttempt(ctx, req, policy, codeCount)
		if err == nil {
			return result, nil
		}
		// Only a uniqueness collision is worth retrying with the next free
		// sequence range. Anything else propagates.
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) issueAttempt(ctx context.Context, req IssueRequest, policy batch.CodePolicy, codeCount int) (*IssueResult, error) {
	now := requestcontext.Now(ctx)
	day := req.ProducedAt.UTC().Format("20060102")

	// Serialize sequence allocation per (prefix, production date) so
	// concurrent issuers never mint the same code string.
	seqKey := policy.Prefix + ":" + day
	first, err := s.store.ReserveSequences(ctx, seqKey, codeCount)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reserve sequence range")
	}
	if first+codeCount-1 > domain.MaxSequence {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"sequence space for %s on %s cannot fit %d more codes", policy.Prefix, day, codeCount)
	}

	lot, err := s.store.ReserveSequences(ctx, "lot:"+seqKey, 1)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reserve lot number")
	}
	batchNumber := fmt.Sprintf("%s-%s-L%02d", policy.Prefix, day, lot)

	b, err := batch.NewBatch(domain.NewBatchID(), batchNumber, req.ProductType, req.Quantity, req.Unit, req.ProducedAt, req.ShelfLife, now)
	if err != nil {
		return nil, err
	}

	codes, err := s.generateCodes(ctx, b, policy, first, codeCount, req.Progress)
	if err != nil {
		return nil, err
	}

	// Anchor before commit. An anchored manifest for a batch that never
	// commits is harmless (content-addressed, append-only); a committed batch
	// without an anchor would be unverifiable.
	manifest := batch.BuildManifest(b, codes)
	hash, ref, err := s.anchorer.Anchor(ctx, manifest)
	if err != nil {
		return nil, anchorErr(err)
	}
	b.ManifestHash = hash
	b.AnchorRef = ref

	if err := ctx.Err(); err != nil {
		// Cancelled before commit: nothing persisted.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issuance cancelled")
	}

	if err := s.store.CreateBatch(ctx, b, codes); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "code or batch number collision")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist batch")
	}
	return &IssueResult{Batch: b, Codes: codes}, nil
}

// generateCodes builds the code set with bounded concurrency. Workers fill
// disjoint chunks of a pre-sized slice, so no locking is needed on the output.
func (s *Service) generateCodes(ctx context.Context, b *batch.Batch, policy batch.CodePolicy, first, count int, progress ProgressFunc) ([]batch.Code, error) {
	codes := make([]batch.Code, count)
	productionDate := b.ProducedAt.UTC().Truncate(24 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	done := make(chan int, (count/chunkSize)+1)
	for offset := 0; offset < count; offset += chunkSize {
		offset := offset
		end := offset + chunkSize
		if end > count {
			end = count
		}
		g.Go(func() error {
			for i := offset; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				c, err := domain.NewCode(policy.Prefix, first+i, productionDate)
				if err != nil {
					return err
				}
				codes[i] = batch.Code{
					Value:    c.String(),
					BatchID:  b.ID,
					Sequence: first + i,
					IssuedAt: b.CreatedAt,
					Status:   batch.CodeStatusActive,
				}
			}
			done <- end - offset
			return nil
		})
	}

	generated := 0
	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()
	for {
		select {
		case n := <-done:
			generated += n
			if progress != nil {
				progress(generated, count)
			}
		case err := <-waitErr:
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "code generation aborted")
			}
			// Drain any progress still queued.
			for {
				select {
				case n := <-done:
					generated += n
					if progress != nil {
						progress(generated, count)
					}
				default:
					return codes, nil
				}
			}
		}
	}
}
