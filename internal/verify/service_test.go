package verify_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritag/internal/anchor"
	"veritag/internal/batch"
	batchservice "veritag/internal/batch/service"
	"veritag/internal/scanledger"
	"veritag/internal/verify"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/requestcontext"
)

type VerifySuite struct {
	suite.Suite
	ctx      context.Context
	store    *batch.InMemoryStore
	anchorer *anchor.InMemory
	registry *batchservice.Service
	ledger   *scanledger.InMemoryStore
	svc      *verify.Service
	now      time.Time
}

func TestVerifySuite(t *testing.T) {
	suite.Run(t, new(VerifySuite))
}

func (s *VerifySuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.store = batch.NewInMemoryStore()
	s.anchorer = anchor.NewInMemory()
	s.registry = batchservice.New(s.store, s.anchorer, logger)
	s.ledger = scanledger.NewInMemoryStore()
	s.svc = verify.New(s.registry, s.ledger, logger)
}

// issue creates a real anchored batch and returns it with its codes.
func (s *VerifySuite) issue(shelfLife time.Duration) *batchservice.IssueResult {
	res, err := s.registry.IssueBatch(s.ctx, batchservice.IssueRequest{
		ProductType: "urea",
		Quantity:    3,
		Unit:        "bag",
		ProducedAt:  s.now.Add(-24 * time.Hour),
		ShelfLife:   shelfLife,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(res.Codes)
	return res
}

func (s *VerifySuite) scan(code string, at time.Time) *verify.Verdict {
	v, err := s.svc.Verify(s.ctx, verify.Request{Code: code, Location: "market-7", ScannedAt: at})
	s.Require().NoError(err)
	return v
}

func (s *VerifySuite) TestMalformedCodeFails() {
	v, err := s.svc.Verify(s.ctx, verify.Request{Code: "not-a-code", ScannedAt: s.now})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMalformedCode))
	s.Nil(v)

	// A string that never parsed is not a scan: nothing is ledgered.
	records, err := s.ledger.ListByCode(s.ctx, "not-a-code")
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *VerifySuite) TestNeverIssuedCodeIsUnknown() {
	v := s.scan("UP-0042-20260301", s.now)
	s.Equal(verify.VerdictUnknownCode, v.Kind)
}

func (s *VerifySuite) TestFirstUseIsVerified() {
	res := s.issue(90 * 24 * time.Hour)
	code := res.Codes[0].Value

	v := s.scan(code, s.now)
	s.Equal(verify.VerdictVerified, v.Kind)
	s.Require().NotNil(v.Batch)
	s.Equal(res.Batch.BatchNumber, v.Batch.BatchNumber)

	got, err := s.registry.FindCode(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(batch.CodeStatusScanned, got.Status)
}

func (s *VerifySuite) TestSecondScanIsDuplicate() {
	res := s.issue(90 * 24 * time.Hour)
	code := res.Codes[0].Value

	s.scan(code, s.now)
	v := s.scan(code, s.now.Add(time.Hour))

	s.Equal(verify.VerdictDuplicateScan, v.Kind)
	s.Require().NotNil(v.FirstScannedAt)
	s.Equal(s.now, *v.FirstScannedAt)
	s.Equal("market-7", v.FirstLocation)

	// The code stays scanned; a duplicate is suspicious, not a state change.
	got, err := s.registry.FindCode(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(batch.CodeStatusScanned, got.Status)
}

func (s *VerifySuite) TestExpiryBoundaryIsInclusive() {
	res := s.issue(48 * time.Hour)
	expiresAt := res.Batch.ExpiresAt

	v := s.scan(res.Codes[0].Value, expiresAt)
	s.Equal(verify.VerdictVerified, v.Kind)

	v = s.scan(res.Codes[1].Value, expiresAt.Add(time.Nanosecond))
	s.Equal(verify.VerdictExpired, v.Kind)
	s.Require().NotNil(v.Batch)
}

func (s *VerifySuite) TestExpiredCodeNeverClaims() {
	res := s.issue(48 * time.Hour)
	code := res.Codes[0].Value

	s.scan(code, res.Batch.ExpiresAt.Add(time.Hour))

	got, err := s.registry.FindCode(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(batch.CodeStatusActive, got.Status)
}

func (s *VerifySuite) TestTamperedManifestRevokesCode() {
	res := s.issue(90 * 24 * time.Hour)
	code := res.Codes[0].Value
	s.anchorer.Tamper(res.Batch.AnchorRef, "0000000000000000")

	v := s.scan(code, s.now)
	s.Equal(verify.VerdictTampered, v.Kind)

	got, err := s.registry.FindCode(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(batch.CodeStatusRevoked, got.Status)

	// A later scan of the revoked code short-circuits to tampered.
	v = s.scan(code, s.now.Add(time.Hour))
	s.Equal(verify.VerdictTampered, v.Kind)
}

func (s *VerifySuite) TestConcurrentFirstUseClaimsOnce() {
	res := s.issue(90 * 24 * time.Hour)
	code := res.Codes[0].Value

	const scanners = 16
	verdicts := make([]verify.VerdictKind, scanners)
	var wg sync.WaitGroup
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.svc.Verify(s.ctx, verify.Request{Code: code, ScannedAt: s.now})
			if err == nil {
				verdicts[i] = v.Kind
			}
		}(i)
	}
	wg.Wait()

	var verified, duplicate int
	for _, k := range verdicts {
		switch k {
		case verify.VerdictVerified:
			verified++
		case verify.VerdictDuplicateScan:
			duplicate++
		}
	}
	s.Equal(1, verified)
	s.Equal(scanners-1, duplicate)

	records, err := s.ledger.ListByCode(s.ctx, code)
	s.Require().NoError(err)
	s.Len(records, scanners)
}

func (s *VerifySuite) TestHistoryKeepsEveryAttempt() {
	res := s.issue(90 * 24 * time.Hour)
	code := res.Codes[0].Value

	s.scan(code, s.now)
	s.scan(code, s.now.Add(time.Hour))
	s.scan(code, s.now.Add(2*time.Hour))

	records, err := s.svc.History(s.ctx, code)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(string(verify.VerdictVerified), records[0].Verdict)
	s.Equal(string(verify.VerdictDuplicateScan), records[1].Verdict)
	s.Equal(string(verify.VerdictDuplicateScan), records[2].Verdict)
}

func (s *VerifySuite) TestPublisherReceivesResolvedScans() {
	pub := &capturePublisher{}
	svc := verify.New(s.registry, s.ledger,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		verify.WithPublisher(pub))

	res := s.issue(90 * 24 * time.Hour)
	_, err := svc.Verify(s.ctx, verify.Request{Code: res.Codes[0].Value, ScannedAt: s.now})
	s.Require().NoError(err)

	s.Require().Len(pub.events, 1)
	s.Equal(string(verify.VerdictVerified), pub.events[0].Verdict)
	s.Equal(res.Batch.BatchNumber, pub.events[0].BatchNum)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []verify.ScanEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(verify.ScanEvent))
	return nil
}
