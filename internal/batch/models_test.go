package batch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritag/internal/batch"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
)

type ModelsSuite struct {
	suite.Suite
	now time.Time
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
}

func (s *ModelsSuite) newBatch() *batch.Batch {
	b, err := batch.NewBatch(domain.NewBatchID(), "UP-20260301-L01", "urea", 40, "ton",
		s.now, 180*24*time.Hour, s.now)
	s.Require().NoError(err)
	return b
}

func (s *ModelsSuite) TestNewBatchValidation() {
	id := domain.NewBatchID()

	cases := []struct {
		name        string
		productType string
		quantity    int
		unit        string
		shelfLife   time.Duration
	}{
		{"empty product type", "  ", 10, "ton", time.Hour},
		{"zero quantity", "urea", 0, "ton", time.Hour},
		{"negative quantity", "urea", -3, "ton", time.Hour},
		{"empty unit", "urea", 10, "", time.Hour},
		{"zero shelf life", "urea", 10, "ton", 0},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := batch.NewBatch(id, "UP-20260301-L01", tc.productType, tc.quantity, tc.unit, s.now, tc.shelfLife, s.now)
			s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}

func (s *ModelsSuite) TestNewBatchStartsAtFactory() {
	b := s.newBatch()
	s.Equal(batch.StatusFactory, b.Status)
	s.Equal(s.now.Add(180*24*time.Hour), b.ExpiresAt)
}

func (s *ModelsSuite) TestStatusTransitionsAreLinear() {
	legal := []struct {
		from, to batch.Status
	}{
		{batch.StatusFactory, batch.StatusInTransit},
		{batch.StatusInTransit, batch.StatusAtWarehouse},
		{batch.StatusAtWarehouse, batch.StatusDistributed},
	}
	for _, tc := range legal {
		b := s.newBatch()
		b.Status = tc.from
		s.NoError(b.CanAdvanceTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct {
		from, to batch.Status
	}{
		{batch.StatusFactory, batch.StatusAtWarehouse},
		{batch.StatusFactory, batch.StatusDistributed},
		{batch.StatusInTransit, batch.StatusFactory},
		{batch.StatusAtWarehouse, batch.StatusInTransit},
		{batch.StatusDistributed, batch.StatusFactory},
		{batch.StatusDistributed, batch.StatusInTransit},
	}
	for _, tc := range illegal {
		b := s.newBatch()
		b.Status = tc.from
		err := b.CanAdvanceTo(tc.to)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition), "%s -> %s", tc.from, tc.to)
		s.Equal(tc.from, b.Status)
	}
}

func (s *ModelsSuite) TestNext() {
	next, ok := batch.Next(batch.StatusFactory)
	s.True(ok)
	s.Equal(batch.StatusInTransit, next)

	_, ok = batch.Next(batch.StatusDistributed)
	s.False(ok)
}

func (s *ModelsSuite) TestExpiredBoundaryIsInclusive() {
	b := s.newBatch()
	s.False(b.Expired(b.ExpiresAt), "a batch at exactly its expiry instant is still good")
	s.True(b.Expired(b.ExpiresAt.Add(time.Nanosecond)))
}

func (s *ModelsSuite) TestPolicyLookup() {
	table := batch.DefaultPolicies()

	policy, err := table.Lookup("urea")
	s.Require().NoError(err)
	s.Equal("UP", policy.Prefix)
	s.Equal(2, policy.CodesPerUnit)

	policy, err = table.Lookup("  POTASH ")
	s.Require().NoError(err)
	s.Equal("MOP", policy.Prefix)

	_, err = table.Lookup("compost")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ModelsSuite) TestManifestIsDeterministic() {
	b := s.newBatch()
	codes := []batch.Code{
		{Value: "UP-0001-20260301", Sequence: 1},
		{Value: "UP-0002-20260301", Sequence: 2},
	}

	first := batch.HashManifest(batch.BuildManifest(b, codes))
	second := batch.HashManifest(batch.BuildManifest(b, codes))
	s.Equal(first, second)

	reordered := []batch.Code{codes[1], codes[0]}
	s.NotEqual(first, batch.HashManifest(batch.BuildManifest(b, reordered)),
		"code order is part of the manifest")

	b.Quantity++
	s.NotEqual(first, batch.HashManifest(batch.BuildManifest(b, codes)))
}
