package shipment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritag/internal/shipment"
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
	s.now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
}

func (s *ModelsSuite) newShipment() *shipment.Shipment {
	sh, err := shipment.NewShipment(domain.NewShipmentID(),
		[]domain.BatchID{domain.NewBatchID()},
		"factory-east", "warehouse-12",
		s.now, s.now.Add(48*time.Hour), s.now)
	s.Require().NoError(err)
	return sh
}

func (s *ModelsSuite) TestNewShipmentValidation() {
	id := domain.NewShipmentID()
	bid := domain.NewBatchID()

	s.Run("no batches", func() {
		_, err := shipment.NewShipment(id, nil, "a", "b", s.now, s.now, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("blank origin", func() {
		_, err := shipment.NewShipment(id, []domain.BatchID{bid}, "  ", "b", s.now, s.now, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("duplicate batch", func() {
		_, err := shipment.NewShipment(id, []domain.BatchID{bid, bid}, "a", "b", s.now, s.now, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("starts preparing with origin event", func() {
		sh, err := shipment.NewShipment(id, []domain.BatchID{bid}, "factory-east", "warehouse-12", s.now, s.now.Add(time.Hour), s.now)
		s.Require().NoError(err)
		s.Equal(shipment.StatusPreparing, sh.Status)
		s.Require().Len(sh.Events, 1)
		s.Equal("factory-east", sh.Events[0].Location)
		s.Equal(shipment.StatusPreparing, sh.Events[0].Status)
	})
}

func (s *ModelsSuite) TestTransitions() {
	cases := []struct {
		name  string
		from  shipment.Status
		to    shipment.Status
		legal bool
	}{
		{"preparing to in_transit", shipment.StatusPreparing, shipment.StatusInTransit, true},
		{"preparing skip to arrived", shipment.StatusPreparing, shipment.StatusArrived, false},
		{"in_transit to arrived", shipment.StatusInTransit, shipment.StatusArrived, true},
		{"in_transit to delayed", shipment.StatusInTransit, shipment.StatusDelayed, true},
		{"delayed back to in_transit", shipment.StatusDelayed, shipment.StatusInTransit, true},
		{"delayed straight to arrived", shipment.StatusDelayed, shipment.StatusArrived, true},
		{"delayed to completed", shipment.StatusDelayed, shipment.StatusCompleted, false},
		{"arrived to completed", shipment.StatusArrived, shipment.StatusCompleted, true},
		{"completed is terminal", shipment.StatusCompleted, shipment.StatusInTransit, false},
		{"preparing to delayed", shipment.StatusPreparing, shipment.StatusDelayed, false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			sh := s.newShipment()
			sh.Status = tc.from
			err := sh.CanAdvanceTo(tc.to)
			if tc.legal {
				s.NoError(err)
			} else {
				s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
			}
		})
	}
}

func (s *ModelsSuite) TestApplyAppendsEvents() {
	sh := s.newShipment()
	s.Require().NoError(sh.Apply(shipment.StatusInTransit, s.now.Add(time.Hour), "highway-7", "left dock"))
	s.Require().NoError(sh.Apply(shipment.StatusArrived, s.now.Add(30*time.Hour), "warehouse-12", ""))

	s.Equal(shipment.StatusArrived, sh.Status)
	s.Require().Len(sh.Events, 3)
	s.Equal("highway-7", sh.Events[1].Location)
	s.Require().NotNil(sh.ArrivedAt)
	s.Equal(s.now.Add(30*time.Hour), *sh.ArrivedAt)
}

func (s *ModelsSuite) TestApplyRejectsOutOfOrderTimestamps() {
	sh := s.newShipment()
	s.Require().NoError(sh.Apply(shipment.StatusInTransit, s.now.Add(2*time.Hour), "highway-7", ""))

	err := sh.Apply(shipment.StatusArrived, s.now.Add(time.Hour), "warehouse-12", "")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Equal(shipment.StatusInTransit, sh.Status)
	s.Len(sh.Events, 2)
}

func (s *ModelsSuite) TestApplyRejectsArrivalBeforeDeparture() {
	sh, err := shipment.NewShipment(domain.NewShipmentID(),
		[]domain.BatchID{domain.NewBatchID()},
		"factory-east", "warehouse-12",
		s.now.Add(4*time.Hour), s.now.Add(48*time.Hour), s.now)
	s.Require().NoError(err)
	s.Require().NoError(sh.Apply(shipment.StatusInTransit, s.now.Add(time.Hour), "", ""))

	s.True(dErrors.HasCode(
		sh.Apply(shipment.StatusArrived, s.now.Add(2*time.Hour), "warehouse-12", ""),
		dErrors.CodeBadRequest))
}
