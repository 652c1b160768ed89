// Package shipment owns custody transfers of batches between locations and
// their append-only tracking history. Transition legality lives next to the
// types; the Delayed detour is the only branch in an otherwise linear path.
package shipment

import (
	"strings"
	"time"

	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
)

// Status is the delivery state of a shipment.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusInTransit Status = "in_transit"
	StatusArrived   Status = "arrived"
	StatusCompleted Status = "completed"
	StatusDelayed   Status = "delayed"
)

// transitions is the full adjacency list. Delayed must return to the nominal
// path; it never jumps straight to Completed.
var transitions = map[Status][]Status{
	StatusPreparing: {StatusInTransit},
	StatusInTransit: {StatusArrived, StatusDelayed},
	StatusDelayed:   {StatusInTransit, StatusArrived},
	StatusArrived:   {StatusCompleted},
}

// ParseStatus validates a status string from untrusted input.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPreparing, StatusInTransit, StatusArrived, StatusCompleted, StatusDelayed:
		return Status(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown shipment status %q", s)
}

// TrackingEvent is one immutable custody observation.
type TrackingEvent struct {
	At       time.Time
	Location string
	Status   Status
	Note     string
}

// Shipment is a custody transfer of one or more batches.
type Shipment struct {
	ID               domain.ShipmentID
	BatchIDs         []domain.BatchID
	Origin           string
	Destination      string
	DepartedAt       time.Time
	EstimatedArrival time.Time
	ArrivedAt        *time.Time
	Status           Status
	Events           []TrackingEvent
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewShipment validates creation input and returns a Preparing shipment with
// its initial tracking event at the origin.
func NewShipment(id domain.ShipmentID, batchIDs []domain.BatchID, origin, destination string, departedAt, estimatedArrival, now time.Time) (*Shipment, error) {
	if len(batchIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "shipment needs at least one batch")
	}
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "origin and destination are required")
	}
	seen := make(map[domain.BatchID]struct{}, len(batchIDs))
	for _, id := range batchIDs {
		if _, dup := seen[id]; dup {
			return nil, dErrors.New(dErrors.CodeBadRequest, "duplicate batch in shipment")
		}
		seen[id] = struct{}{}
	}
	return &Shipment{
		ID:               id,
		BatchIDs:         batchIDs,
		Origin:           origin,
		Destination:      destination,
		DepartedAt:       departedAt,
		EstimatedArrival: estimatedArrival,
		Status:           StatusPreparing,
		Events: []TrackingEvent{{
			At:       now,
			Location: origin,
			Status:   StatusPreparing,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanAdvanceTo checks transition legality without mutating.
func (s *Shipment) CanAdvanceTo(target Status) error {
	for _, t := range transitions[s.Status] {
		if t == target {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeIllegalTransition,
		"shipment %s cannot move from %s to %s", s.ID, s.Status, target)
}

// Apply records a validated transition and appends its tracking event. Event
// timestamps must be non-decreasing; an out-of-order observation is rejected
// rather than silently reordered.
func (s *Shipment) Apply(target Status, at time.Time, location, note string) error {
	if last := s.Events[len(s.Events)-1]; at.Before(last.At) {
		return dErrors.New(dErrors.CodeBadRequest, "tracking event timestamp precedes the previous event")
	}
	if target == StatusArrived || target == StatusCompleted {
		if s.ArrivedAt == nil {
			if at.Before(s.DepartedAt) {
				return dErrors.New(dErrors.CodeBadRequest, "arrival cannot precede departure")
			}
			arrived := at
			s.ArrivedAt = &arrived
		}
	}
	s.Status = target
	s.UpdatedAt = at
	s.Events = append(s.Events, TrackingEvent{At: at, Location: location, Status: target, Note: note})
	return nil
}
