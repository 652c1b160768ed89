package handler

import (
	"time"

	"veritag/internal/shipment"
)

// ShipmentResponse is the HTTP representation of a shipment.
type ShipmentResponse struct {
	ID               string          `json:"id"`
	BatchIDs         []string        `json:"batch_ids"`
	Origin           string          `json:"origin"`
	Destination      string          `json:"destination"`
	DepartedAt       time.Time       `json:"departed_at"`
	EstimatedArrival time.Time       `json:"estimated_arrival"`
	ArrivedAt        *time.Time      `json:"arrived_at,omitempty"`
	Status           string          `json:"status"`
	Events           []EventResponse `json:"events"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EventResponse is one tracking event in the response.
type EventResponse struct {
	At       time.Time `json:"at"`
	Location string    `json:"location"`
	Status   string    `json:"status"`
	Note     string    `json:"note,omitempty"`
}

// FromShipment converts a domain shipment to its HTTP representation.
func FromShipment(sh *shipment.Shipment) *ShipmentResponse {
	batchIDs := make([]string, 0, len(sh.BatchIDs))
	for _, id := range sh.BatchIDs {
		batchIDs = append(batchIDs, id.String())
	}
	events := make([]EventResponse, 0, len(sh.Events))
	for _, ev := range sh.Events {
		events = append(events, EventResponse{
			At:       ev.At,
			Location: ev.Location,
			Status:   string(ev.Status),
			Note:     ev.Note,
		})
	}
	return &ShipmentResponse{
		ID:               sh.ID.String(),
		BatchIDs:         batchIDs,
		Origin:           sh.Origin,
		Destination:      sh.Destination,
		DepartedAt:       sh.DepartedAt,
		EstimatedArrival: sh.EstimatedArrival,
		ArrivedAt:        sh.ArrivedAt,
		Status:           string(sh.Status),
		Events:           events,
		CreatedAt:        sh.CreatedAt,
		UpdatedAt:        sh.UpdatedAt,
	}
}

// FromShipments converts a list of shipments.
func FromShipments(shipments []*shipment.Shipment) []*ShipmentResponse {
	out := make([]*ShipmentResponse, 0, len(shipments))
	for _, sh := range shipments {
		out = append(out, FromShipment(sh))
	}
	return out
}
