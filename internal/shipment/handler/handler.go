package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veritag/internal/shipment"
	"veritag/internal/shipment/service"
	"veritag/pkg/domain"
	"veritag/pkg/platform/httputil"
	"veritag/pkg/requestcontext"
)

// Service defines the shipment operations the handler exposes.
type Service interface {
	CreateShipment(ctx context.Context, req service.CreateRequest) (*shipment.Shipment, error)
	GetShipment(ctx context.Context, id domain.ShipmentID) (*shipment.Shipment, error)
	ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*shipment.Shipment, error)
	AdvanceShipmentStatus(ctx context.Context, id domain.ShipmentID, req service.TransitionRequest) (*shipment.Shipment, error)
}

// Handler wires shipment endpoints to the shipment service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts shipment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shipments", h.HandleCreate)
	r.Get("/shipments/{shipmentID}", h.HandleGet)
	r.Post("/shipments/{shipmentID}/status", h.HandleAdvance)
	r.Get("/batches/{batchID}/shipments", h.HandleListByBatch)
}

// HandleCreate handles POST /shipments requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r)
	if !ok {
		return
	}

	sh, err := h.service.CreateShipment(ctx, service.CreateRequest{
		BatchIDs:         req.ParsedBatchIDs(),
		Origin:           req.Origin,
		Destination:      req.Destination,
		DepartedAt:       req.DepartedAt,
		EstimatedArrival: req.EstimatedArrival,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "shipment creation failed",
			"request_id", requestID,
			"batches", len(req.BatchIDs),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "shipment created",
		"request_id", requestID,
		"shipment_id", sh.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromShipment(sh))
}

// HandleGet handles GET /shipments/{shipmentID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sh, err := h.service.GetShipment(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromShipment(sh))
}

// HandleAdvance handles POST /shipments/{shipmentID}/status requests.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r)
	if !ok {
		return
	}

	sh, err := h.service.AdvanceShipmentStatus(ctx, id, service.TransitionRequest{
		Target:   req.ParsedStatus(),
		At:       req.At,
		Location: req.Location,
		Note:     req.Note,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "shipment transition failed",
			"request_id", requestID,
			"shipment_id", id.String(),
			"target", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "shipment transitioned",
		"request_id", requestID,
		"shipment_id", id.String(),
		"status", string(sh.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, FromShipment(sh))
}

// HandleListByBatch handles GET /batches/{batchID}/shipments requests.
func (h *Handler) HandleListByBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	shipments, err := h.service.ListByBatch(ctx, batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromShipments(shipments))
}
