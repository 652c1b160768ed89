package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veritag/internal/batch"
	batchservice "veritag/internal/batch/service"
	"veritag/internal/queue"
	"veritag/pkg/domain"
	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/httputil"
	"veritag/pkg/requestcontext"
)

// Service defines the batch operations the handler exposes.
type Service interface {
	IssueBatch(ctx context.Context, req batchservice.IssueRequest) (*batchservice.IssueResult, error)
	GetBatch(ctx context.Context, id domain.BatchID) (*batch.Batch, error)
	ListCodes(ctx context.Context, id domain.BatchID) ([]batch.Code, error)
	AdvanceBatchStatus(ctx context.Context, id domain.BatchID, target batch.Status) (*batch.Batch, error)
}

// Enqueuer schedules issuance as a background job. Nil when the deployment
// runs without a queue; the jobs endpoint then returns 503.
type Enqueuer interface {
	EnqueueIssue(ctx context.Context, payload queue.IssuePayload) (string, error)
}

// Handler wires batch endpoints to the batch service.
type Handler struct {
	service  Service
	enqueuer Enqueuer
	logger   *slog.Logger
}

func New(service Service, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Register mounts batch endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/batches", h.HandleIssue)
	r.Post("/batches/jobs", h.HandleIssueJob)
	r.Get("/batches/{batchID}", h.HandleGet)
	r.Get("/batches/{batchID}/codes", h.HandleListCodes)
	r.Post("/batches/{batchID}/status", h.HandleAdvance)
}

// HandleIssue handles POST /batches requests.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.IssueBatch(ctx, batchservice.IssueRequest{
		ProductType: req.ProductType,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		ProducedAt:  req.ProducedAt,
		ShelfLife:   req.ShelfLife(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "batch issuance failed",
			"request_id", requestID,
			"product_type", req.ProductType,
			"quantity", req.Quantity,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch issued",
		"request_id", requestID,
		"batch_id", result.Batch.ID.String(),
		"codes", len(result.Codes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromIssueResult(result))
}

// HandleIssueJob handles POST /batches/jobs requests.
func (h *Handler) HandleIssueJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if h.enqueuer == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "background issuance is not configured"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r)
	if !ok {
		return
	}

	taskID, err := h.enqueuer.EnqueueIssue(ctx, queue.IssuePayload{
		ProductType:   req.ProductType,
		Quantity:      req.Quantity,
		Unit:          req.Unit,
		ProducedAt:    req.ProducedAt,
		ShelfLifeDays: req.ShelfLifeDays,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "issuance enqueue failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "enqueue issuance"))
		return
	}

	h.logger.InfoContext(ctx, "issuance enqueued",
		"request_id", requestID,
		"task_id", taskID,
		"product_type", req.ProductType,
		"quantity", req.Quantity,
	)
	httputil.WriteJSON(w, http.StatusAccepted, JobResponse{TaskID: taskID})
}

// HandleGet handles GET /batches/{batchID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	b, err := h.service.GetBatch(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBatch(b))
}

// HandleListCodes handles GET /batches/{batchID}/codes requests.
func (h *Handler) HandleListCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	codes, err := h.service.ListCodes(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCodes(codes))
}

// HandleAdvance handles POST /batches/{batchID}/status requests.
func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AdvanceRequest](w, r)
	if !ok {
		return
	}

	b, err := h.service.AdvanceBatchStatus(ctx, id, req.ParsedStatus())
	if err != nil {
		h.logger.ErrorContext(ctx, "batch transition failed",
			"request_id", requestID,
			"batch_id", id.String(),
			"target", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch transitioned",
		"request_id", requestID,
		"batch_id", id.String(),
		"status", string(b.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, FromBatch(b))
}
