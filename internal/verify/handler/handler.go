package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritag/internal/scanledger"
	"veritag/internal/verify"
	"veritag/pkg/platform/httputil"
	"veritag/pkg/requestcontext"
)

// Service defines the verification operations the handler exposes.
type Service interface {
	Verify(ctx context.Context, req verify.Request) (*verify.Verdict, error)
	History(ctx context.Context, code string) ([]scanledger.ScanRecord, error)
}

// Handler wires the public verification endpoint to the verify service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
	r.Get("/codes/{code}/scans", h.HandleHistory)
}

// HandleVerify handles POST /verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r)
	if !ok {
		return
	}

	verdict, err := h.service.Verify(ctx, verify.Request{
		Code:      req.Code,
		Location:  req.Location,
		ScannedAt: req.ScannedAt,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"code", req.Code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerdict(verdict))
}

// HandleHistory handles GET /codes/{code}/scans requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := chi.URLParam(r, "code")
	records, err := h.service.History(ctx, code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}
