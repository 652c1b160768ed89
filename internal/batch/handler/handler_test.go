package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"veritag/internal/anchor"
	"veritag/internal/batch"
	batchservice "veritag/internal/batch/service"
	"veritag/internal/platform/middleware"
)

const adminToken = "secret-token"

func newBatchRouter(t *testing.T) http.Handler {
	t.Helper()
	store := batch.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := batchservice.New(store, anchor.NewInMemory(), logger)

	h := New(svc, nil, logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequireAdminToken(adminToken))
	h.Register(r)
	return r
}

func issuePayload() []byte {
	body, _ := json.Marshal(map[string]any{
		"product_type":    "urea",
		"quantity":        3,
		"unit":            "bag",
		"produced_at":     "2026-03-01T06:00:00Z",
		"shelf_life_days": 90,
	})
	return body
}

func TestAdminTokenRequired(t *testing.T) {
	router := newBatchRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(issuePayload()))
	// No admin token header set
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when admin token missing, got %d", rec.Code)
	}
}

func TestIssueAndFetchBatchViaHandlers(t *testing.T) {
	router := newBatchRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(issuePayload()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 issuing batch, got %d: %s", rec.Code, rec.Body.String())
	}

	var issued struct {
		Batch struct {
			ID          string `json:"id"`
			BatchNumber string `json:"batch_number"`
			Status      string `json:"status"`
		} `json:"batch"`
		Codes []struct {
			Code     string `json:"code"`
			Sequence int    `json:"sequence"`
			Status   string `json:"status"`
		} `json:"codes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	if issued.Batch.ID == "" || issued.Batch.BatchNumber == "" {
		t.Fatalf("expected batch id and number in response")
	}
	if issued.Batch.Status != "factory" {
		t.Fatalf("expected factory status, got %q", issued.Batch.Status)
	}
	if len(issued.Codes) != 6 {
		t.Fatalf("expected 6 codes for 3 double-coded units, got %d", len(issued.Codes))
	}

	getReq := httptest.NewRequest(http.MethodGet, "/batches/"+issued.Batch.ID, nil)
	getReq.Header.Set("X-Admin-Token", adminToken)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching batch, got %d", getRec.Code)
	}

	codesReq := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/batches/%s/codes", issued.Batch.ID), nil)
	codesReq.Header.Set("X-Admin-Token", adminToken)
	codesRec := httptest.NewRecorder()
	router.ServeHTTP(codesRec, codesReq)
	if codesRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing codes, got %d", codesRec.Code)
	}
}

func TestAdvanceBatchViaHandlers(t *testing.T) {
	router := newBatchRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(issuePayload()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 issuing batch, got %d", rec.Code)
	}
	var issued struct {
		Batch struct {
			ID string `json:"id"`
		} `json:"batch"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}

	advance := func(target string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"status": target})
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/batches/%s/status", issued.Batch.ID), bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Admin-Token", adminToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := advance("in_transit"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 advancing to in_transit, got %d", rec.Code)
	}
	if rec := advance("distributed"); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 skipping at_warehouse, got %d", rec.Code)
	}
	if rec := advance("sideways"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestIssueValidation(t *testing.T) {
	router := newBatchRouter(t)

	body, _ := json.Marshal(map[string]any{
		"product_type":    "urea",
		"quantity":        0,
		"unit":            "bag",
		"produced_at":     "2026-03-01T06:00:00Z",
		"shelf_life_days": 90,
	})
	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rec.Code)
	}
}

func TestIssueJobWithoutQueue(t *testing.T) {
	router := newBatchRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/batches/jobs", bytes.NewReader(issuePayload()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no queue is configured, got %d", rec.Code)
	}
}
