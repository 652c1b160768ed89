package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"veritag/internal/anchor"
	"veritag/internal/batch"
	batchhandler "veritag/internal/batch/handler"
	batchservice "veritag/internal/batch/service"
	"veritag/internal/scanledger"
	"veritag/internal/shipment"
	shipmenthandler "veritag/internal/shipment/handler"
	shipmentservice "veritag/internal/shipment/service"
	"veritag/internal/verify"
	verifyhandler "veritag/internal/verify/handler"
)

const adminToken = "secret-token"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	batchStore := batch.NewInMemoryStore()
	batches := batchservice.New(batchStore, anchor.NewInMemory(), logger)
	shipments := shipmentservice.New(shipment.NewInMemoryStore(), batches, logger)
	verifier := verify.New(batches, scanledger.NewInMemoryStore(), logger)

	return NewRouter(Deps{
		AdminToken: adminToken,
		Batches:    batchhandler.New(batches, nil, logger),
		Shipments:  shipmenthandler.New(shipments, logger),
		Verify:     verifyhandler.New(verifier, logger),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Token", adminToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
}

func TestVerifyIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/verify", map[string]string{"code": "XX-0001-20260301"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from public verify, got %d", rec.Code)
	}
	var verdict struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.Verdict != "unknown_code" {
		t.Fatalf("expected unknown_code for a never-issued code, got %q", verdict.Verdict)
	}
}

func TestVerifyMalformedCodeIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/verify", map[string]string{"code": "totally-bogus"}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed code, got %d", rec.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error != "malformed_code" {
		t.Fatalf("expected malformed_code error, got %q", envelope.Error)
	}
}

func TestCustodySurfaceIsGuarded(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/batches", "/shipments"} {
		rec := doJSON(t, router, http.MethodPost, path, map[string]string{}, false)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for %s without token, got %d", path, rec.Code)
		}
	}
}

// End to end: issue a batch, ship it, complete the shipment, then watch a
// scan of one of its codes resolve through the full verdict set.
func TestIssueShipVerifyFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/batches", map[string]any{
		"product_type":    "dap",
		"quantity":        2,
		"unit":            "bag",
		"produced_at":     "2026-03-01T06:00:00Z",
		"shelf_life_days": 3650,
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 issuing batch, got %d: %s", rec.Code, rec.Body.String())
	}
	var issued struct {
		Batch struct {
			ID string `json:"id"`
		} `json:"batch"`
		Codes []struct {
			Code string `json:"code"`
		} `json:"codes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	if len(issued.Codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(issued.Codes))
	}

	rec = doJSON(t, router, http.MethodPost, "/shipments", map[string]any{
		"batch_ids":         []string{issued.Batch.ID},
		"origin":            "factory-east",
		"destination":       "warehouse-12",
		"departed_at":       "2026-03-02T06:00:00Z",
		"estimated_arrival": "2026-03-04T06:00:00Z",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating shipment, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode shipment response: %v", err)
	}

	for _, status := range []string{"in_transit", "arrived", "completed"} {
		rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/shipments/%s/status", created.ID), map[string]any{
			"status":   status,
			"location": "somewhere",
		}, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 advancing to %s, got %d: %s", status, rec.Code, rec.Body.String())
		}
	}

	// Completion reconciled the batch to distributed.
	rec = doJSON(t, router, http.MethodGet, "/batches/"+issued.Batch.ID, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching batch, got %d", rec.Code)
	}
	var fetched struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if fetched.Status != "distributed" {
		t.Fatalf("expected distributed after completion, got %q", fetched.Status)
	}

	// First scan verifies, second is a duplicate, and the history shows both.
	code := issued.Codes[0].Code
	rec = doJSON(t, router, http.MethodPost, "/verify", map[string]any{
		"code":     code,
		"location": "market-7",
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 verifying, got %d", rec.Code)
	}
	var verdict struct {
		Verdict string `json:"verdict"`
		Batch   *struct {
			Status string `json:"status"`
		} `json:"batch"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.Verdict != "verified" {
		t.Fatalf("expected verified, got %q", verdict.Verdict)
	}
	if verdict.Batch == nil || verdict.Batch.Status != "distributed" {
		t.Fatalf("expected batch context on the verdict")
	}

	rec = doJSON(t, router, http.MethodPost, "/verify", map[string]string{"code": code}, false)
	if err := json.NewDecoder(rec.Body).Decode(&verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.Verdict != "duplicate_scan" {
		t.Fatalf("expected duplicate_scan, got %q", verdict.Verdict)
	}

	rec = doJSON(t, router, http.MethodGet, "/codes/"+code+"/scans", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching history, got %d", rec.Code)
	}
	var history []struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history))
	}
}
