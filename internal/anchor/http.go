package anchor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/circuit"
)

// HTTPAnchor talks to an external anchoring service over JSON. Every call has
// a bounded timeout from the client configuration, and a circuit breaker
// keeps a dead anchor store from stalling issuance or verification: while
// open, calls fail immediately with anchor_unavailable until the breaker
// admits a recovery probe.
type HTTPAnchor struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
}

// HTTPOption configures an HTTPAnchor.
type HTTPOption func(*HTTPAnchor)

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(a *HTTPAnchor) { a.breaker = b }
}

// NewHTTPAnchor creates a client for the anchoring service at baseURL. The
// http.Client must carry the call timeout.
func NewHTTPAnchor(baseURL string, client *http.Client, opts ...HTTPOption) *HTTPAnchor {
	a := &HTTPAnchor{
		baseURL: baseURL,
		client:  client,
		breaker: circuit.New("anchor", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type anchorRequest struct {
	Manifest string `json:"manifest"` // base64
}

type anchorResponse struct {
	Hash      string `json:"hash"`
	Reference string `json:"reference"`
}

type verifyRequest struct {
	Hash      string `json:"hash"`
	Reference string `json:"reference"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

func (a *HTTPAnchor) Anchor(ctx context.Context, manifest []byte) (string, string, error) {
	if !a.breaker.Allow() {
		return "", "", dErrors.New(dErrors.CodeAnchorUnavailable, "anchor store circuit open")
	}

	var resp anchorResponse
	err := a.post(ctx, "/anchors", anchorRequest{Manifest: base64.StdEncoding.EncodeToString(manifest)}, &resp)
	if err != nil {
		a.breaker.RecordFailure()
		return "", "", dErrors.Wrap(err, dErrors.CodeAnchorUnavailable, "anchor store unreachable")
	}
	a.breaker.RecordSuccess()

	if resp.Hash == "" || resp.Reference == "" {
		return "", "", dErrors.New(dErrors.CodeAnchorUnavailable, "anchor store returned incomplete response")
	}
	return resp.Hash, resp.Reference, nil
}

func (a *HTTPAnchor) Verify(ctx context.Context, hash, reference string) (bool, error) {
	if !a.breaker.Allow() {
		return false, dErrors.New(dErrors.CodeAnchorUnavailable, "anchor store circuit open")
	}

	var resp verifyResponse
	err := a.post(ctx, "/anchors/verify", verifyRequest{Hash: hash, Reference: reference}, &resp)
	if err != nil {
		a.breaker.RecordFailure()
		return false, dErrors.Wrap(err, dErrors.CodeAnchorUnavailable, "anchor store unreachable")
	}
	a.breaker.RecordSuccess()

	return resp.Valid, nil
}

func (a *HTTPAnchor) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("anchor call: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("anchor store returned status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode anchor response: %w", err)
	}
	return nil
}
