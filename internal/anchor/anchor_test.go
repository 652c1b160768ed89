package anchor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/circuit"
)

func TestInMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewInMemory()

	hash, ref, err := a.Anchor(ctx, []byte("manifest-bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, ref)

	ok, err := a.Verify(ctx, hash, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same content anchors to the same hash under a new reference.
	hash2, ref2, err := a.Anchor(ctx, []byte("manifest-bytes"))
	require.NoError(t, err)
	assert.Equal(t, hash, hash2)
	assert.NotEqual(t, ref, ref2)
}

func TestInMemory_DetectsMismatch(t *testing.T) {
	ctx := context.Background()
	a := NewInMemory()

	hash, ref, err := a.Anchor(ctx, []byte("original"))
	require.NoError(t, err)

	ok, err := a.Verify(ctx, "deadbeef", ref)
	require.NoError(t, err)
	assert.False(t, ok)

	a.Tamper(ref, "deadbeef")
	ok, err = a.Verify(ctx, hash, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPAnchor_AnchorAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anchors":
			json.NewEncoder(w).Encode(map[string]string{"hash": "abc123", "reference": "tx-1"})
		case "/anchors/verify":
			json.NewEncoder(w).Encode(map[string]bool{"valid": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewHTTPAnchor(srv.URL, &http.Client{Timeout: time.Second})

	hash, ref, err := a.Anchor(context.Background(), []byte("manifest"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
	assert.Equal(t, "tx-1", ref)

	ok, err := a.Verify(context.Background(), hash, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHTTPAnchor_UnreachableIsAnchoringError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPAnchor(srv.URL, &http.Client{Timeout: time.Second})

	_, _, err := a.Anchor(context.Background(), []byte("manifest"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAnchorUnavailable))
}

func TestHTTPAnchor_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewHTTPAnchor(srv.URL, &http.Client{Timeout: time.Second})

	for i := 0; i < 5; i++ {
		_, _, err := a.Anchor(context.Background(), []byte("manifest"))
		require.Error(t, err)
	}
	callsBeforeOpen := calls

	// Circuit is open now: the next call fails fast without hitting the server.
	_, _, err := a.Anchor(context.Background(), []byte("manifest"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAnchorUnavailable))
	assert.Equal(t, callsBeforeOpen, calls)
}

func TestHTTPAnchor_CircuitRecoversAfterAnchorComesBack(t *testing.T) {
	var healthy bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"hash": "abc123", "reference": "tx-9"})
	}))
	defer srv.Close()

	clock := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	breaker := circuit.New("anchor",
		circuit.WithFailureThreshold(5),
		circuit.WithSuccessThreshold(1),
		circuit.WithOpenInterval(time.Minute),
		circuit.WithClock(func() time.Time { return clock }),
	)
	a := NewHTTPAnchor(srv.URL, &http.Client{Timeout: time.Second}, WithBreaker(breaker))

	for i := 0; i < 5; i++ {
		_, _, err := a.Anchor(context.Background(), []byte("manifest"))
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	// Anchor store comes back, but the open interval has not elapsed yet.
	healthy = true
	_, _, err := a.Anchor(context.Background(), []byte("manifest"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAnchorUnavailable))

	// After the interval the probe goes through, closes the circuit, and
	// every following call succeeds.
	clock = clock.Add(time.Minute)
	hash, ref, err := a.Anchor(context.Background(), []byte("manifest"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
	assert.Equal(t, "tx-9", ref)
	assert.Equal(t, circuit.StateClosed, breaker.State())

	_, _, err = a.Anchor(context.Background(), []byte("manifest"))
	require.NoError(t, err)
}
