package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("anchor")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "anchor", b.Name())
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	b := New("anchor", WithFailureThreshold(3))

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	useFallback, change = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Further failures keep the fallback without another state change.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("anchor", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_CountersResetEachOther(t *testing.T) {
	b := New("anchor", WithFailureThreshold(2), WithSuccessThreshold(2))

	// A success between failures keeps the circuit closed.
	b.RecordFailure()
	b.RecordSuccess()
	_, change := b.RecordFailure()
	assert.False(t, change.Opened)
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// A failure between successes keeps the circuit open.
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_AllowAdmitsProbeAfterOpenInterval(t *testing.T) {
	clock := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	b := New("anchor",
		WithFailureThreshold(1),
		WithOpenInterval(time.Minute),
		WithClock(func() time.Time { return clock }),
	)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow(), "open circuit rejects calls inside the interval")

	clock = clock.Add(30 * time.Second)
	assert.False(t, b.Allow())

	clock = clock.Add(30 * time.Second)
	assert.True(t, b.Allow(), "interval elapsed: one probe goes through")
	assert.Equal(t, StateHalfOpen, b.State())

	// The probe succeeded: circuit closes and stays closed.
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}

func TestBreaker_FailedProbeReopensForFullInterval(t *testing.T) {
	clock := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	b := New("anchor",
		WithFailureThreshold(1),
		WithOpenInterval(time.Minute),
		WithClock(func() time.Time { return clock }),
	)

	b.RecordFailure()
	clock = clock.Add(time.Minute)
	assert.True(t, b.Allow())

	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
	assert.False(t, b.Allow(), "failed probe restarts the open interval")

	clock = clock.Add(time.Minute)
	assert.True(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("anchor", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}
