package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// InMemory is a process-local Anchorer for development and tests. Hashes are
// real SHA-256 digests so round-trip properties hold; only the anchoring
// store itself is simulated.
type InMemory struct {
	mu      sync.RWMutex
	anchors map[string]string // reference -> hash
}

// NewInMemory creates an empty in-memory anchor store.
func NewInMemory() *InMemory {
	return &InMemory{anchors: make(map[string]string)}
}

func (a *InMemory) Anchor(_ context.Context, manifest []byte) (string, string, error) {
	sum := sha256.Sum256(manifest)
	hash := hex.EncodeToString(sum[:])
	reference := uuid.NewString()

	a.mu.Lock()
	a.anchors[reference] = hash
	a.mu.Unlock()

	return hash, reference, nil
}

func (a *InMemory) Verify(_ context.Context, hash, reference string) (bool, error) {
	a.mu.RLock()
	stored, ok := a.anchors[reference]
	a.mu.RUnlock()
	return ok && stored == hash, nil
}

// Tamper overwrites the anchored hash for a reference. Test hook for
// exercising the tampered-verdict path.
func (a *InMemory) Tamper(reference, hash string) {
	a.mu.Lock()
	a.anchors[reference] = hash
	a.mu.Unlock()
}
