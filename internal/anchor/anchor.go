// Package anchor defines the narrow interface to the external hash-anchoring
// store. The core never assumes anything about how anchoring works beyond
// this contract: give it canonical manifest bytes, get back a content hash
// and an opaque anchoring reference, and be able to re-verify the pair later.
package anchor

import "context"

// Anchorer is the external collaborator recording content hashes in a
// tamper-evident store.
type Anchorer interface {
	// Anchor stores the content hash of manifest and returns the hash along
	// with an opaque reference (e.g. a transaction id) for later verification.
	Anchor(ctx context.Context, manifest []byte) (hash string, reference string, err error)

	// Verify reports whether the hash/reference pair is intact in the
	// anchoring store. A false result with nil error means the anchored value
	// differs: tampering, not infrastructure failure.
	Verify(ctx context.Context, hash string, reference string) (bool, error)
}
