package batch

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// BuildManifest produces the canonical byte representation of a batch and its
// code set. Field order and formatting are fixed: the same batch always
// yields the same bytes, on any instance, at any later time. Verification
// recomputes this from stored state and compares against the anchored hash.
func BuildManifest(b *Batch, codes []Code) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "batch:%s\n", b.ID)
	fmt.Fprintf(&buf, "number:%s\n", b.BatchNumber)
	fmt.Fprintf(&buf, "product:%s\n", b.ProductType)
	fmt.Fprintf(&buf, "quantity:%d %s\n", b.Quantity, b.Unit)
	fmt.Fprintf(&buf, "produced:%d\n", b.ProducedAt.Unix())
	for i := range codes {
		buf.WriteString(codes[i].Value)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// HashManifest is the SHA-256 hex digest of a manifest. Anchor
// implementations must compute the same digest so a locally recomputed hash
// is comparable with the anchored one.
func HashManifest(manifest []byte) string {
	sum := sha256.Sum256(manifest)
	return hex.EncodeToString(sum[:])
}
