package storage

import (
	"crypto/sha256"
	"fmt"
)

// LinkID derives a deterministic UUID-shaped identifier for a link found on
// a source page, so re-discovering the same pair is idempotent.
func LinkID(sourceURL, link string) string {
	sum := sha256.Sum256([]byte(sourceURL + "\n" + link))
	b := make([]byte, 16)
	copy(b, sum[:])
	b[6] = (b[6] & 0x0f) | 0x50 // name-based, version 5 layout
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
