package claim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ExpectationID derives the stable content hash for an expectation from its
// source location and promise. Identical inputs always hash identically, so
// IDs correlate across runs and across machines.
func ExpectationID(src Source, kind, value string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d|%s|%s", src.File, src.Line, src.Column, kind, value)))
	return hex.EncodeToString(sum[:])[:16]
}
