// Package hashx computes the content digest used to detect whether two
// copies of the same document actually differ. Only mutable fields are
// hashed; identity fields (sync id, owner, creation time) are excluded so
// the digest reflects content that can legitimately change.
package hashx

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Content holds the mutable document fields covered by the digest.
type Content struct {
	Title       string
	Category    string
	Notes       string
	RenewalDate *time.Time
}

// Sum returns the hex-encoded SHA-256 of the canonical encoding of c.
// Fields are encoded in a fixed tag order with length prefixes, so the
// digest does not depend on how the caller assembled the struct, and an
// absent renewal date hashes differently from a zero one.
func Sum(c Content) string {
	h := sha256.New()

	writeField(h.Write, 1, []byte(c.Title))
	writeField(h.Write, 2, []byte(c.Category))
	writeField(h.Write, 3, []byte(c.Notes))

	if c.RenewalDate != nil {
		writeField(h.Write, 4, []byte(c.RenewalDate.UTC().Format(time.RFC3339)))
	} else {
		writeField(h.Write, 5, nil)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w func([]byte) (int, error), tag byte, v []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
	_, _ = w([]byte{tag})
	_, _ = w(lenBuf[:])
	_, _ = w(v)
}
