// Package sha256 digests archived documents so re-ingested copies can be
// compared with what is already stored.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher produces lowercase hex SHA-256 digests.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash digests a whole document.
func (*Hasher) Hash(document []byte) (string, error) {
	h := sha256.New()
	if _, err := h.Write(document); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
