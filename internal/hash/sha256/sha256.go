// Package sha256 computes content digests used to name stored reports.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements report.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex SHA-256 digest of an encoded report.
func (*Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
