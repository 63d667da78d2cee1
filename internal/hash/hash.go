// Package hash provides content digests for change comparison.
//
// Watchguard hashes serialized documents to decide whether a rewrite would
// change anything on disk. Skipping byte-identical rewrites keeps file
// modification times stable, which is what the reconciler's change
// detection keys on.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher provides an abstraction for content hashing operations.
type Hasher interface {
	// HashBytes computes the hash of an in-memory document.
	HashBytes(data []byte) string
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashBytes computes the SHA-256 hash of data.
func (h *SHA256Hasher) HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FakeHasher implements Hasher with a fixed digest for testing.
// Every input hashes to the same value, so callers treat all writes as no-ops.
type FakeHasher struct {
	Digest string
}

// HashBytes returns the configured digest.
func (h *FakeHasher) HashBytes(data []byte) string {
	if h.Digest == "" {
		return "fakehash"
	}
	return h.Digest
}
