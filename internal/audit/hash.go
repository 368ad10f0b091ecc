package audit

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Supported digest algorithms.
const (
	SHA256     = "sha256"
	SHA512_256 = "sha512-256"
	BLAKE2b256 = "blake2b-256"
)

// Algorithms lists every supported algorithm, SHA-256 first.
func Algorithms() []string {
	return []string{SHA256, SHA512_256, BLAKE2b256}
}

// Hasher computes content digests of documents. The zero value is not
// usable; obtain one from NewHasher.
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// DefaultHasher returns a SHA-256 hasher.
func DefaultHasher() Hasher {
	h, _ := NewHasher(SHA256)
	return h
}

// NewHasher returns a hasher for the named algorithm. An empty name selects
// SHA-256.
func NewHasher(algorithm string) (Hasher, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	switch algorithm {
	case "", SHA256:
		return Hasher{algorithm: SHA256, newHash: sha256.New}, nil
	case SHA512_256:
		return Hasher{algorithm: SHA512_256, newHash: sha512.New512_256}, nil
	case BLAKE2b256:
		return Hasher{algorithm: BLAKE2b256, newHash: newBlake2b256}, nil
	default:
		return Hasher{}, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

func newBlake2b256() hash.Hash {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return h
}

// Algorithm returns the algorithm name recorded alongside digests.
func (h Hasher) Algorithm() string { return h.algorithm }

// Sum returns the lowercase hex digest of data.
func (h Hasher) Sum(data []byte) string {
	d := h.newHash()
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

// SumReader streams r into the digest.
func (h Hasher) SumReader(r io.Reader) (string, error) {
	d := h.newHash()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}
