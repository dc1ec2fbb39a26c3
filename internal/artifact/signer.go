// Package artifact builds tamper-evident signed artifacts over investigation
// snapshots: a content hash plus an HMAC signature of a canonical
// serialization, with an optional schema.org ClaimReview export.
package artifact

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Signer is the cryptographic collaborator consumed by the investigation
// pipeline: content hashing, signing, and id generation. Implementations
// must be safe for concurrent use.
type Signer interface {
	// Hash returns the hex-encoded digest of data.
	Hash(data []byte) string
	// Sign returns the hex-encoded signature of data.
	Sign(data []byte) string
	// NewID returns a fresh unique identifier.
	NewID() string
}

// HMACSigner signs with HMAC-SHA256 under a fixed key and hashes with
// plain SHA-256. IDs are random UUIDs.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner creates a signer over the given key.
func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("artifact: signing key is empty")
	}
	return &HMACSigner{key: key}, nil
}

// NewEphemeralSigner creates a signer over a random process-lifetime key.
// Artifacts signed with it cannot be verified after restart; pair it with
// the in-memory store only.
func NewEphemeralSigner() *HMACSigner {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("artifact: read random key: %v", err))
	}
	return &HMACSigner{key: key}
}

func (s *HMACSigner) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *HMACSigner) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *HMACSigner) NewID() string {
	return uuid.NewString()
}
