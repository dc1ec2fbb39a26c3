package artifact

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"verity/internal/evidence"
)

// Snapshot is the canonical content an artifact commits to. Field order is
// fixed by the struct, so json.Marshal yields a stable byte serialization
// for identical input.
type Snapshot struct {
	ID              string           `json:"id"`
	Verdict         evidence.Verdict `json:"verdict"`
	Confidence      float64          `json:"confidence"`
	EvidenceChain   []evidence.Item  `json:"evidence_chain"`
	Timestamp       time.Time        `json:"timestamp"`
	OriginalRequest any              `json:"original_request"`
}

// Signed is the tamper-evident result attached to a stored investigation.
// Re-hashing the snapshot's canonical bytes must reproduce ContentHash;
// that check is the system's integrity guarantee.
type Signed struct {
	ID          string       `json:"id"`
	ContentHash string       `json:"content_hash"`
	Signature   string       `json:"signature"`
	ClaimReview *ClaimReview `json:"claim_review,omitempty"`
}

// Build hashes and signs the snapshot's canonical bytes.
func Build(signer Signer, snap Snapshot) (*Signed, error) {
	data, err := canonical(snap)
	if err != nil {
		return nil, err
	}
	return &Signed{
		ID:          signer.NewID(),
		ContentHash: signer.Hash(data),
		Signature:   signer.Sign(data),
	}, nil
}

// Verify re-hashes the snapshot and compares against the stored artifact in
// constant time. A false return means the snapshot or the artifact was
// altered since signing.
func Verify(signer Signer, snap Snapshot, signed *Signed) (bool, error) {
	if signed == nil {
		return false, fmt.Errorf("artifact: nothing to verify")
	}
	data, err := canonical(snap)
	if err != nil {
		return false, err
	}
	hashOK := subtle.ConstantTimeCompare([]byte(signer.Hash(data)), []byte(signed.ContentHash)) == 1
	sigOK := subtle.ConstantTimeCompare([]byte(signer.Sign(data)), []byte(signed.Signature)) == 1
	return hashOK && sigOK, nil
}

func canonical(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("artifact: marshal snapshot: %w", err)
	}
	return data, nil
}
