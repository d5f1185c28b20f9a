package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/xraph/tenure/activity"
)

// KeySize is the length of the chain key in bytes.
const KeySize = 32

// DefaultKey is the domain-separation key used when the host does not
// configure one. Deployments that need forgery resistance set their own.
var DefaultKey = [KeySize]byte{
	't', 'e', 'n', 'u', 'r', 'e', '.', 'a', 'u', 'd', 'i', 't', '.', 'c', 'h', 'a',
	'i', 'n', '.', 'v', '1', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// encMode uses Core Deterministic Encoding: sorted map keys, smallest
// integer encodings, no indefinite-length items.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("audit: CBOR encoder initialization failed: " + err.Error())
	}
}

// link is the hashed projection of an entry. The entry ID is excluded so
// the digest depends only on content and position.
type link struct {
	Seq          int64          `cbor:"1,keyasint"`
	PrevHash     string         `cbor:"2,keyasint"`
	ActorID      string         `cbor:"3,keyasint"`
	Action       string         `cbor:"4,keyasint"`
	ResourceType string         `cbor:"5,keyasint"`
	ResourceID   string         `cbor:"6,keyasint"`
	Details      map[string]any `cbor:"7,keyasint"`
	RequestID    string         `cbor:"8,keyasint"`
	CreatedAtMs  int64          `cbor:"9,keyasint"`
}

// hasher computes keyed BLAKE3 digests over entries.
type hasher struct {
	key [KeySize]byte
}

// Sum returns the hex digest of e. e.Hash is ignored.
func (h hasher) Sum(e *activity.Entry) (string, error) {
	data, err := encMode.Marshal(link{
		Seq:          e.Seq,
		PrevHash:     e.PrevHash,
		ActorID:      e.ActorID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		RequestID:    e.RequestID,
		CreatedAtMs:  e.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("audit: encode entry %d: %w", e.Seq, err)
	}
	bh, err := blake3.NewKeyed(h.key[:])
	if err != nil {
		return "", fmt.Errorf("audit: init hasher: %w", err)
	}
	_, _ = bh.Write(data)
	return hex.EncodeToString(bh.Sum(nil)), nil
}

// normalizeDetails converts details to the shape every backend returns
// after a storage round trip: JSON objects, arrays, strings, float64
// numbers, bools and nil.
func normalizeDetails(d map[string]any) (map[string]any, error) {
	if len(d) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("audit: details are not JSON-serializable: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("audit: normalize details: %w", err)
	}
	return out, nil
}
