// Package codec implements the compression codec for sequence and count
// map blobs.
// Implements: prd007-sequence-maps R2; docs/ARCHITECTURE § Aux Blobs.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// Snappy encodes values as snappy-compressed JSON. Maps stored this way
// are small and written rarely; block encoding (no framing) keeps the
// stored blob minimal.
type Snappy struct{}

// NewSnappy returns the codec.
func NewSnappy() Snappy { return Snappy{} }

func (Snappy) Compress(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode map: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func (Snappy) Uncompress(data []byte, v any) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("uncompress map: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode map: %w", err)
	}
	return nil
}

var _ types.MapCodec = Snappy{}
