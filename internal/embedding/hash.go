package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// Hash is a deterministic offline provider: identical text (case-insensitive)
// always yields the same vector, unrelated text yields unrelated vectors.
type Hash struct {
	Dimensions int
}

func NewHash(dimensions int) Hash {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return Hash{Dimensions: dimensions}
}

func (h Hash) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, ErrEmptyText
	}
	out := make([]float32, h.Dimensions)
	var block [sha256.Size]byte
	var counter [4]byte
	for i := range out {
		if i%(sha256.Size/4) == 0 {
			binary.BigEndian.PutUint32(counter[:], uint32(i/(sha256.Size/4)))
			block = sha256.Sum256(append([]byte(text), counter[:]...))
		}
		off := (i % (sha256.Size / 4)) * 4
		v := binary.BigEndian.Uint32(block[off : off+4])
		out[i] = float32(int(v%2000)-1000) / 1000
	}
	return out, nil
}
