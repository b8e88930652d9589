package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// FakeEmbedder produces deterministic vectors derived from the text content,
// so semantically identical texts land at identical points and tests never
// touch the network. Dim must match the deployment's vector dimension when
// vectors are written to the database.
type FakeEmbedder struct {
	Dim int
}

// EmbedBatch implements the embedding contract: order-preserving,
// all-or-nothing.
func (f *FakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	dim := f.Dim
	if dim <= 0 {
		dim = 8
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, dim)
	}
	return vectors, nil
}

// deterministicVector expands a text digest into a unit-scale vector.
func deterministicVector(text string, dim int) []float32 {
	seed := sha256.Sum256([]byte(text))

	vec := make([]float32, dim)
	for i := range vec {
		// Re-digest per position so dimensions beyond the seed length stay
		// independent.
		var pos [8]byte
		binary.BigEndian.PutUint64(pos[:], uint64(i))
		h := sha256.Sum256(append(seed[:], pos[:]...))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u)/float32(1<<31) - 1 // [-1, 1)
	}
	return vec
}
