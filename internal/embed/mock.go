package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// MockProvider produces deterministic vectors derived from the input text.
// Similar texts do not get similar vectors; it exists so the index and
// pipeline can run offline and in tests.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	_ = ctx
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, deterministicVector(text, m.dim))
	}
	return vectors, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := sha256.Sum256([]byte(input))
	state := seed[:]
	for i := 0; i < dim; i++ {
		if i%8 == 0 && i > 0 {
			next := sha256.Sum256(state)
			state = next[:]
		}
		bits := binary.BigEndian.Uint32(state[(i%8)*4 : (i%8)*4+4])
		// map into [-1, 1)
		vec[i] = float32(int64(bits)-(1<<31)) / float32(1<<31)
	}
	return vec
}
