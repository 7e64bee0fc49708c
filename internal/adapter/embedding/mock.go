package embedding

import "context"

// MockTextEmbedder derives deterministic vectors from character values.
// Identical inputs produce identical vectors, which is all dedup and
// ranking tests need.
type MockTextEmbedder struct {
	dimension int
}

func NewMockTextEmbedder(dimension int) *MockTextEmbedder {
	return &MockTextEmbedder{dimension: dimension}
}

func (e *MockTextEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = charVector(texts[i], e.dimension)
	}
	return embeddings, nil
}

func (e *MockTextEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockTextEmbedder) ModelName() string {
	return "mock"
}

// MockVisualEmbedder derives vectors from the image path or query text,
// so an image and a query that share characters land near each other.
type MockVisualEmbedder struct {
	dimension int
}

func NewMockVisualEmbedder(dimension int) *MockVisualEmbedder {
	return &MockVisualEmbedder{dimension: dimension}
}

func (e *MockVisualEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	return charVector(path, e.dimension), nil
}

func (e *MockVisualEmbedder) EmbedTextForImageSearch(ctx context.Context, text string) ([]float32, error) {
	return charVector(text, e.dimension), nil
}

func (e *MockVisualEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockVisualEmbedder) ModelName() string {
	return "mock"
}

func charVector(s string, dimension int) []float32 {
	v := make([]float32, dimension)
	for j, r := range s {
		if j < dimension {
			v[j] = float32(r) / 1000.0
		}
	}
	normalize(v)
	return v
}
