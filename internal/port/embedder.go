package port

import "context"

// TextEmbedder generates vector embeddings for text.
type TextEmbedder interface {
	// EmbedTexts generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VisualEmbedder generates vector embeddings for images, plus text
// embeddings in the same vector space for text-to-image search.
type VisualEmbedder interface {
	// EmbedImage generates an embedding for the image at path.
	EmbedImage(ctx context.Context, path string) ([]float32, error)

	// EmbedTextForImageSearch encodes a text query into the visual
	// embedding space. This is a distinct encoder from EmbedTexts.
	EmbedTextForImageSearch(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
