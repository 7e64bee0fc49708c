package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultCLIPURL = "http://localhost:8500"

// CLIPEmbedder talks to a local CLIP sidecar service that exposes the
// image encoder and the paired text encoder of one CLIP checkpoint. The
// text encoder here maps queries into image space and is unrelated to
// the document text embedder.
type CLIPEmbedder struct {
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

type clipImageRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64-encoded file contents
}

type clipTextRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type clipResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewCLIPEmbedder creates a client for the sidecar. An empty baseURL
// falls back to CLIP_HOST, then to the local default.
func NewCLIPEmbedder(model, baseURL string, dimension int, timeout time.Duration) *CLIPEmbedder {
	if baseURL == "" {
		baseURL = os.Getenv("CLIP_HOST")
	}
	if baseURL == "" {
		baseURL = defaultCLIPURL
	}

	return &CLIPEmbedder{
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

// EmbedImage reads and embeds the image at path.
func (e *CLIPEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	req := clipImageRequest{
		Model: e.model,
		Image: base64.StdEncoding.EncodeToString(data),
	}
	return e.embed(ctx, "/embed/image", req)
}

// EmbedTextForImageSearch embeds a text query into image space.
func (e *CLIPEmbedder) EmbedTextForImageSearch(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "/embed/text", clipTextRequest{Model: e.model, Text: text})
}

func (e *CLIPEmbedder) embed(ctx context.Context, endpoint string, payload any) ([]float32, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp clipResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if embResp.Error != "" {
		return nil, fmt.Errorf("clip service error: %s", embResp.Error)
	}
	if len(embResp.Embedding) != e.dimension {
		return nil, fmt.Errorf("model %s returned %d-dim vector, expected %d", e.model, len(embResp.Embedding), e.dimension)
	}

	normalize(embResp.Embedding)
	return embResp.Embedding, nil
}

func (e *CLIPEmbedder) Dimension() int {
	return e.dimension
}

func (e *CLIPEmbedder) ModelName() string {
	return e.model
}
