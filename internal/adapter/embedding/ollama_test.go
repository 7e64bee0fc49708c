package embedding

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestOllamaEmbedTexts(t *testing.T) {
	var gotReq ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{3, 4, 0}, {0, 0, 2}},
		})
	}))
	defer server.Close()

	e := NewOllamaEmbedder("bge-m3", server.URL, 3, 10*time.Second)
	embeddings, err := e.EmbedTexts(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if gotReq.Model != "bge-m3" {
		t.Errorf("expected model bge-m3, got %q", gotReq.Model)
	}
	if len(gotReq.Input) != 2 || gotReq.Input[0] != "first" {
		t.Errorf("unexpected request inputs: %v", gotReq.Input)
	}

	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	// {3,4,0} normalizes to {0.6,0.8,0}.
	if math.Abs(float64(embeddings[0][0])-0.6) > 1e-4 || math.Abs(float64(embeddings[0][1])-0.8) > 1e-4 {
		t.Errorf("expected normalized vector, got %v", embeddings[0])
	}
	for i, emb := range embeddings {
		if n := vectorNorm(emb); math.Abs(n-1) > 1e-3 {
			t.Errorf("embedding %d not unit length: %v", i, n)
		}
	}
}

func TestOllamaBatchesLargeInputs(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		batchSizes = append(batchSizes, len(req.Input))

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{1, 0}
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
	}))
	defer server.Close()

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = "text"
	}

	e := NewOllamaEmbedder("bge-m3", server.URL, 2, 10*time.Second)
	embeddings, err := e.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(embeddings) != 150 {
		t.Errorf("expected 150 embeddings, got %d", len(embeddings))
	}
	if len(batchSizes) != 2 || batchSizes[0] != 100 || batchSizes[1] != 50 {
		t.Errorf("expected batches [100 50], got %v", batchSizes)
	}
}

func TestOllamaServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	e := NewOllamaEmbedder("bge-m3", server.URL, 3, 10*time.Second)
	if _, err := e.EmbedTexts(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestOllamaDimensionCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer server.Close()

	e := NewOllamaEmbedder("bge-m3", server.URL, 1024, 10*time.Second)
	if _, err := e.EmbedTexts(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error when model dimension disagrees with configuration")
	}
}

func TestOllamaEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder("bge-m3", "http://localhost:1", 3, time.Second)
	embeddings, err := e.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed of empty input failed: %v", err)
	}
	if len(embeddings) != 0 {
		t.Errorf("expected no embeddings, got %d", len(embeddings))
	}
}

func TestCLIPEmbedImage(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "photo.png")
	content := []byte("fake png bytes")
	if err := os.WriteFile(imgPath, content, 0o644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req clipImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil || string(decoded) != string(content) {
			t.Errorf("image payload did not round trip")
		}
		json.NewEncoder(w).Encode(clipResponse{Embedding: []float32{0, 5, 0, 0}})
	}))
	defer server.Close()

	e := NewCLIPEmbedder("clip-vit-base-patch32", server.URL, 4, 10*time.Second)
	emb, err := e.EmbedImage(context.Background(), imgPath)
	if err != nil {
		t.Fatalf("embed image failed: %v", err)
	}
	if n := vectorNorm(emb); math.Abs(n-1) > 1e-3 {
		t.Errorf("embedding not unit length: %v", n)
	}
}

func TestCLIPEmbedImageMissingFile(t *testing.T) {
	e := NewCLIPEmbedder("clip-vit-base-patch32", "http://localhost:1", 4, time.Second)
	if _, err := e.EmbedImage(context.Background(), "/does/not/exist.png"); err == nil {
		t.Error("expected error for missing image file")
	}
}

func TestCLIPEmbedTextForImageSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/text" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req clipTextRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "a photo of a cat" {
			t.Errorf("unexpected query text %q", req.Text)
		}
		json.NewEncoder(w).Encode(clipResponse{Embedding: []float32{1, 1, 0, 0}})
	}))
	defer server.Close()

	e := NewCLIPEmbedder("clip-vit-base-patch32", server.URL, 4, 10*time.Second)
	emb, err := e.EmbedTextForImageSearch(context.Background(), "a photo of a cat")
	if err != nil {
		t.Fatalf("embed text failed: %v", err)
	}
	if n := vectorNorm(emb); math.Abs(n-1) > 1e-3 {
		t.Errorf("embedding not unit length: %v", n)
	}
}

func TestCLIPServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(clipResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	e := NewCLIPEmbedder("clip-vit-base-patch32", server.URL, 4, 10*time.Second)
	if _, err := e.EmbedTextForImageSearch(context.Background(), "query"); err == nil {
		t.Error("expected error from service error field")
	}
}

func TestMockEmbeddersDeterministic(t *testing.T) {
	text := NewMockTextEmbedder(8)

	a, err := text.EmbedTexts(context.Background(), []string{"same input"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	b, err := text.EmbedTexts(context.Background(), []string{"same input"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("mock embedder not deterministic at %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
	if n := vectorNorm(a[0]); math.Abs(n-1) > 1e-3 {
		t.Errorf("mock embedding not unit length: %v", n)
	}

	visual := NewMockVisualEmbedder(8)
	img, err := visual.EmbedImage(context.Background(), "/photos/cat.png")
	if err != nil {
		t.Fatalf("embed image failed: %v", err)
	}
	if n := vectorNorm(img); math.Abs(n-1) > 1e-3 {
		t.Errorf("mock visual embedding not unit length: %v", n)
	}
}
