package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIEmbedTexts(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "sk-test")

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req openaiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		// Vectors deliberately out of order: the index field decides.
		json.NewEncoder(w).Encode(openaiEmbedResponse{
			Data: []openaiEmbedData{
				{Embedding: []float32{0, 0, 2}, Index: 1},
				{Embedding: []float32{3, 4, 0}, Index: 0},
			},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder("text-embedding-3-small", server.URL, "TEST_EMBED_KEY", 3, 10*time.Second)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	embeddings, err := e.EmbedTexts(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	// Input 0 got the {3,4,0} vector despite arriving second.
	if math.Abs(float64(embeddings[0][0])-0.6) > 1e-4 || math.Abs(float64(embeddings[0][1])-0.8) > 1e-4 {
		t.Errorf("expected reordered normalized vector, got %v", embeddings[0])
	}
	for i, emb := range embeddings {
		if n := vectorNorm(emb); math.Abs(n-1) > 1e-3 {
			t.Errorf("embedding %d not unit length: %v", i, n)
		}
	}
}

func TestOpenAIMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")

	_, err := NewOpenAIEmbedder("text-embedding-3-small", "", "TEST_EMBED_KEY", 1536, time.Second)
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestOpenAIAPIError(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "sk-test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiEmbedResponse{
			Error: &openaiError{Message: "model not found", Type: "invalid_request_error"},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder("bogus", server.URL, "TEST_EMBED_KEY", 3, time.Second)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}
	if _, err := e.EmbedTexts(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error from API error response")
	}
}

func TestOpenAIMissingVector(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "sk-test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiEmbedResponse{
			Data: []openaiEmbedData{{Embedding: []float32{1, 0, 0}, Index: 0}},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder("text-embedding-3-small", server.URL, "TEST_EMBED_KEY", 3, time.Second)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}
	if _, err := e.EmbedTexts(context.Background(), []string{"one", "two"}); err == nil {
		t.Fatal("expected error when a vector is missing from the response")
	}
}
