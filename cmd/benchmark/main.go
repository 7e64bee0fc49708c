package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DouaBoudokhan/MedTech-AIMinds/config"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/embedding"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/index"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/store"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/port"
)

func main() {
	dataDir := flag.String("dir", ".", "Directory holding the knowledge base")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir . -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model connection, index files)")
		fmt.Println("  2. Semantic similarity (query vs results)")
		fmt.Println("  3. Resolution (every hit maps back to stored content)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !filepath.IsAbs(cfg.Storage.DataDir) {
		cfg.Storage.DataDir = filepath.Join(*dataDir, cfg.Storage.DataDir)
	}

	st, err := store.New(cfg.MetadataDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening metadata store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	textIndex, err := index.Open(cfg.TextIndexPath(), cfg.Storage.TextIndex.Dimension, cfg.Storage.TextIndex.Metric)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening text index: %v\n", err)
		os.Exit(1)
	}
	defer textIndex.Close()

	embedder, err := setupEmbedder(cfg, textIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Text vectors: %d\n", textIndex.Count())
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Text.Model, cfg.Embedding.Text.Provider)
	fmt.Printf("Dimension: %d, metric: %s\n", textIndex.Dimension(), textIndex.Metric())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	start := time.Now()
	vectors, err := embedder.EmbedTexts(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Query embedded in %s\n\n", time.Since(start).Round(time.Millisecond))

	hits, err := textIndex.Search(vectors[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Println("No vectors indexed - run 'minds ingest' first")
		os.Exit(1)
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(hits))

	totalScore := 0.0
	unresolved := 0
	for i, hit := range hits {
		score := 1.0 / (1.0 + float64(hit.Score))
		totalScore += score

		resolved, err := st.ResolveTextVectorID(ctx, hit.ID)
		if err != nil || resolved.Kind == domain.ResolvedNone {
			unresolved++
			fmt.Printf("%d. [%.3f] vector %d: UNRESOLVED\n\n", i+1, score, hit.ID)
			continue
		}

		preview := strings.ReplaceAll(resolved.Text, "\n", " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		rating := "LOW"
		if score > 0.7 {
			rating = "HIGH"
		} else if score > 0.5 {
			rating = "GOOD"
		} else if score > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s (vector %d)\n", i+1, rating, score, resolved.Source, hit.ID)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(hits))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average score: %.3f\n", avgScore)
	fmt.Printf("  Top-1 score:   %.3f\n", 1.0/(1.0+float64(hits[0].Score)))
	fmt.Printf("  Unresolved:    %d\n", unresolved)

	switch {
	case unresolved > 0:
		fmt.Println("  Status: BROKEN - run 'minds check' and 'minds repair'")
	case avgScore > 0.5:
		fmt.Println("  Status: GOOD - semantic search working well")
	case avgScore > 0.3:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - may need a better model or re-ingestion")
	}
}

func setupEmbedder(cfg *config.Config, textIndex *index.Flat) (port.TextEmbedder, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second

	switch cfg.Embedding.Text.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Text.Model, cfg.Embedding.Text.BaseURL, textIndex.Dimension(), timeout), nil
	case "mock":
		return embedding.NewMockTextEmbedder(textIndex.Dimension()), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Text.Provider)
	}
}
