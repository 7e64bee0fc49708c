package cli

import (
	"fmt"
	"time"

	"github.com/DouaBoudokhan/MedTech-AIMinds/config"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/chunker"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/embedding"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/fs"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/index"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/store"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/port"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/usecase"
)

// storage bundles the store and both indices every command opens.
type storage struct {
	store       *store.SQLiteStore
	textIndex   *index.Flat
	visualIndex *index.Flat
}

func openStorage(cfg *config.Config) (*storage, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(cfg.MetadataDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	textIdx, err := index.Open(cfg.TextIndexPath(), cfg.Storage.TextIndex.Dimension, cfg.Storage.TextIndex.Metric)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open text index: %w", err)
	}

	visualIdx, err := index.Open(cfg.VisualIndexPath(), cfg.Storage.VisualIndex.Dimension, cfg.Storage.VisualIndex.Metric)
	if err != nil {
		textIdx.Close()
		st.Close()
		return nil, fmt.Errorf("failed to open visual index: %w", err)
	}

	return &storage{store: st, textIndex: textIdx, visualIndex: visualIdx}, nil
}

func (s *storage) Close() {
	s.visualIndex.Close()
	s.textIndex.Close()
	s.store.Close()
}

// newTextEmbedder builds the text embedder for the configured provider.
func newTextEmbedder(cfg *config.Config) (port.TextEmbedder, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second
	dimension := cfg.Storage.TextIndex.Dimension

	switch cfg.Embedding.Text.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Text.Model, cfg.Embedding.Text.BaseURL, dimension, timeout), nil
	case "openai":
		keyEnv := cfg.Embedding.Text.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		return embedding.NewOpenAIEmbedder(cfg.Embedding.Text.Model, cfg.Embedding.Text.BaseURL, keyEnv, dimension, timeout)
	case "mock":
		return embedding.NewMockTextEmbedder(dimension), nil
	default:
		return nil, fmt.Errorf("unsupported text embedding provider: %s", cfg.Embedding.Text.Provider)
	}
}

// newVisualEmbedder builds the image embedder for the configured provider.
func newVisualEmbedder(cfg *config.Config) (port.VisualEmbedder, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second
	dimension := cfg.Storage.VisualIndex.Dimension

	switch cfg.Embedding.Visual.Provider {
	case "clip":
		return embedding.NewCLIPEmbedder(cfg.Embedding.Visual.Model, cfg.Embedding.Visual.BaseURL, dimension, timeout), nil
	case "mock":
		return embedding.NewMockVisualEmbedder(dimension), nil
	default:
		return nil, fmt.Errorf("unsupported visual embedding provider: %s", cfg.Embedding.Visual.Provider)
	}
}

// newIngestor wires the full ingestion pipeline on top of open storage.
func newIngestor(cfg *config.Config, s *storage) (*usecase.Ingestor, error) {
	textEmb, err := newTextEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	visualEmb, err := newVisualEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	return usecase.NewIngestor(
		s.store, s.textIndex, s.visualIndex,
		textEmb, visualEmb,
		chunker.NewSentenceChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes),
		fs.PlainText{},
		logger,
		usecase.IngestorConfig{
			MaxTextLength:    cfg.Ingest.MaxTextLength,
			EmbedTimeout:     time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
			ErrorDetailLimit: cfg.Ingest.ErrorDetailLimit,
		},
	)
}

// newSearcher wires the query engine on top of open storage.
func newSearcher(cfg *config.Config, s *storage) (*usecase.Searcher, error) {
	textEmb, err := newTextEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	visualEmb, err := newVisualEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	return usecase.NewSearcher(
		s.store, s.textIndex, s.visualIndex,
		textEmb, visualEmb,
		logger,
		cfg.Search.VisualMinScore,
	), nil
}
