package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the indexer.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig holds database and vector index locations.
type StorageConfig struct {
	DataDir     string      `yaml:"data_dir"`
	TextIndex   IndexConfig `yaml:"text_index"`
	VisualIndex IndexConfig `yaml:"visual_index"`
}

// IndexConfig configures a single vector index. Each index carries its
// own path, dimension, and distance metric.
type IndexConfig struct {
	Path      string `yaml:"path"`      // defaults to <data_dir>/<name>_index.db
	Dimension int    `yaml:"dimension"`
	Metric    string `yaml:"metric"` // "l2" or "ip"
}

// EmbeddingConfig holds embedding model configuration.
type EmbeddingConfig struct {
	Text           TextModelConfig   `yaml:"text"`
	Visual         VisualModelConfig `yaml:"visual"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	BatchSize      int               `yaml:"batch_size"`
}

// TextModelConfig configures the text embedding model.
type TextModelConfig struct {
	Provider  string `yaml:"provider"` // "ollama", "openai", "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`    // empty: provider default
	APIKeyEnv string `yaml:"api_key_env"` // openai provider: env var holding the key
}

// VisualModelConfig configures the image embedding model and its
// cross-modal text encoder.
type VisualModelConfig struct {
	Provider string `yaml:"provider"` // "clip", "mock"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// ChunkingConfig holds text chunking parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // also the should-chunk threshold
	Overlap int `yaml:"overlap"`
}

// IngestConfig holds ingestion behavior configuration.
type IngestConfig struct {
	Includes         []string `yaml:"includes"`
	Excludes         []string `yaml:"excludes"`
	MaxTextLength    int      `yaml:"max_text_length"`
	ErrorDetailLimit int      `yaml:"error_detail_limit"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	TopK           int     `yaml:"top_k"`
	VisualMinScore float64 `yaml:"visual_min_score"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "minds_data",
			TextIndex: IndexConfig{
				Dimension: 1024,
				Metric:    "l2",
			},
			VisualIndex: IndexConfig{
				Dimension: 512,
				Metric:    "ip",
			},
		},
		Embedding: EmbeddingConfig{
			Text: TextModelConfig{
				Provider: "ollama",
				Model:    "bge-m3",
			},
			Visual: VisualModelConfig{
				Provider: "clip",
				Model:    "clip-vit-base-patch32",
			},
			TimeoutSeconds: 120,
			BatchSize:      100,
		},
		Chunking: ChunkingConfig{
			Size:    1500,
			Overlap: 150,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.txt", "**/*.md", "**/*.csv", "**/*.json", "**/*.log", "**/*.jpg", "**/*.jpeg", "**/*.png", "**/*.gif", "**/*.bmp", "**/*.svg", "**/*.webp"},
			Excludes: []string{"**/node_modules/**", "**/.git/**", "**/__pycache__/**", "**/minds_data/**"},
			MaxTextLength:    100000,
			ErrorDetailLimit: 5,
		},
		Search: SearchConfig{
			TopK:           5,
			VisualMinScore: 0.22,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for minds.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "minds.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".minds", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Storage.TextIndex.Dimension <= 0 {
		return fmt.Errorf("text index dimension must be > 0, got %d", c.Storage.TextIndex.Dimension)
	}
	if c.Storage.VisualIndex.Dimension <= 0 {
		return fmt.Errorf("visual index dimension must be > 0, got %d", c.Storage.VisualIndex.Dimension)
	}
	if err := validateMetric(c.Storage.TextIndex.Metric); err != nil {
		return fmt.Errorf("text index: %w", err)
	}
	if err := validateMetric(c.Storage.VisualIndex.Metric); err != nil {
		return fmt.Errorf("visual index: %w", err)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking size must be > 0, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking overlap must be >= 0, got %d", c.Chunking.Overlap)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search top_k must be > 0, got %d", c.Search.TopK)
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		return fmt.Errorf("embedding timeout_seconds must be > 0, got %d", c.Embedding.TimeoutSeconds)
	}
	return nil
}

func validateMetric(metric string) error {
	switch metric {
	case "l2", "ip":
		return nil
	default:
		return fmt.Errorf("unknown metric %q (want \"l2\" or \"ip\")", metric)
	}
}

// MetadataDBPath returns the path to the SQLite metadata database.
func (c *Config) MetadataDBPath() string {
	return filepath.Join(c.Storage.DataDir, "metadata.db")
}

// TextIndexPath returns the path to the text vector index file.
func (c *Config) TextIndexPath() string {
	if c.Storage.TextIndex.Path != "" {
		return c.Storage.TextIndex.Path
	}
	return filepath.Join(c.Storage.DataDir, "text_index.db")
}

// VisualIndexPath returns the path to the visual vector index file.
func (c *Config) VisualIndexPath() string {
	if c.Storage.VisualIndex.Path != "" {
		return c.Storage.VisualIndex.Path
	}
	return filepath.Join(c.Storage.DataDir, "visual_index.db")
}

// EnsureDataDir ensures the data directory exists.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.Storage.DataDir, 0755)
}
