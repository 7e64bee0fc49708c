package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/chunker"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/fs"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/port"
)

// ProgressFunc reports bulk-ingestion progress to the caller.
type ProgressFunc func(processed, total int, path string)

// IngestorConfig carries the tunables of the ingestion pipeline.
type IngestorConfig struct {
	MaxTextLength    int           // rune cap applied during normalization
	EmbedTimeout     time.Duration // per embedding call; zero disables
	ErrorDetailLimit int           // full-detail occurrences per error signature
}

// Ingestor routes content into the metadata store and the two vector
// indices: text through normalize-dedup-chunk-embed-link, images through
// hash-dedup-embed-link. Writes assume a single collector process;
// there is no cross-process locking beyond SQLite's own.
type Ingestor struct {
	store          port.MetadataStore
	textIndex      port.VectorIndex
	visualIndex    port.VectorIndex
	textEmbedder   port.TextEmbedder
	visualEmbedder port.VisualEmbedder
	chunker        *chunker.SentenceChunker
	walker         *fs.Walker
	extractor      port.TextExtractor
	logger         *slog.Logger
	cfg            IngestorConfig
}

// NewIngestor wires the pipeline and verifies that each embedder agrees
// with its index about vector width. A persisted index built by a
// different model must be rebuilt before ingestion can continue, so a
// mismatch fails here, once and loudly, instead of per item.
func NewIngestor(
	store port.MetadataStore,
	textIndex, visualIndex port.VectorIndex,
	textEmbedder port.TextEmbedder,
	visualEmbedder port.VisualEmbedder,
	chunker *chunker.SentenceChunker,
	walker *fs.Walker,
	extractor port.TextExtractor,
	logger *slog.Logger,
	cfg IngestorConfig,
) (*Ingestor, error) {
	if textEmbedder.Dimension() != textIndex.Dimension() {
		return nil, fmt.Errorf("text model %s produces %d-dim vectors but the index holds %d-dim: rebuild the index or revert the model",
			textEmbedder.ModelName(), textEmbedder.Dimension(), textIndex.Dimension())
	}
	if visualEmbedder.Dimension() != visualIndex.Dimension() {
		return nil, fmt.Errorf("visual model %s produces %d-dim vectors but the index holds %d-dim: rebuild the index or revert the model",
			visualEmbedder.ModelName(), visualEmbedder.Dimension(), visualIndex.Dimension())
	}

	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 100000
	}
	if cfg.ErrorDetailLimit == 0 {
		cfg.ErrorDetailLimit = 5
	}

	return &Ingestor{
		store:          store,
		textIndex:      textIndex,
		visualIndex:    visualIndex,
		textEmbedder:   textEmbedder,
		visualEmbedder: visualEmbedder,
		chunker:        chunker,
		walker:         walker,
		extractor:      extractor,
		logger:         logger,
		cfg:            cfg,
	}, nil
}

// TextIngest is the outcome of one text ingestion.
type TextIngest struct {
	MemoryItemID int64
	Deduplicated bool
	Chunks       int
	Vectors      int
}

// ImageIngest is the outcome of one image ingestion.
type ImageIngest struct {
	VisualItemID int64
	Deduplicated bool
	OCR          *TextIngest // set when OCR text was ingested alongside
}

// FileIngest is the outcome of ingesting one file from disk.
type FileIngest struct {
	Path   string
	Image  bool
	Text   *TextIngest
	Visual *ImageIngest
}

// IngestText ingests one unit of text. Re-ingesting identical content
// under the same source returns the existing item id without touching
// the index. An item whose embedding fails keeps its row and is picked
// up later by Repair.
func (u *Ingestor) IngestText(ctx context.Context, text, source string, metadata map[string]any) (*TextIngest, error) {
	normalized := normalizeText(text, u.cfg.MaxTextLength)
	hash := contentHash(source, normalized)

	existing, err := u.store.GetMemoryItemByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed dedup lookup: %w", err)
	}
	if existing != nil {
		// A hit with no vector and no chunks is a known repair case;
		// re-embedding here would stall bulk runs, so it is deferred
		// to the explicit repair pass.
		u.logger.Debug("duplicate content", "source", source, "id", existing.ID)
		return &TextIngest{MemoryItemID: existing.ID, Deduplicated: true}, nil
	}

	itemID, err := u.store.AddMemoryItem(ctx, domain.MemoryItem{
		Source:      source,
		Content:     normalized,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
		VectorID:    domain.NoVector,
		ContentHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory item: %w", err)
	}

	chunks, vectors, err := u.embedAndLink(ctx, itemID, normalized)
	if err != nil {
		// The row stays: the text is retained but unsearchable until
		// the repair pass re-embeds it.
		return nil, fmt.Errorf("failed to embed item %d: %w", itemID, err)
	}

	return &TextIngest{MemoryItemID: itemID, Chunks: chunks, Vectors: vectors}, nil
}

// embedAndLink runs the chunk-or-embed half of text ingestion for an
// already-inserted item row. Repair reuses it on orphaned rows.
func (u *Ingestor) embedAndLink(ctx context.Context, itemID int64, text string) (chunkCount, vectorCount int, err error) {
	if u.chunker.ShouldChunk(text) {
		segments, err := u.chunker.Chunk(text)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to chunk: %w", err)
		}

		texts := make([]string, len(segments))
		for i, s := range segments {
			texts[i] = s.Text
		}

		vectors, err := u.embedTexts(ctx, texts)
		if err != nil {
			return 0, 0, err
		}

		ids, err := u.textIndex.Add(vectors)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to index vectors: %w", err)
		}

		chunks := make([]domain.Chunk, len(segments))
		for i, s := range segments {
			chunks[i] = domain.Chunk{
				MemoryItemID: itemID,
				Text:         s.Text,
				Index:        i,
				StartPos:     s.Start,
				EndPos:       s.End,
				VectorID:     ids[i],
			}
		}
		if err := u.store.AddChunks(ctx, chunks); err != nil {
			return 0, 0, fmt.Errorf("failed to store chunks: %w", err)
		}

		return len(chunks), len(ids), nil
	}

	vectors, err := u.embedTexts(ctx, []string{text})
	if err != nil {
		return 0, 0, err
	}

	ids, err := u.textIndex.Add(vectors)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to index vector: %w", err)
	}

	if err := u.store.SetMemoryItemVectorID(ctx, itemID, ids[0]); err != nil {
		return 0, 0, fmt.Errorf("failed to link vector: %w", err)
	}

	return 0, 1, nil
}

// IngestImage ingests one image. The dedup hash covers path, size and
// mtime, so an edited image re-ingests while an untouched one does not.
// OCR text supplied with the image goes through the text pipeline under
// its own source tag; its failure does not fail the image.
func (u *Ingestor) IngestImage(ctx context.Context, path, ocrText string, metadata map[string]any) (*ImageIngest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	hash := hashString(fmt.Sprintf("%s|%d|%d", resolved, info.Size(), info.ModTime().Unix()))

	existing, err := u.store.GetVisualItemByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed dedup lookup: %w", err)
	}
	if existing != nil {
		u.logger.Debug("duplicate image", "path", resolved, "id", existing.ID)
		return &ImageIngest{VisualItemID: existing.ID, Deduplicated: true}, nil
	}

	vector, err := u.embedImage(ctx, resolved)
	if err != nil {
		return nil, err
	}

	ids, err := u.visualIndex.Add([][]float32{vector})
	if err != nil {
		return nil, fmt.Errorf("failed to index vector: %w", err)
	}

	visualID, err := u.store.AddVisualItem(ctx, domain.VisualItem{
		Path:      resolved,
		OCRText:   ocrText,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
		VectorID:  ids[0],
		ImageHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert visual item: %w", err)
	}

	out := &ImageIngest{VisualItemID: visualID}
	if ocrText != "" {
		ocr, err := u.IngestText(ctx, ocrText, domain.SourceImageOCR, map[string]any{"image_path": path})
		if err != nil {
			u.logger.Warn("failed to ingest ocr text", "path", path, "error", err)
		} else {
			out.OCR = ocr
		}
	}

	return out, nil
}

// IngestFile routes a file by extension: images to the visual pipeline,
// everything else through text extraction.
func (u *Ingestor) IngestFile(ctx context.Context, path string) (*FileIngest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	if fs.IsImagePath(abs) {
		visual, err := u.IngestImage(ctx, abs, "", nil)
		if err != nil {
			return nil, err
		}
		return &FileIngest{Path: abs, Image: true, Visual: visual}, nil
	}

	text, err := u.extractor.Extract(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	ingest, err := u.IngestText(ctx, text, domain.SourceFileSystem, map[string]any{"path": abs})
	if err != nil {
		return nil, err
	}
	return &FileIngest{Path: abs, Text: ingest}, nil
}

// IngestPath ingests a directory tree or a single file. Directories go
// through the walker's include/exclude patterns; a file named directly
// is ingested regardless of patterns.
func (u *Ingestor) IngestPath(ctx context.Context, path string, progress ProgressFunc) (*IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if info.IsDir() {
		return u.IngestDirectory(ctx, path, progress)
	}

	result := &IngestResult{}
	out, err := u.IngestFile(ctx, path)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		return result, nil
	}
	result.tally(out)
	if progress != nil {
		progress(1, 1, path)
	}
	return result, nil
}

// IngestDirectory walks root and ingests every matching file. Per-file
// failures are recorded and skipped; they never abort the batch.
func (u *Ingestor) IngestDirectory(ctx context.Context, root string, progress ProgressFunc) (*IngestResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &IngestResult{}
	reporter := newErrorReporter(u.logger, u.cfg.ErrorDetailLimit)

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			reporter.finish(result)
			return result, err
		}

		out, err := u.IngestFile(ctx, file.Path)
		if err != nil {
			result.Failed++
			source := domain.SourceFileSystem
			if fs.IsImagePath(file.Path) {
				source = "image"
			}
			reporter.report(source, err)
		} else {
			result.tally(out)
		}

		if progress != nil {
			progress(i+1, len(files), file.Path)
		}
	}

	reporter.finish(result)
	return result, nil
}

// IngestBrowserHistory ingests every record of a browser-history export
// as text under the browser source, the whole record as metadata.
func (u *Ingestor) IngestBrowserHistory(ctx context.Context, jsonPath string) (*IngestResult, error) {
	records, err := fs.ReadBrowserHistory(jsonPath)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{}
	reporter := newErrorReporter(u.logger, u.cfg.ErrorDetailLimit)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			reporter.finish(result)
			return result, err
		}

		out, err := u.IngestText(ctx, record.Text(), domain.SourceBrowser, record)
		if err != nil {
			result.Failed++
			reporter.report(domain.SourceBrowser, err)
			continue
		}

		if out.Deduplicated {
			result.Deduplicated++
		} else {
			result.Ingested++
			result.Chunks += out.Chunks
			result.Vectors += out.Vectors
		}
	}

	reporter.finish(result)
	return result, nil
}

// Repair re-runs the embed-and-link path for items whose embedding was
// never written: rows with no vector id and no chunks.
func (u *Ingestor) Repair(ctx context.Context) (*RepairResult, error) {
	candidates, err := u.store.RepairCandidates(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list repair candidates: %w", err)
	}

	result := &RepairResult{}
	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Scanned++
		if _, _, err := u.embedAndLink(ctx, item.ID, item.Content); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", item.ID, err))
			u.logger.Warn("repair failed", "id", item.ID, "error", err)
			continue
		}
		result.Repaired++
	}

	return result, nil
}

// Save checkpoints both vector indices. Vectors added since the last
// save live only in memory, so callers checkpoint at the end of a run.
func (u *Ingestor) Save() error {
	if err := u.textIndex.Save(); err != nil {
		return fmt.Errorf("failed to save text index: %w", err)
	}
	if err := u.visualIndex.Save(); err != nil {
		return fmt.Errorf("failed to save visual index: %w", err)
	}
	return nil
}

func (r *IngestResult) tally(out *FileIngest) {
	switch {
	case out.Visual != nil && out.Visual.Deduplicated:
		r.Deduplicated++
	case out.Visual != nil:
		r.Ingested++
		r.Vectors++
		if out.Visual.OCR != nil && !out.Visual.OCR.Deduplicated {
			r.Chunks += out.Visual.OCR.Chunks
			r.Vectors += out.Visual.OCR.Vectors
		}
	case out.Text != nil && out.Text.Deduplicated:
		r.Deduplicated++
	case out.Text != nil:
		r.Ingested++
		r.Chunks += out.Text.Chunks
		r.Vectors += out.Text.Vectors
	}
}

func (u *Ingestor) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := u.embedContext(ctx)
	defer cancel()

	vectors, err := u.textEmbedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if err := checkFinite(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (u *Ingestor) embedImage(ctx context.Context, path string) ([]float32, error) {
	ctx, cancel := u.embedContext(ctx)
	defer cancel()

	vector, err := u.visualEmbedder.EmbedImage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to embed image: %w", err)
	}
	if err := checkFinite([][]float32{vector}); err != nil {
		return nil, err
	}
	return vector, nil
}

// embedContext bounds one embedding call. A model stuck on an item
// becomes a per-item failure instead of hanging the batch.
func (u *Ingestor) embedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.cfg.EmbedTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, u.cfg.EmbedTimeout)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeText collapses whitespace runs to single spaces, strips
// control characters below 0x20, trims, and caps the length in runes.
func normalizeText(text string, maxLen int) string {
	text = whitespaceRun.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 0x20 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}

	text = strings.TrimSpace(b.String())
	if maxLen > 0 {
		text = truncateRunes(text, maxLen)
	}
	return text
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func contentHash(source, normalized string) string {
	return hashString(source + "|" + normalized)
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func checkFinite(vectors [][]float32) error {
	for i, v := range vectors {
		for _, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("embedding %d contains non-finite values", i)
			}
		}
	}
	return nil
}
