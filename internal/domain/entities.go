package domain

import "time"

// NoVector marks a record whose embedding has not been written yet.
// Real vector ids assigned by an index are always >= 0.
const NoVector int64 = -1

// MemoryItem is one unit of ingested text content.
type MemoryItem struct {
	ID          int64
	Source      string
	Content     string
	Metadata    map[string]any
	CreatedAt   time.Time
	VectorID    int64 // NoVector when unset (chunked or not yet embedded)
	ContentHash string
}

// Chunk is a sub-segment of a MemoryItem too long to embed whole.
// StartPos/EndPos are byte offsets into the parent content, end exclusive.
type Chunk struct {
	ID           int64
	MemoryItemID int64
	Text         string
	Index        int
	StartPos     int
	EndPos       int
	VectorID     int64
}

// VisualItem is one ingested image.
type VisualItem struct {
	ID        int64
	Path      string
	OCRText   string
	Metadata  map[string]any
	CreatedAt time.Time
	VectorID  int64 // NoVector when unset
	ImageHash string
}

// ResolvedKind tags the outcome of a text vector-id resolution.
type ResolvedKind int

const (
	ResolvedNone ResolvedKind = iota
	ResolvedChunk
	ResolvedItem
)

// Resolved is the content a text vector id maps back to. A vector id may
// belong to a chunk (long-document case) or directly to a memory item
// (short-document case); Kind says which.
type Resolved struct {
	Kind         ResolvedKind
	Text         string
	Source       string
	Metadata     map[string]any
	CreatedAt    time.Time
	MemoryItemID int64
	ChunkID      int64 // set when Kind == ResolvedChunk
}

// SearchMode selects which indices a search runs against.
type SearchMode string

const (
	ModeText   SearchMode = "text"
	ModeVisual SearchMode = "visual"
	ModeBoth   SearchMode = "both"
)

// ResultKind distinguishes text results from visual results.
type ResultKind string

const (
	ResultText   ResultKind = "text"
	ResultVisual ResultKind = "visual"
)

// SearchResult is one ranked hit across either modality.
type SearchResult struct {
	VectorID  int64          `json:"vector_id"`
	Score     float64        `json:"score"`
	Kind      ResultKind     `json:"type"`
	Text      string         `json:"text,omitempty"`
	Path      string         `json:"path,omitempty"`
	Source    string         `json:"source,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Stats summarizes stored state.
type Stats struct {
	MemoryItems   int64
	Chunks        int64
	VisualItems   int64
	BySource      map[string]int64
	TextVectors   int64
	VisualVectors int64
}

// Source tags used by the collectors that feed the indexer.
const (
	SourceBrowser        = "browser"
	SourceFileSystem     = "file_system"
	SourceClipboard      = "clipboard"
	SourceClipboardImage = "clipboard_image"
	SourceClipboardFiles = "clipboard_files"
	SourceCalendar       = "calendar"
	SourceEmail          = "email"
	SourceImageOCR       = "image_ocr"
	SourceNote           = "note"
)
