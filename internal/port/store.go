package port

import (
	"context"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
)

// MetadataStore is the durable record of every ingested item and its
// relationship to vector space.
type MetadataStore interface {
	AddMemoryItem(ctx context.Context, item domain.MemoryItem) (int64, error)

	GetMemoryItem(ctx context.Context, id int64) (*domain.MemoryItem, error)

	GetMemoryItemByHash(ctx context.Context, contentHash string) (*domain.MemoryItem, error)

	SetMemoryItemVectorID(ctx context.Context, id, vectorID int64) error

	// AddChunks inserts all chunks of one parent in a single transaction.
	AddChunks(ctx context.Context, chunks []domain.Chunk) error

	GetChunksByItem(ctx context.Context, memoryItemID int64) ([]domain.Chunk, error)

	AddVisualItem(ctx context.Context, item domain.VisualItem) (int64, error)

	GetVisualItemByHash(ctx context.Context, imageHash string) (*domain.VisualItem, error)

	GetVisualItemByVectorID(ctx context.Context, vectorID int64) (*domain.VisualItem, error)

	// ResolveTextVectorID maps a text vector id back to content. The
	// chunks table is checked first, then memory_items; a given id may
	// belong to either depending on whether the item was chunked.
	ResolveTextVectorID(ctx context.Context, vectorID int64) (domain.Resolved, error)

	Stats(ctx context.Context) (domain.Stats, error)

	// RepairCandidates returns memory items with no vector id and no
	// chunks: rows whose embedding was never written.
	RepairCandidates(ctx context.Context, limit int) ([]domain.MemoryItem, error)

	// LinkedTextVectors counts rows referencing a text vector id across
	// memory_items and chunks. Compared against the index count to
	// detect write-order inconsistencies.
	LinkedTextVectors(ctx context.Context) (int64, error)

	LinkedVisualVectors(ctx context.Context) (int64, error)

	Close() error
}
