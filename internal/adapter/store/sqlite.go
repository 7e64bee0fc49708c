package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
)

// SQLiteStore implements port.MetadataStore on a single SQLite file.
//
// Vector ids are stored as NULL when a record has not been linked to the
// index yet; in memory that state is domain.NoVector. Lookup methods
// return a nil item and nil error when no row matches.
type SQLiteStore struct {
	db *sql.DB
}

// New opens or creates the metadata database at dbPath.
func New(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_items (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		source       TEXT NOT NULL,
		content      TEXT NOT NULL,
		metadata     TEXT,
		created_at   TEXT NOT NULL,
		vector_id    INTEGER,
		content_hash TEXT
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		memory_item_id INTEGER NOT NULL,
		chunk_text     TEXT NOT NULL,
		chunk_index    INTEGER NOT NULL,
		start_pos      INTEGER,
		end_pos        INTEGER,
		vector_id      INTEGER,
		FOREIGN KEY (memory_item_id) REFERENCES memory_items(id)
	);

	CREATE TABLE IF NOT EXISTS visual_items (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		path       TEXT NOT NULL,
		ocr_text   TEXT,
		metadata   TEXT,
		created_at TEXT NOT NULL,
		vector_id  INTEGER,
		image_hash TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_source ON memory_items(source);
	CREATE INDEX IF NOT EXISTS idx_created ON memory_items(created_at);
	CREATE INDEX IF NOT EXISTS idx_memory_content_hash ON memory_items(content_hash);
	CREATE INDEX IF NOT EXISTS idx_memory_vector_id ON memory_items(vector_id);
	CREATE INDEX IF NOT EXISTS idx_memory_chunks ON chunks(memory_item_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_vector_id ON chunks(vector_id);
	CREATE INDEX IF NOT EXISTS idx_visual_image_hash ON visual_items(image_hash);
	CREATE INDEX IF NOT EXISTS idx_visual_vector_id ON visual_items(vector_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Add hash columns if missing (upgrade from older databases).
	s.db.Exec(`ALTER TABLE memory_items ADD COLUMN content_hash TEXT`)
	s.db.Exec(`ALTER TABLE visual_items ADD COLUMN image_hash TEXT`)

	return nil
}

// AddMemoryItem inserts a memory item and returns its row id.
func (s *SQLiteStore) AddMemoryItem(ctx context.Context, item domain.MemoryItem) (int64, error) {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	meta, err := marshalMetadata(item.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_items (source, content, metadata, created_at, vector_id, content_hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.Source, item.Content, meta, createdAt.Format(time.RFC3339Nano),
		nullableVectorID(item.VectorID), nullableString(item.ContentHash))
	if err != nil {
		return 0, fmt.Errorf("failed to insert memory item: %w", err)
	}

	return res.LastInsertId()
}

// GetMemoryItem returns the memory item with the given row id.
func (s *SQLiteStore) GetMemoryItem(ctx context.Context, id int64) (*domain.MemoryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, content, metadata, created_at, vector_id, content_hash
		 FROM memory_items WHERE id = ?`, id)
	return scanMemoryItem(row)
}

// GetMemoryItemByHash returns a memory item with the given content hash,
// used for deduplication before embedding.
func (s *SQLiteStore) GetMemoryItemByHash(ctx context.Context, contentHash string) (*domain.MemoryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, content, metadata, created_at, vector_id, content_hash
		 FROM memory_items WHERE content_hash = ? LIMIT 1`, contentHash)
	return scanMemoryItem(row)
}

// SetMemoryItemVectorID links a memory item to its index vector.
func (s *SQLiteStore) SetMemoryItemVectorID(ctx context.Context, id, vectorID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memory_items SET vector_id = ? WHERE id = ?`, nullableVectorID(vectorID), id)
	if err != nil {
		return fmt.Errorf("failed to set vector id: %w", err)
	}
	return nil
}

// AddChunks inserts all chunks of one parent item in a single transaction.
func (s *SQLiteStore) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (memory_item_id, chunk_text, chunk_index, start_pos, end_pos, vector_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.MemoryItemID, c.Text, c.Index, c.StartPos, c.EndPos, nullableVectorID(c.VectorID))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// GetChunksByItem returns the chunks of a memory item in chunk order.
func (s *SQLiteStore) GetChunksByItem(ctx context.Context, memoryItemID int64) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_item_id, chunk_text, chunk_index, start_pos, end_pos, vector_id
		 FROM chunks WHERE memory_item_id = ? ORDER BY chunk_index`, memoryItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var vectorID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.MemoryItemID, &c.Text, &c.Index, &c.StartPos, &c.EndPos, &vectorID); err != nil {
			return nil, err
		}
		c.VectorID = fromNullVectorID(vectorID)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// AddVisualItem inserts a visual item and returns its row id.
func (s *SQLiteStore) AddVisualItem(ctx context.Context, item domain.VisualItem) (int64, error) {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	meta, err := marshalMetadata(item.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO visual_items (path, ocr_text, metadata, created_at, vector_id, image_hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.Path, nullableString(item.OCRText), meta, createdAt.Format(time.RFC3339Nano),
		nullableVectorID(item.VectorID), nullableString(item.ImageHash))
	if err != nil {
		return 0, fmt.Errorf("failed to insert visual item: %w", err)
	}

	return res.LastInsertId()
}

// GetVisualItemByHash returns a visual item with the given image hash.
func (s *SQLiteStore) GetVisualItemByHash(ctx context.Context, imageHash string) (*domain.VisualItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, ocr_text, metadata, created_at, vector_id, image_hash
		 FROM visual_items WHERE image_hash = ? LIMIT 1`, imageHash)
	return scanVisualItem(row)
}

// GetVisualItemByVectorID returns the visual item linked to a vector id.
func (s *SQLiteStore) GetVisualItemByVectorID(ctx context.Context, vectorID int64) (*domain.VisualItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, ocr_text, metadata, created_at, vector_id, image_hash
		 FROM visual_items WHERE vector_id = ? LIMIT 1`, vectorID)
	return scanVisualItem(row)
}

// ResolveTextVectorID maps a text vector id back to its content. Chunks
// are checked before whole items: an id always belongs to exactly one of
// the two, and chunked parents have no vector id of their own.
func (s *SQLiteStore) ResolveTextVectorID(ctx context.Context, vectorID int64) (domain.Resolved, error) {
	var r domain.Resolved

	var meta sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.chunk_text, c.memory_item_id, m.source, m.metadata, m.created_at
		 FROM chunks c
		 JOIN memory_items m ON m.id = c.memory_item_id
		 WHERE c.vector_id = ? LIMIT 1`, vectorID).
		Scan(&r.ChunkID, &r.Text, &r.MemoryItemID, &r.Source, &meta, &createdAt)
	if err == nil {
		r.Kind = domain.ResolvedChunk
		r.Metadata = unmarshalMetadata(meta)
		r.CreatedAt = parseTime(createdAt)
		return r, nil
	}
	if err != sql.ErrNoRows {
		return r, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, content, source, metadata, created_at
		 FROM memory_items WHERE vector_id = ? LIMIT 1`, vectorID).
		Scan(&r.MemoryItemID, &r.Text, &r.Source, &meta, &createdAt)
	if err == sql.ErrNoRows {
		return domain.Resolved{Kind: domain.ResolvedNone}, nil
	}
	if err != nil {
		return r, err
	}

	r.Kind = domain.ResolvedItem
	r.Metadata = unmarshalMetadata(meta)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// Stats returns row counts. Vector counts are filled in by the caller
// from the indices.
func (s *SQLiteStore) Stats(ctx context.Context) (domain.Stats, error) {
	st := domain.Stats{BySource: make(map[string]int64)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_items`).Scan(&st.MemoryItems); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visual_items`).Scan(&st.VisualItems); err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM memory_items GROUP BY source`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return st, err
		}
		st.BySource[source] = count
	}
	return st, rows.Err()
}

// RepairCandidates returns memory items with no vector id and no chunks,
// oldest first. A limit <= 0 returns all of them.
func (s *SQLiteStore) RepairCandidates(ctx context.Context, limit int) ([]domain.MemoryItem, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, content, metadata, created_at, vector_id, content_hash
		 FROM memory_items
		 WHERE vector_id IS NULL
		   AND id NOT IN (SELECT DISTINCT memory_item_id FROM chunks)
		 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.MemoryItem
	for rows.Next() {
		item, err := scanMemoryItemRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// LinkedTextVectors counts rows linked to a text vector, across whole
// items and chunks.
func (s *SQLiteStore) LinkedTextVectors(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM memory_items WHERE vector_id IS NOT NULL)
		      + (SELECT COUNT(*) FROM chunks WHERE vector_id IS NOT NULL)`).Scan(&n)
	return n, err
}

// LinkedVisualVectors counts visual items linked to a vector.
func (s *SQLiteStore) LinkedVisualVectors(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM visual_items WHERE vector_id IS NOT NULL`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemoryItem(row *sql.Row) (*domain.MemoryItem, error) {
	item, err := scanMemoryItemRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func scanMemoryItemRow(row scanner) (*domain.MemoryItem, error) {
	var item domain.MemoryItem
	var meta, contentHash sql.NullString
	var vectorID sql.NullInt64
	var createdAt string

	err := row.Scan(&item.ID, &item.Source, &item.Content, &meta, &createdAt, &vectorID, &contentHash)
	if err != nil {
		return nil, err
	}

	item.Metadata = unmarshalMetadata(meta)
	item.CreatedAt = parseTime(createdAt)
	item.VectorID = fromNullVectorID(vectorID)
	item.ContentHash = contentHash.String
	return &item, nil
}

func scanVisualItem(row *sql.Row) (*domain.VisualItem, error) {
	var item domain.VisualItem
	var ocrText, meta, imageHash sql.NullString
	var vectorID sql.NullInt64
	var createdAt string

	err := row.Scan(&item.ID, &item.Path, &ocrText, &meta, &createdAt, &vectorID, &imageHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item.OCRText = ocrText.String
	item.Metadata = unmarshalMetadata(meta)
	item.CreatedAt = parseTime(createdAt)
	item.VectorID = fromNullVectorID(vectorID)
	item.ImageHash = imageHash.String
	return &item, nil
}

func marshalMetadata(m map[string]any) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalMetadata(meta sql.NullString) map[string]any {
	if !meta.Valid || meta.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(meta.String), &m); err != nil {
		return nil
	}
	return m
}

func nullableVectorID(id int64) any {
	if id == domain.NoVector {
		return nil
	}
	return id
}

func fromNullVectorID(id sql.NullInt64) int64 {
	if !id.Valid {
		return domain.NoVector
	}
	return id.Int64
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
