package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/adapter/embedding"
	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/domain"
)

func TestSearchTextExactMatchScoresOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	texts := []string{
		"the quick brown fox jumps over the lazy dog",
		"a slow green turtle crawls under the fence",
		"completely unrelated grocery shopping list",
	}
	for _, text := range texts {
		if _, err := env.ingestor.IngestText(ctx, text, domain.SourceNote, nil); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
	}

	results, err := env.searcher.Search(ctx, texts[0], 10, domain.ModeText)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// The deterministic embedder maps identical strings to identical
	// vectors, so the query's own item comes back at distance zero.
	if results[0].Text != texts[0] {
		t.Errorf("expected exact match first, got %q", results[0].Text)
	}
	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0 for exact match, got %g", results[0].Score)
	}
	for i, r := range results {
		if r.Score <= 0 || r.Score > 1 {
			t.Errorf("result %d score %g outside (0,1]", i, r.Score)
		}
		if i > 0 && r.Score > results[i-1].Score {
			t.Errorf("results not in descending order at %d", i)
		}
		if r.Kind != domain.ResultText {
			t.Errorf("result %d kind = %q", i, r.Kind)
		}
		if r.Source != domain.SourceNote {
			t.Errorf("result %d source = %q", i, r.Source)
		}
	}
}

func TestSearchTextResolvesChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	long := strings.Repeat("Filler sentence that stretches the document to chunking length. ", 60) +
		"The treasure is buried under the old oak tree."
	out, err := env.ingestor.IngestText(ctx, long, domain.SourceFileSystem, map[string]any{"path": "/docs/map.txt"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if out.Chunks < 2 {
		t.Fatalf("expected a chunked item, got %d chunks", out.Chunks)
	}

	results, err := env.searcher.Search(ctx, "treasure buried oak tree", 3, domain.ModeText)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results from chunked item")
	}

	top := results[0]
	if len(top.Text) >= len(long) {
		t.Error("expected a chunk, got the whole document")
	}
	if top.Source != domain.SourceFileSystem {
		t.Errorf("chunk result must carry the parent source, got %q", top.Source)
	}
	if top.Metadata["path"] != "/docs/map.txt" {
		t.Errorf("chunk result must carry the parent metadata, got %v", top.Metadata)
	}
}

func TestSearchTextSkipsUnlinkedVectors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ingestor.IngestText(ctx, "a linked item", domain.SourceNote, nil); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	// A vector with no metadata row, as a crash between index add and
	// row link would leave behind.
	if _, err := env.textIndex.Add([][]float32{basisVector(3)}); err != nil {
		t.Fatalf("failed to add orphan vector: %v", err)
	}

	results, err := env.searcher.Search(ctx, "a linked item", 10, domain.ModeText)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the orphan to be skipped, got %d results", len(results))
	}
	if results[0].Text != "a linked item" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestSearchVisualFloorAndPathDedup(t *testing.T) {
	queryVec := basisVector(0)
	visualEmb := &stubVisualEmbedder{
		imageFn: basisVector0,
		queryFn: func(string) []float32 { return queryVec },
	}
	env := newTestEnvWith(t, embedding.NewMockTextEmbedder(testDim), visualEmb)
	ctx := context.Background()

	// Two vectors for the same image path at different similarities,
	// one vector below the floor, one vector with no row at all.
	half := make([]float32, testDim)
	half[0] = 0.5
	rowless := make([]float32, testDim)
	rowless[0] = 0.8
	ids, err := env.visualIndex.Add([][]float32{basisVector(0), half, basisVector(1), rowless})
	if err != nil {
		t.Fatalf("failed to add vectors: %v", err)
	}

	now := time.Now().UTC()
	rows := []domain.VisualItem{
		{Path: "/pics/sunset.png", VectorID: ids[0], CreatedAt: now, ImageHash: "hash-a"},
		{Path: "/pics/sunset.png", VectorID: ids[1], CreatedAt: now, ImageHash: "hash-b"},
		{Path: "/pics/teapot.png", VectorID: ids[2], CreatedAt: now, ImageHash: "hash-c"},
	}
	for _, row := range rows {
		if _, err := env.store.AddVisualItem(ctx, row); err != nil {
			t.Fatalf("failed to add visual item: %v", err)
		}
	}

	results, err := env.searcher.Search(ctx, "sunset", 10, domain.ModeVisual)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	// sunset.png deduplicated to its best score; teapot.png dropped at
	// the floor; the rowless vector kept under its fallback key.
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Path != "/pics/sunset.png" {
		t.Errorf("expected sunset.png first, got %q", results[0].Path)
	}
	if got := results[0].Score; got < 0.99 || got > 1.01 {
		t.Errorf("dedup must keep the best score, got %g", got)
	}
	if results[1].Path != "" || results[1].VectorID != ids[3] {
		t.Errorf("expected the rowless vector second, got %+v", results[1])
	}
	for _, r := range results {
		if r.Path == "/pics/teapot.png" {
			t.Error("below-floor result not dropped")
		}
		if r.Kind != domain.ResultVisual {
			t.Errorf("unexpected kind %q", r.Kind)
		}
	}
}

func TestSearchVisualResultCarriesOCRText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids, err := env.visualIndex.Add([][]float32{basisVector(0)})
	if err != nil {
		t.Fatalf("failed to add vector: %v", err)
	}
	if _, err := env.store.AddVisualItem(ctx, domain.VisualItem{
		Path:      "/pics/receipt.png",
		OCRText:   "TOTAL 42.00",
		VectorID:  ids[0],
		CreatedAt: time.Now().UTC(),
		ImageHash: "hash-r",
	}); err != nil {
		t.Fatalf("failed to add visual item: %v", err)
	}

	// The mock query encoder is deterministic but arbitrary, so swap in
	// a stub that lands exactly on the stored vector.
	env.searcher.visualEmbedder = &stubVisualEmbedder{queryFn: basisVector0}

	results, err := env.searcher.Search(ctx, "receipt", 5, domain.ModeVisual)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != "TOTAL 42.00" {
		t.Errorf("expected ocr text on visual result, got %q", results[0].Text)
	}
}

func TestSearchBothMergesAndTruncates(t *testing.T) {
	visualEmb := &stubVisualEmbedder{imageFn: basisVector0, queryFn: basisVector0}
	env := newTestEnvWith(t, embedding.NewMockTextEmbedder(testDim), visualEmb)
	ctx := context.Background()

	for _, text := range []string{"first note", "second note", "third note"} {
		if _, err := env.ingestor.IngestText(ctx, text, domain.SourceNote, nil); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
	}
	ids, err := env.visualIndex.Add([][]float32{basisVector(0)})
	if err != nil {
		t.Fatalf("failed to add vector: %v", err)
	}
	if _, err := env.store.AddVisualItem(ctx, domain.VisualItem{
		Path: "/pics/a.png", VectorID: ids[0], CreatedAt: time.Now().UTC(), ImageHash: "hash-a",
	}); err != nil {
		t.Fatalf("failed to add visual item: %v", err)
	}

	results, err := env.searcher.Search(ctx, "first note", 2, domain.ModeBoth)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	// The cap applies to the merged list, not per modality.
	if len(results) != 2 {
		t.Fatalf("expected 2 results total, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("merged results not in descending order at %d", i)
		}
	}

	kinds := map[domain.ResultKind]bool{}
	all, err := env.searcher.Search(ctx, "first note", 10, domain.ModeBoth)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, r := range all {
		kinds[r.Kind] = true
	}
	if !kinds[domain.ResultText] || !kinds[domain.ResultVisual] {
		t.Errorf("combined mode must cover both modalities, saw %v", kinds)
	}
}

func TestSearchInvalidMode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.searcher.Search(context.Background(), "anything", 5, domain.SearchMode("audio"))
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if !strings.Contains(err.Error(), "unknown search mode") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSearchDegradesWhenEmbeddersFail(t *testing.T) {
	down := errors.New("service unavailable")
	env := newTestEnvWith(t,
		&stubTextEmbedder{err: down},
		&stubVisualEmbedder{err: down},
	)

	results, err := env.searcher.Search(context.Background(), "anything", 5, domain.ModeBoth)
	if err != nil {
		t.Fatalf("search must degrade, not fail: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from failed embedders, got %d", len(results))
	}
}

func TestSearchDefaultTopK(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		text := strings.Repeat("word ", i+1) + "note"
		if _, err := env.ingestor.IngestText(ctx, text, domain.SourceNote, nil); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
	}

	results, err := env.searcher.Search(ctx, "note", 0, domain.ModeText)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("expected default cap of 5, got %d", len(results))
	}
}
