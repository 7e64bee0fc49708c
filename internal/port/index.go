package port

// Hit is one nearest-neighbor match. Score carries the index's raw
// metric value: a squared L2 distance (smaller is closer) or an inner
// product (larger is closer), depending on the index metric.
type Hit struct {
	ID    int64
	Score float32
}

// VectorIndex is an append-only exact nearest-neighbor index. Ids are
// assigned in insertion order starting at zero and are never reused;
// they are the sole join key back to metadata.
type VectorIndex interface {
	// Add appends vectors and returns their assigned ids. Every vector
	// must match the index dimension; on mismatch nothing is added.
	Add(vectors [][]float32) ([]int64, error)

	// Search returns up to k nearest neighbors, best first. If fewer
	// than k vectors exist it returns what exists. Callers must skip
	// any hit with a negative id.
	Search(query []float32, k int) ([]Hit, error)

	// Count returns the number of vectors in the index.
	Count() int

	// Dimension returns the vector dimension the index accepts.
	Dimension() int

	// Metric returns the configured metric name ("l2" or "ip").
	Metric() string

	// Save checkpoints the index to disk. Vectors added since the last
	// Save are held only in memory until then.
	Save() error

	Close() error
}
