package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/viant/vec/search"
	"go.etcd.io/bbolt"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/port"
)

// Metric names accepted by Open.
const (
	MetricL2 = "l2" // squared Euclidean distance, smaller is closer
	MetricIP = "ip" // inner product, larger is closer
)

var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")

	keyDimension = []byte("dimension")
	keyMetric    = []byte("metric")
	keyCount     = []byte("count")
)

// Flat is an exact nearest-neighbor index over all vectors added so far.
// Ids are assigned in insertion order and never reused. The working set
// lives in memory; Save checkpoints it to a bolt file, and Open restores
// from that file. A checkpoint's dimension and metric are authoritative
// over the configured ones, so an index written by a different embedding
// model keeps its own shape until it is rebuilt.
type Flat struct {
	mu      sync.RWMutex
	db      *bbolt.DB
	dim     int
	metric  string
	vectors [][]float32
	mags    []float32 // cached magnitudes, used by the ip metric
	saved   int       // vectors already persisted
}

// Open opens or creates a flat index at path.
func Open(path string, dimension int, metric string) (*Flat, error) {
	switch metric {
	case MetricL2, MetricIP:
	default:
		return nil, fmt.Errorf("unknown metric %q (want %q or %q)", metric, MetricL2, MetricIP)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be > 0, got %d", dimension)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}

	idx := &Flat{
		db:     db,
		dim:    dimension,
		metric: metric,
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketVectors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	return idx, nil
}

// load restores persisted state. The dimension and metric stored in the
// file win over the configured ones.
func (f *Flat) load() error {
	return f.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if data := meta.Get(keyDimension); data != nil {
			f.dim = int(binary.BigEndian.Uint64(data))
		}
		if data := meta.Get(keyMetric); data != nil {
			f.metric = string(data)
		}

		vectors := tx.Bucket(bucketVectors)
		err := vectors.ForEach(func(k, v []byte) error {
			vec := decodeVector(v)
			f.vectors = append(f.vectors, vec)
			f.mags = append(f.mags, search.Float32s(vec).Magnitude())
			return nil
		})
		if err != nil {
			return err
		}

		// A pre-metadata file: infer the dimension from the blobs.
		if meta.Get(keyDimension) == nil && len(f.vectors) > 0 {
			f.dim = len(f.vectors[0])
		}

		f.saved = len(f.vectors)
		return nil
	})
}

// Add appends vectors and returns their assigned ids, [count, count+n).
// Every vector is validated against the index dimension before any is
// appended; a mismatch fails the whole call without mutating the index.
func (f *Flat) Add(vectors [][]float32) ([]int64, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, v := range vectors {
		if len(v) != f.dim {
			return nil, fmt.Errorf("vector %d dimension mismatch: index expects %d, got %d", i, f.dim, len(v))
		}
	}

	start := int64(len(f.vectors))
	ids := make([]int64, len(vectors))
	for i, v := range vectors {
		f.vectors = append(f.vectors, v)
		f.mags = append(f.mags, search.Float32s(v).Magnitude())
		ids[i] = start + int64(i)
	}

	return ids, nil
}

// Search returns up to k nearest neighbors, best first. Hit scores are
// squared L2 distances for the l2 metric and inner products for ip.
func (f *Flat) Search(query []float32, k int) ([]port.Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension mismatch: index expects %d, got %d", f.dim, len(query))
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}

	hits := make([]port.Hit, len(f.vectors))
	q := search.Float32s(query)

	switch f.metric {
	case MetricIP:
		qmag := q.Magnitude()
		for i, v := range f.vectors {
			var dot float32
			if qmag != 0 && f.mags[i] != 0 {
				cd := q.CosineDistanceWithMagnitude(v, qmag, f.mags[i])
				dot = (1 - cd) * qmag * f.mags[i]
			}
			hits[i] = port.Hit{ID: int64(i), Score: dot}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	default: // MetricL2
		for i, v := range f.vectors {
			d := q.EuclideanDistance(v)
			hits[i] = port.Hit{ID: int64(i), Score: d * d}
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score < hits[j].Score })
	}

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of vectors in the index.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimension returns the vector dimension the index accepts.
func (f *Flat) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// Metric returns the metric name ("l2" or "ip").
func (f *Flat) Metric() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.metric
}

// Save checkpoints the index. Vectors are append-only, so only ids not
// yet persisted are written.
func (f *Flat) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyDimension, itob(uint64(f.dim))); err != nil {
			return err
		}
		if err := meta.Put(keyMetric, []byte(f.metric)); err != nil {
			return err
		}
		if err := meta.Put(keyCount, itob(uint64(len(f.vectors)))); err != nil {
			return err
		}

		vectors := tx.Bucket(bucketVectors)
		for id := f.saved; id < len(f.vectors); id++ {
			if err := vectors.Put(itob(uint64(id)), encodeVector(f.vectors[id])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	f.saved = len(f.vectors)
	return nil
}

// Close closes the underlying file without saving.
func (f *Flat) Close() error {
	return f.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
