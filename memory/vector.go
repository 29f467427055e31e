package memory

import (
	"context"
	"sort"
	"sync"

	loom "github.com/loomrun/loom"
)

// Embedder turns text into a fixed-width vector. Vector injects one at
// construction; DefaultEmbedder requires no embedding service.
type Embedder func(ctx context.Context, text string) ([]float64, error)

// DefaultEmbedder buckets characters into 16 folds, a degenerate but
// deterministic embedding so the core has no hard dependency on a real
// embedding backend.
func DefaultEmbedder(_ context.Context, text string) ([]float64, error) {
	buckets := make([]float64, 16)
	for i, r := range text {
		buckets[i%16] += float64(int(r)%31) / 31.0
	}
	return buckets, nil
}

// Vector retrieves top-K records by cosine-like similarity to a query
// text. It never evicts; retention is bounded by the caller's memory
// budget, not by turn count.
type Vector struct {
	embed Embedder
	topK  int

	mu      sync.Mutex
	records []loom.MemoryRecord
	vectors [][]float64
}

// NewVector returns a Vector strategy backed by embed (DefaultEmbedder if
// nil) returning at most topK records per retrieval by default.
func NewVector(embed Embedder, topK int) *Vector {
	if embed == nil {
		embed = DefaultEmbedder
	}
	if topK <= 0 {
		topK = 5
	}
	return &Vector{embed: embed, topK: topK}
}

func (v *Vector) Append(record loom.MemoryRecord) {
	vec, err := v.embed(context.Background(), record.Content)
	if err != nil {
		vec = nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = append(v.records, record)
	v.vectors = append(v.vectors, vec)
}

func (v *Vector) Retrieve(query loom.MemoryQuery) []loom.MemoryRecord {
	v.mu.Lock()
	records := append([]loom.MemoryRecord(nil), v.records...)
	vectors := append([][]float64(nil), v.vectors...)
	v.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	k := query.TopK
	if k <= 0 {
		k = v.topK
	}

	var selected []loom.MemoryRecord
	if query.Text == "" {
		if len(records) > k {
			records = records[len(records)-k:]
		}
		selected = records
	} else {
		qv, _ := v.embed(context.Background(), query.Text)
		type scored struct {
			idx   int
			score float64
		}
		ranked := make([]scored, len(records))
		for i, vec := range vectors {
			ranked[i] = scored{idx: i, score: dot(qv, vec)}
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
		if len(ranked) > k {
			ranked = ranked[:k]
		}
		selected = make([]loom.MemoryRecord, len(ranked))
		for i, r := range ranked {
			selected[i] = records[r.idx]
		}
	}

	selected = filterAndFormat(selected, query)
	if query.Format == loom.FormatMessages {
		return asMessages(selected, vectorRole, vectorContent)
	}
	return selected
}

// Evict is a no-op: vector retention is bounded by the caller's memory
// budget, not by turn count.
func (v *Vector) Evict() {}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// vectorRole tags every retrieved record as role=user: retrieved
// history re-enters the conversation as observations, not as the
// assistant's own words.
func vectorRole(loom.MemoryRecord) loom.TrajectoryRole { return loom.RoleUser }

// vectorContent marks retrieved content as an observation.
func vectorContent(r loom.MemoryRecord) string { return "Observation: " + r.Content }

var _ loom.MemoryStore = (*Vector)(nil)
