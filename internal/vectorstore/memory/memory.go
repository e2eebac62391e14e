package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragstore/internal/domain"
)

// Store is an in-memory vector store using brute-force cosine similarity.
// It backs tests and offline runs; semantics mirror the remote backends:
// upsert overwrites by ID, queries honor metadata filters, deleting an
// unknown ID is a no-op. Tie order among equal scores is insertion order.
type Store struct {
	mu        sync.RWMutex
	dimension int
	created   bool
	records   map[string]domain.Record
	order     []string
}

// New creates an empty in-memory store for vectors of the given dimension.
func New(dimension int) *Store {
	return &Store{
		dimension: dimension,
		records:   make(map[string]domain.Record),
	}
}

// EnsureIndex marks the index created. Safe to call concurrently; repeated
// calls are no-ops.
func (s *Store) EnsureIndex(_ context.Context) error {
	if s.dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrStoreOperation, s.dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	return nil
}

// Upsert writes or overwrites records by ID.
func (s *Store) Upsert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %q: vector dimension %d, want %d",
				domain.ErrStoreOperation, r.ID, len(r.Vector), s.dimension)
		}
	}
	for _, r := range records {
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = cloneRecord(r)
	}
	return nil
}

// Query returns up to topK matches ordered by descending cosine similarity.
func (s *Store) Query(_ context.Context, vector []float32, topK int, filter map[string]string, includeMetadata bool) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrStoreOperation, topK)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector dimension %d, want %d",
			domain.ErrStoreOperation, len(vector), s.dimension)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Match, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		if !metadataMatches(r.Metadata, filter) {
			continue
		}
		m := domain.Match{ID: id, Score: cosine(vector, r.Vector)}
		if includeMetadata {
			m.Metadata = cloneMetadata(r.Metadata)
		}
		matches = append(matches, m)
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes records by ID. Unknown IDs are skipped.
func (s *Store) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			removed[id] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return nil
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, gone := removed[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func metadataMatches(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosine computes cosine similarity; a zero vector on either side scores 0,
// which lets a zero query vector enumerate records without ranking them.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func cloneRecord(r domain.Record) domain.Record {
	c := domain.Record{ID: r.ID, Vector: make([]float32, len(r.Vector)), Metadata: cloneMetadata(r.Metadata)}
	copy(c.Vector, r.Vector)
	return c
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
