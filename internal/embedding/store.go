// Package embedding holds the chunk-id to vector mapping used for retrieval,
// its binary persistence format, and the batch computation that fills it.
package embedding

import (
	"fmt"

	"github.com/petrorag/petrorag/internal/domain"
)

// Store maps chunk ids to embedding vectors of one fixed dimension.
// Iteration follows insertion order. A Store is not safe for concurrent
// mutation; once built it is shared read-only.
type Store struct {
	dim     int
	ids     []string
	vectors map[string][]float32
}

// NewStore creates an empty store. A zero dim is fixed by the first Add.
func NewStore(dim int) *Store {
	return &Store{
		dim:     dim,
		ids:     make([]string, 0),
		vectors: make(map[string][]float32),
	}
}

// Add stores vec under id. Re-adding an id replaces its vector in place.
func (s *Store) Add(id string, vec []float32) error {
	if len(vec) == 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "embedding vector is empty")
	}
	if s.dim == 0 {
		s.dim = len(vec)
	}
	if len(vec) != s.dim {
		return domain.NewDomainErrorWithCause(domain.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector for %q has dimension %d, store has %d", id, len(vec), s.dim),
			domain.ErrDimensionMismatch)
	}

	if _, ok := s.vectors[id]; !ok {
		s.ids = append(s.ids, id)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.vectors[id] = cp
	return nil
}

// Get returns the vector stored for id.
func (s *Store) Get(id string) ([]float32, bool) {
	v, ok := s.vectors[id]
	return v, ok
}

// IDs returns chunk ids in insertion order. The slice must not be modified.
func (s *Store) IDs() []string {
	return s.ids
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Dimension returns the shared vector length, or 0 for an empty store.
func (s *Store) Dimension() int {
	return s.dim
}

// IsStale reports whether the id set of store differs from the chunk ids of
// corpus. A stale store must be rebuilt in full.
func IsStale(store *Store, corpus *domain.Corpus) bool {
	if store == nil {
		return true
	}
	if store.Len() != corpus.Len() {
		return true
	}
	for _, ch := range corpus.Chunks() {
		if _, ok := store.vectors[ch.ID]; !ok {
			return true
		}
	}
	return false
}
