package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/petrorag/petrorag/internal/embedding"
)

// DefaultTopN is the number of chunks retrieved per query.
const DefaultTopN = 5

// QueryEmbedder embeds query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Score   float64
	ChunkID string
}

// DotProduct returns the raw inner product of a and b, accumulated in
// float64. Vectors are not normalized.
func DotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Rank scores every vector in store against query and returns the topN best
// by descending dot product. Equal scores keep store insertion order. A topN
// below 1 means DefaultTopN.
func Rank(query []float32, store *embedding.Store, topN int) ([]ScoredChunk, error) {
	if topN < 1 {
		topN = DefaultTopN
	}
	if store.Len() == 0 {
		return []ScoredChunk{}, nil
	}
	if len(query) != store.Dimension() {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has dimension %d, store has %d", len(query), store.Dimension()),
			domain.ErrDimensionMismatch)
	}

	ids := store.IDs()
	scored := make([]ScoredChunk, 0, len(ids))
	for _, id := range ids {
		vec, _ := store.Get(id)
		scored = append(scored, ScoredChunk{Score: DotProduct(query, vec), ChunkID: id})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored, nil
}

// Retrieve embeds query and ranks store against it.
func Retrieve(ctx context.Context, embedder QueryEmbedder, query string, store *embedding.Store, topN int) ([]ScoredChunk, error) {
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return Rank(vec, store, topN)
}
