package contextsearch

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"manifold/internal/cogcore/memory"
	"manifold/internal/cogcore/reason"
)

// Embedder turns a query's entity values into a dense vector for Qdrant
// similarity search. Concrete embedding providers (OpenAI/Anthropic/local)
// are supplied by the caller at construction time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Qdrant is a vector-similarity-backed ContextSearcher, used when a
// collection endpoint is configured; it falls back is the caller's
// responsibility (construct InMemory instead when Qdrant is unset).
type Qdrant struct {
	Client     *qdrant.Client
	Collection string
	Embedder   Embedder
	TopK       uint64
}

var _ reason.ContextSearcher = (*Qdrant)(nil)

func NewQdrant(client *qdrant.Client, collection string, embedder Embedder) *Qdrant {
	return &Qdrant{Client: client, Collection: collection, Embedder: embedder, TopK: 10}
}

// Search embeds the joined entity values and performs a similarity search,
// mapping Qdrant's returned score directly into ContextItem.RelevanceScore.
func (q *Qdrant) Search(ctx context.Context, query reason.ContextQuery) ([]memory.ContextItem, error) {
	if len(query.EntityValues) == 0 {
		return nil, nil
	}
	text := joinValues(query.EntityValues)
	vec, err := q.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("contextsearch: embed query: %w", err)
	}

	limit := q.TopK
	if limit == 0 {
		limit = 10
	}

	points, err := q.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("contextsearch: qdrant query: %w", err)
	}

	items := make([]memory.ContextItem, 0, len(points))
	for _, pt := range points {
		payload := pt.GetPayload()
		items = append(items, memory.ContextItem{
			Source:         stringField(payload, "source"),
			Type:           stringField(payload, "type"),
			Content:        stringField(payload, "content"),
			RelevanceScore: float64(pt.GetScore()),
		})
	}
	return items, nil
}

func stringField(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func joinValues(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += " "
		}
		out += v
	}
	return out
}
