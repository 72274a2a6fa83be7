package contextsearch

import (
	"context"

	"manifold/internal/embeddings"
)

// HTTPEmbedder adapts the module's existing embeddings.GenerateEmbeddings
// HTTP helper into the Embedder interface Qdrant needs, so the vector
// searcher uses the same embedding endpoint the rest of the module does
// rather than introducing a second embedding client.
type HTTPEmbedder struct {
	Host   string
	APIKey string
}

func (e *HTTPEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vecs, err := embeddings.GenerateEmbeddings(e.Host, e.APIKey, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}
