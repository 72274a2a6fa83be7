package contextsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/cogcore/reason"
)

func TestInMemory_SearchRanksByRelevanceDescending(t *testing.T) {
	t.Parallel()
	m := NewInMemory()
	m.Index(Record{Source: "note", Content: "project launch deadline next week"})
	m.Index(Record{Source: "prior_event", Content: "unrelated topic about lunch"})
	m.Index(Record{Source: "task", Content: "launch review with deadline tracking", Tags: []string{"launch", "deadline"}})

	items, err := m.Search(context.Background(), reason.ContextQuery{EntityValues: []string{"launch", "deadline"}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "note", items[0].Source)
	assert.GreaterOrEqual(t, items[0].RelevanceScore, items[1].RelevanceScore)
}

func TestInMemory_SearchReturnsNilForEmptyQuery(t *testing.T) {
	t.Parallel()
	m := NewInMemory()
	m.Index(Record{Source: "note", Content: "anything"})

	items, err := m.Search(context.Background(), reason.ContextQuery{})
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestInMemory_SearchIsSafeForConcurrentIndexAndQuery(t *testing.T) {
	t.Parallel()
	m := NewInMemory()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			m.Index(Record{Source: "note", Content: "concurrent content"})
		}
		close(done)
	}()
	for i := 0; i < 50; i++ {
		_, _ = m.Search(context.Background(), reason.ContextQuery{EntityValues: []string{"concurrent"}})
	}
	<-done
}

func TestHTTPEmbedder_ReturnsFirstVector(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := &HTTPEmbedder{Host: srv.URL, APIKey: "test-key"}
	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHTTPEmbedder_PropagatesTransportError(t *testing.T) {
	t.Parallel()
	e := &HTTPEmbedder{Host: "http://127.0.0.1:0", APIKey: "test-key"}
	_, err := e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}
