package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragpdf/internal/domain"
)

type recorded struct {
	method string
	path   string
	query  string
	apiKey string
	body   map[string]any
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	calls := []recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, apiKey: r.Header.Get("api-key")}
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
}

func TestStorage_Init(t *testing.T) {
	t.Run("Should create a cosine collection with the api key", func(t *testing.T) {
		srv, calls := newServer(t, ok)
		s := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "docs"})
		require.NoError(t, s.Init(context.Background(), 3))
		require.Len(t, *calls, 1)
		c := (*calls)[0]
		assert.Equal(t, http.MethodPut, c.method)
		assert.Equal(t, "/collections/docs", c.path)
		assert.Equal(t, "secret", c.apiKey)
		vectors := c.body["vectors"].(map[string]any)
		assert.Equal(t, float64(3), vectors["size"])
		assert.Equal(t, "Cosine", vectors["distance"])
	})

	t.Run("Should reject a non-positive dimension", func(t *testing.T) {
		s := NewStorage(Config{URL: "http://127.0.0.1:1"})
		assert.Error(t, s.Init(context.Background(), 0))
	})
}

func TestStorage_Upsert(t *testing.T) {
	t.Run("Should send points with deterministic ids and payload", func(t *testing.T) {
		srv, calls := newServer(t, ok)
		s := NewStorage(Config{URL: srv.URL, Collection: "docs"})
		chunks := []domain.Chunk{{DocumentID: "d", ChunkID: "d:0", Text: "hello", Index: 0}}
		require.NoError(t, s.Upsert(context.Background(), chunks, [][]float32{{1, 0}}))
		c := (*calls)[0]
		assert.Equal(t, "/collections/docs/points", c.path)
		assert.Equal(t, "wait=true", c.query)
		points := c.body["points"].([]any)
		require.Len(t, points, 1)
		p := points[0].(map[string]any)
		assert.Equal(t, PointID("d:0"), p["id"])
		payload := p["payload"].(map[string]any)
		assert.Equal(t, "hello", payload["text"])
		assert.Equal(t, "d:0", payload["chunk_id"])
	})

	t.Run("Should reject mismatched lengths", func(t *testing.T) {
		s := NewStorage(Config{URL: "http://127.0.0.1:1"})
		err := s.Upsert(context.Background(), []domain.Chunk{{ChunkID: "a"}}, nil)
		assert.Error(t, err)
	})
}

func TestStorage_Search(t *testing.T) {
	t.Run("Should decode scored payloads", func(t *testing.T) {
		srv, calls := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":[{"id":"x","score":0.9,"payload":{"document_id":"d","chunk_id":"d:2","index":2,"text":"beta"}}]}`))
		})
		s := NewStorage(Config{URL: srv.URL, Collection: "docs"})
		results, err := s.Search(context.Background(), []float32{0, 1}, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "beta", results[0].Chunk.Text)
		assert.Equal(t, 2, results[0].Chunk.Index)
		assert.InDelta(t, 0.9, results[0].Score, 1e-9)
		c := (*calls)[0]
		assert.Equal(t, http.MethodPost, c.method)
		assert.Equal(t, float64(4), c.body["limit"])
		assert.Equal(t, true, c.body["with_payload"])
	})

	t.Run("Should surface server errors", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"status":{"error":"boom"}}`, http.StatusInternalServerError)
		})
		s := NewStorage(Config{URL: srv.URL})
		_, err := s.Search(context.Background(), []float32{1}, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestStorage_Clear(t *testing.T) {
	t.Run("Should treat a missing collection as cleared", func(t *testing.T) {
		srv, calls := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		s := NewStorage(Config{URL: srv.URL, Collection: "docs"})
		require.NoError(t, s.Clear(context.Background()))
		assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	})
}

func TestPointID(t *testing.T) {
	t.Run("Should be stable and distinct", func(t *testing.T) {
		assert.Equal(t, PointID("a:0"), PointID("a:0"))
		assert.NotEqual(t, PointID("a:0"), PointID("a:1"))
	})
}
