package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragpdf/internal/credential"
)

// embeddingServer answers /v1/embeddings with a 3-dimensional vector per input.
func embeddingServer(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-credential", r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1, 0}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	cred, err := credential.New("sk-test-credential")
	require.NoError(t, err)

	t.Run("Should require a credential", func(t *testing.T) {
		_, err := NewClient(credential.Credential{}, Config{})
		assert.ErrorIs(t, err, credential.ErrMissing)
	})

	t.Run("Should embed documents with the passed credential", func(t *testing.T) {
		var calls atomic.Int32
		srv := embeddingServer(t, http.StatusOK, &calls)
		c, err := NewClient(cred, Config{BaseURL: srv.URL + "/v1"})
		require.NoError(t, err)
		vecs, err := c.EmbedDocuments(context.Background(), []string{"first chunk", "second chunk"})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Len(t, vecs[0], 3)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should surface service rejections", func(t *testing.T) {
		var calls atomic.Int32
		srv := embeddingServer(t, http.StatusUnauthorized, &calls)
		c, err := NewClient(cred, Config{BaseURL: srv.URL + "/v1"})
		require.NoError(t, err)
		_, err = c.EmbedQuery(context.Background(), "question")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai embeddings")
	})
}
