package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

type request struct {
	method string
	path   string
	apiKey string
	body   map[string]any
}

func newTestIndex(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*Index, chan request) {
	t.Helper()
	reqs := make(chan request, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := request{method: r.Method, path: r.URL.Path, apiKey: r.Header.Get("api-key")}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		reqs <- rec
		respond(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewIndex(Config{URL: srv.URL, APIKey: "key", Collection: "test"}), reqs
}

func TestAccessFilter(t *testing.T) {
	f, ok := accessFilter(domain.AccessFilter{Kind: domain.FilterNonPIOnly})
	require.True(t, ok)
	b, _ := json.Marshal(f)
	assert.JSONEq(t, `{"must":[{"key":"is_pi","match":{"value":false}}]}`, string(b))

	f, ok = accessFilter(domain.AccessFilter{Kind: domain.FilterNonPIOrOwned, OwnerUID: "u1"})
	require.True(t, ok)
	b, _ = json.Marshal(f)
	assert.JSONEq(t, `{"should":[
		{"key":"is_pi","match":{"value":false}},
		{"must":[{"key":"is_pi","match":{"value":true}},{"key":"owner_uid","match":{"value":"u1"}}]}
	]}`, string(b))

	_, ok = accessFilter(domain.AccessFilter{Kind: domain.FilterDenyAll})
	assert.False(t, ok)
}

func TestIndex_Search(t *testing.T) {
	idx, reqs := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"score":0.8,"payload":{"chunk_id":"c1","source_doc_id":"d1","document_name":"a.pdf","page":3,"text":"hi","is_pi":true,"owner_uid":"u1","roles_allowed":["pi"]}}]}`))
	})

	results, err := idx.Search(context.Background(), []float32{0.5}, domain.AccessFilter{Kind: domain.FilterNonPIOrOwned, OwnerUID: "u1"}, 30)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ChunkID)
	assert.Equal(t, "u1", results[0].Chunk.Access.Owner())
	assert.Equal(t, 3, results[0].Chunk.Page)

	req := <-reqs
	assert.Equal(t, "/collections/test/points/search", req.path)
	assert.Equal(t, "key", req.apiKey)
	assert.Equal(t, float64(30), req.body["limit"])
	assert.Contains(t, req.body, "filter")
}

func TestIndex_Search_DenyAll(t *testing.T) {
	idx, reqs := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {})

	results, err := idx.Search(context.Background(), []float32{0.5}, domain.AccessFilter{Kind: domain.FilterDenyAll}, 30)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, reqs)
}

func TestIndex_Upsert_StablePointIDs(t *testing.T) {
	idx, reqs := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	chunks := []*domain.IndexedChunk{{ChunkID: "d1-0", SourceDocID: "d1", Embedding: []float32{1}, Access: domain.UnrestrictedAccess()}}

	require.NoError(t, idx.Upsert(context.Background(), chunks))
	require.NoError(t, idx.Upsert(context.Background(), chunks))

	first, second := <-reqs, <-reqs
	assert.Equal(t, http.MethodPut, first.method)
	assert.Equal(t, "/collections/test/points", first.path)
	id1 := first.body["points"].([]any)[0].(map[string]any)["id"]
	id2 := second.body["points"].([]any)[0].(map[string]any)["id"]
	assert.Equal(t, id1, id2)
}

func TestIndex_DeleteAndCount(t *testing.T) {
	idx, reqs := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/test/points/count" {
			_, _ = w.Write([]byte(`{"result":{"count":4}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{}}`))
	})

	require.NoError(t, idx.DeleteByDocument(context.Background(), "d1"))
	del := <-reqs
	assert.Equal(t, "/collections/test/points/delete", del.path)

	n, err := idx.CountByDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	count := <-reqs
	assert.Equal(t, true, count.body["exact"])
}

func TestIndex_Init(t *testing.T) {
	idx, reqs := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, idx.Init(context.Background(), 768))
	assert.Equal(t, http.MethodGet, (<-reqs).method)
	create := <-reqs
	assert.Equal(t, http.MethodPut, create.method)
	vectors := create.body["vectors"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])

	assert.ErrorIs(t, idx.Init(context.Background(), 0), domain.ErrInvalidInput)
}

func TestIndex_ErrorStatus(t *testing.T) {
	idx, _ := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})
	assert.Error(t, idx.HealthCheck(context.Background()))
}
