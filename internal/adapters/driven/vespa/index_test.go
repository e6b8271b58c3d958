package vespa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Index, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewIndex(DefaultConfig(srv.URL + "/")), &calls
}

func TestAccessYQL(t *testing.T) {
	clause, ok := accessYQL(domain.AccessFilter{Kind: domain.FilterNonPIOnly})
	assert.True(t, ok)
	assert.Equal(t, "is_pi = false", clause)

	clause, ok = accessYQL(domain.AccessFilter{Kind: domain.FilterNonPIOrOwned, OwnerUID: `u"1`})
	assert.True(t, ok)
	assert.Equal(t, `(is_pi = false or (is_pi = true and owner_uid contains "u\"1"))`, clause)

	_, ok = accessYQL(domain.AccessFilter{Kind: domain.FilterDenyAll})
	assert.False(t, ok)
	_, ok = accessYQL(domain.AccessFilter{})
	assert.False(t, ok)
}

func TestIndex_Search(t *testing.T) {
	idx, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"root":{"fields":{"totalCount":2},"children":[
			{"relevance":0.9,"fields":{"chunk_id":"c1","source_doc_id":"d1","document_name":"a.pdf","page":2,"text":"hello","is_pi":true,"owner_uid":"u1","roles_allowed":["pi"]}},
			{"relevance":0.4,"fields":{"chunk_id":"c2","source_doc_id":"d2","document_name":"b.pdf","page":1,"text":"world","is_pi":false,"roles_allowed":["non_pi"]}}
		]}}`))
	})

	results, err := idx.Search(context.Background(), []float32{0.1, 0.2},
		domain.AccessFilter{Kind: domain.FilterNonPIOrOwned, OwnerUID: "u1"}, 7)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "c1", results[0].Chunk.ChunkID)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, "u1", results[0].Chunk.Access.Owner())
	assert.True(t, results[0].Chunk.Access.IsPI)
	assert.Nil(t, results[1].Chunk.Access.OwnerUID)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "/search/", call.path)
	yql := call.body["yql"].(string)
	assert.Contains(t, yql, "nearestNeighbor(embedding, embedding)")
	assert.Contains(t, yql, `owner_uid contains "u1"`)
	assert.Equal(t, float64(7), call.body["hits"])
	assert.Equal(t, "semantic", call.body["ranking.profile"])
}

func TestIndex_Search_DenyAllSkipsQuery(t *testing.T) {
	idx, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	results, err := idx.Search(context.Background(), []float32{1}, domain.AccessFilter{Kind: domain.FilterDenyAll}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, *calls)
}

func TestIndex_Search_Error(t *testing.T) {
	idx, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := idx.Search(context.Background(), []float32{1}, domain.AccessFilter{Kind: domain.FilterNonPIOnly}, 10)
	assert.Error(t, err)
}

func TestIndex_Upsert(t *testing.T) {
	idx, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	owner := "u1"

	err := idx.Upsert(context.Background(), []*domain.IndexedChunk{
		{ChunkID: "d1-0", SourceDocID: "d1", Text: "a", Embedding: []float32{1, 2}, Access: domain.RestrictedAccess(&owner)},
		{ChunkID: "d1-1", SourceDocID: "d1", Text: "b", Access: domain.UnrestrictedAccess()},
	})
	require.NoError(t, err)
	require.Len(t, *calls, 2)

	first := (*calls)[0]
	assert.Equal(t, http.MethodPost, first.method)
	assert.Equal(t, "/document/v1/sercha/drive_chunk/docid/d1-0", first.path)
	fields := first.body["fields"].(map[string]any)
	assert.Equal(t, true, fields["is_pi"])
	assert.Equal(t, "u1", fields["owner_uid"])
	assert.NotNil(t, fields["embedding"])

	second := (*calls)[1]
	fields = second.body["fields"].(map[string]any)
	assert.NotContains(t, fields, "owner_uid")
	assert.NotContains(t, fields, "embedding")
}

func TestIndex_DeleteByDocument(t *testing.T) {
	idx, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, idx.DeleteByDocument(context.Background(), "doc-1"))
	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	assert.True(t, strings.Contains((*calls)[0].query, "cluster=sercha"))
	assert.Contains(t, (*calls)[0].query, "selection=drive_chunk.source_doc_id")
}

func TestIndex_CountByDocument(t *testing.T) {
	idx, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"root":{"fields":{"totalCount":5}}}`))
	})

	n, err := idx.CountByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestIndex_HealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	idx, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	assert.NoError(t, idx.HealthCheck(context.Background()))
	unhealthy.Store(true)
	assert.Error(t, idx.HealthCheck(context.Background()))
}
