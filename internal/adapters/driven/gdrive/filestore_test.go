package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

type fakeDrive struct {
	t       *testing.T
	watched map[string]any
	stopped map[string]any
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	switch {
	case strings.HasSuffix(p, "/files/missing"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
	case strings.HasSuffix(p, "/files/doc-1") && r.URL.Query().Get("alt") == "media":
		_, _ = w.Write([]byte("file body"))
	case strings.HasSuffix(p, "/files/doc-1"):
		_, _ = w.Write([]byte(`{"id":"doc-1","name":"a.pdf","mimeType":"application/pdf","parents":["f1"],"modifiedTime":"2024-05-01T10:00:00.123456Z","createdTime":"2024-04-01T10:00:00Z","size":"42"}`))
	case strings.HasSuffix(p, "/files/f1/watch"):
		_ = json.NewDecoder(r.Body).Decode(&d.watched)
		_, _ = w.Write([]byte(`{"kind":"api#channel","id":"sdw-2-f1-abcd","resourceId":"res-1","expiration":"1715000000000"}`))
	case strings.HasSuffix(p, "/files/f1"):
		_, _ = w.Write([]byte(`{"id":"f1","name":"NON PI","mimeType":"application/vnd.google-apps.folder"}`))
	case strings.HasSuffix(p, "/channels/stop"):
		_ = json.NewDecoder(r.Body).Decode(&d.stopped)
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(p, "/files"):
		assert.Contains(d.t, r.URL.Query().Get("q"), "'f1' in parents")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"nextPageToken":"p2","files":[
				{"id":"old","name":"old.txt","mimeType":"text/plain","modifiedTime":"2020-01-01T00:00:00Z","createdTime":"2020-01-01T00:00:00Z"},
				{"id":"sub","name":"Sub","mimeType":"application/vnd.google-apps.folder","modifiedTime":"2020-01-01T00:00:00Z"}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"files":[{"id":"new","name":"new.txt","mimeType":"text/plain","modifiedTime":"2099-01-01T00:00:00Z","createdTime":"2020-01-01T00:00:00Z"}]}`))
	default:
		d.t.Errorf("unexpected request %s %s", r.Method, p)
		w.WriteHeader(http.StatusTeapot)
	}
}

func newTestStore(t *testing.T) (*FileStore, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	fs, err := New(context.Background(), Config{Endpoint: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	fs.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return fs, fake
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestFileStore_Classify(t *testing.T) {
	fs, _ := newTestStore(t)
	ctx := context.Background()

	kind, meta, err := fs.Classify(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceKindFile, kind)
	assert.Equal(t, "a.pdf", meta.Name)
	assert.Equal(t, int64(42), meta.Size)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC), meta.ModifiedAt, "truncated to ms")

	kind, meta, err = fs.Classify(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceKindFolder, kind)
	assert.True(t, meta.IsFolder())

	kind, meta, err = fs.Classify(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, domain.ResourceKindMissing, kind)
	assert.Nil(t, meta)
}

func TestFileStore_GetMetadata_NotFound(t *testing.T) {
	fs, _ := newTestStore(t)
	_, err := fs.GetMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStore_ListChildren(t *testing.T) {
	fs, _ := newTestStore(t)

	all, err := fs.ListChildren(context.Background(), "f1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3, "both pages")

	recent, err := fs.ListChildren(context.Background(), "f1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var ids []string
	for _, m := range recent {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{"sub", "new"}, ids)
}

func TestFileStore_Download(t *testing.T) {
	fs, _ := newTestStore(t)
	var buf bytes.Buffer
	require.NoError(t, fs.Download(context.Background(), "doc-1", &buf))
	assert.Equal(t, "file body", buf.String())

	assert.ErrorIs(t, fs.Download(context.Background(), "missing", &buf), domain.ErrNotFound)
}

func TestFileStore_WatchAndStop(t *testing.T) {
	fs, fake := newTestStore(t)

	reg, err := fs.Watch(context.Background(), domain.WatchRequest{
		ChannelID:  "sdw-2-f1-abcd",
		FolderID:   "f1",
		WebhookURL: "https://example.com/webhooks/drive",
		Token:      "secret",
		TTL:        time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "res-1", reg.ResourceID)
	assert.Equal(t, int64(1715000000000), reg.Expiration)

	assert.Equal(t, "web_hook", fake.watched["type"])
	assert.Equal(t, "secret", fake.watched["token"])
	assert.Equal(t, "https://example.com/webhooks/drive", fake.watched["address"])
	assert.Equal(t, "1700003600000", fake.watched["expiration"])

	require.NoError(t, fs.StopWatch(context.Background(), "sdw-2-f1-abcd", "res-1"))
	assert.Equal(t, "res-1", fake.stopped["resourceId"])
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `it\'s`, escapeQuery("it's"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
