package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven/mocks"
)

// Mock services for testing

type mockAuthService struct {
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, domain.ErrTokenInvalid
}

// tokenAuth maps fixed tokens to roles
func tokenAuth() *mockAuthService {
	roles := map[string]domain.Role{
		"admin-token":  domain.RoleAdmin,
		"pi-token":     domain.RolePIAccess,
		"non-pi-token": domain.RoleNonPIAccess,
	}
	return &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			if token == "expired-token" {
				return nil, domain.ErrTokenExpired
			}
			role, ok := roles[token]
			if !ok {
				return nil, domain.ErrTokenInvalid
			}
			return &domain.AuthContext{UserID: "user-" + string(role), Role: role}, nil
		},
	}
}

type mockNotificationProcessor struct {
	acceptFn func(ctx context.Context, event *domain.ChangeEvent) domain.NotificationOutcome
	accepted []*domain.ChangeEvent
}

func (m *mockNotificationProcessor) Accept(ctx context.Context, event *domain.ChangeEvent) domain.NotificationOutcome {
	m.accepted = append(m.accepted, event)
	if m.acceptFn != nil {
		return m.acceptFn(ctx, event)
	}
	return domain.OutcomeDispatched
}

func (m *mockNotificationProcessor) Process(ctx context.Context, event *domain.ChangeEvent) error {
	return nil
}

type mockChannelRegistry struct {
	createFn      func(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error)
	watchTreeFn   func(ctx context.Context, rootFolderID, webhookURL string) (*domain.WatchTreeReport, error)
	renewFn       func(ctx context.Context, threshold time.Duration) (*domain.RenewalReport, error)
	getFn         func(ctx context.Context, channelID string) (*domain.WebhookChannel, error)
	listActiveFn  func(ctx context.Context) ([]*domain.WebhookChannel, error)
	stopFn        func(ctx context.Context, channelID string) error
	deleteFn      func(ctx context.Context, channelID string) error
	deleteCalls   []string
	renewRequests []time.Duration
}

func (m *mockChannelRegistry) Create(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error) {
	if m.createFn != nil {
		return m.createFn(ctx, folderID, webhookURL)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChannelRegistry) WatchTree(ctx context.Context, rootFolderID, webhookURL string) (*domain.WatchTreeReport, error) {
	if m.watchTreeFn != nil {
		return m.watchTreeFn(ctx, rootFolderID, webhookURL)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChannelRegistry) ResolveFolder(ctx context.Context, channelID string) (string, error) {
	return "", domain.ErrNotFound
}

func (m *mockChannelRegistry) RenewExpiring(ctx context.Context, threshold time.Duration) (*domain.RenewalReport, error) {
	m.renewRequests = append(m.renewRequests, threshold)
	if m.renewFn != nil {
		return m.renewFn(ctx, threshold)
	}
	return &domain.RenewalReport{}, nil
}

func (m *mockChannelRegistry) Get(ctx context.Context, channelID string) (*domain.WebhookChannel, error) {
	if m.getFn != nil {
		return m.getFn(ctx, channelID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockChannelRegistry) GetActiveForFolder(ctx context.Context, folderID string) (*domain.WebhookChannel, error) {
	return nil, domain.ErrNotFound
}

func (m *mockChannelRegistry) ListActive(ctx context.Context) ([]*domain.WebhookChannel, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockChannelRegistry) Stop(ctx context.Context, channelID string) error {
	if m.stopFn != nil {
		return m.stopFn(ctx, channelID)
	}
	return nil
}

func (m *mockChannelRegistry) Delete(ctx context.Context, channelID string) error {
	m.deleteCalls = append(m.deleteCalls, channelID)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, channelID)
	}
	return nil
}

type mockSyncTracker struct {
	statsFn        func(ctx context.Context) (*domain.SyncStats, error)
	listByStatusFn func(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error)
	getFn          func(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error)
}

func (m *mockSyncTracker) NeedsSync(ctx context.Context, docID string, modifiedAt time.Time) (bool, error) {
	return true, nil
}

func (m *mockSyncTracker) Track(ctx context.Context, docID, name string, modifiedAt time.Time) (*domain.DocumentSyncRecord, error) {
	return nil, nil
}

func (m *mockSyncTracker) MarkSynced(ctx context.Context, docID string, modifiedAt time.Time) error {
	return nil
}

func (m *mockSyncTracker) MarkFailed(ctx context.Context, docID, reason string) error {
	return nil
}

func (m *mockSyncTracker) MarkDeleted(ctx context.Context, docID string) error {
	return nil
}

func (m *mockSyncTracker) Get(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, docID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSyncTracker) ListByStatus(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status, limit)
	}
	return nil, nil
}

func (m *mockSyncTracker) Stats(ctx context.Context) (*domain.SyncStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &domain.SyncStats{}, nil
}

type mockDocumentSyncer struct {
	scanFn func(ctx context.Context, folderID string, window time.Duration) ([]*domain.SyncResult, error)
}

func (m *mockDocumentSyncer) UpsertDocument(ctx context.Context, meta *domain.FileMetadata) (*domain.SyncResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDocumentSyncer) DeleteDocument(ctx context.Context, docID string) (*domain.SyncResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDocumentSyncer) ScanFolder(ctx context.Context, folderID string, window time.Duration) ([]*domain.SyncResult, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, folderID, window)
	}
	return nil, nil
}

type mockRetrievalService struct {
	retrieveFn func(ctx context.Context, req *domain.RetrievalRequest) (*domain.RetrievalResponse, error)
}

func (m *mockRetrievalService) Retrieve(ctx context.Context, req *domain.RetrievalRequest) (*domain.RetrievalResponse, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, req)
	}
	return &domain.RetrievalResponse{}, nil
}

type mockAccessController struct{}

func (m *mockAccessController) BuildFilter(user domain.User) domain.AccessFilter {
	return domain.AccessFilter{Kind: domain.FilterDenyAll}
}

func (m *mockAccessController) Validate(user domain.User, chunk *domain.IndexedChunk) bool {
	return false
}

func (m *mockAccessController) Summary(user domain.User) *domain.AccessSummary {
	return &domain.AccessSummary{UserID: user.ID, Role: user.Role, PIScope: "none"}
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// Test helpers

type testDeps struct {
	notifications *mockNotificationProcessor
	channels      *mockChannelRegistry
	tracker       *mockSyncTracker
	syncer        *mockDocumentSyncer
	retrieval     *mockRetrievalService
	queue         *mocks.MockTaskQueue
	checks        map[string]Pinger
}

func newTestDeps() *testDeps {
	return &testDeps{
		notifications: &mockNotificationProcessor{},
		channels:      &mockChannelRegistry{},
		tracker:       &mockSyncTracker{},
		syncer:        &mockDocumentSyncer{},
		retrieval:     &mockRetrievalService{},
	}
}

func newTestServer(d *testDeps) *Server {
	cfg := DefaultConfig()
	cfg.Version = "test"
	cfg.WebhookURL = "https://hooks.example.com/webhooks/drive"
	runtime := domain.NewRuntimeConfig("pgvector", "inline")
	runtime.SetEmbeddingAvailable(true)

	deps := Dependencies{
		Auth:          tokenAuth(),
		Notifications: d.notifications,
		Channels:      d.channels,
		Tracker:       d.tracker,
		Syncer:        d.syncer,
		Retrieval:     d.retrieval,
		Access:        &mockAccessController{},
		Runtime:       runtime,
		Checks:        d.checks,
	}
	if d.queue != nil {
		deps.Queue = d.queue
	}
	return NewServer(cfg, deps)
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

// Health

func TestHandleHealth(t *testing.T) {
	s := newTestServer(newTestDeps())
	rr := doRequest(t, s, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(newTestDeps())
	rr := doRequest(t, s, http.MethodGet, "/version", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test", decodeBody[map[string]string](t, rr)["version"])
}

func TestHandleReady(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		d := newTestDeps()
		d.checks = map[string]Pinger{"database": &mockPinger{}, "redis": &mockPinger{}, "cache": nil}
		rr := doRequest(t, newTestServer(d), http.MethodGet, "/ready", "", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		resp := decodeBody[ReadyResponse](t, rr)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, resp.Components)
		assert.Equal(t, "pgvector", resp.IndexBackend)
		assert.True(t, resp.CanIngest)
		assert.False(t, resp.CanAnswer)
	})

	t.Run("failing check", func(t *testing.T) {
		d := newTestDeps()
		d.checks = map[string]Pinger{
			"database": &mockPinger{},
			"index":    &mockPinger{err: errors.New("connection refused")},
		}
		rr := doRequest(t, newTestServer(d), http.MethodGet, "/ready", "", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		resp := decodeBody[ReadyResponse](t, rr)
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "unavailable", resp.Components["index"])
		assert.Equal(t, "ok", resp.Components["database"])
	})
}

func TestHandleSwaggerDoc_NotRegistered(t *testing.T) {
	s := newTestServer(newTestDeps())
	rr := doRequest(t, s, http.MethodGet, "/swagger/doc.json", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// Webhooks

func TestHandleDriveWebhook_ReadsHeaders(t *testing.T) {
	d := newTestDeps()
	s := newTestServer(d)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/drive", nil)
	req.Header.Set("X-Goog-Channel-ID", "sercha-9-folder-abc-1234")
	req.Header.Set("X-Goog-Channel-Token", "secret")
	req.Header.Set("X-Goog-Resource-ID", "file-1")
	req.Header.Set("X-Goog-Resource-State", "update")
	req.Header.Set("X-Goog-Message-Number", "42")
	req.Header.Set("X-Goog-Changed", "content")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])
	require.Len(t, d.notifications.accepted, 1)
	assert.Equal(t, &domain.ChangeEvent{
		ChannelID:     "sercha-9-folder-abc-1234",
		Token:         "secret",
		ResourceID:    "file-1",
		ResourceState: domain.ResourceStateUpdate,
		MessageNumber: "42",
		Changed:       "content",
	}, d.notifications.accepted[0])
}

func TestHandleDriveWebhook_AlwaysAcknowledges(t *testing.T) {
	outcomes := []domain.NotificationOutcome{
		domain.OutcomeRejected,
		domain.OutcomeDuplicate,
		domain.OutcomeHandshake,
		domain.OutcomeIgnored,
	}
	for _, outcome := range outcomes {
		t.Run(string(outcome), func(t *testing.T) {
			d := newTestDeps()
			d.notifications.acceptFn = func(ctx context.Context, event *domain.ChangeEvent) domain.NotificationOutcome {
				return outcome
			}
			rr := doRequest(t, newTestServer(d), http.MethodPost, "/webhooks/drive", "", nil)
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	}

	t.Run("panic in processor", func(t *testing.T) {
		d := newTestDeps()
		d.notifications.acceptFn = func(ctx context.Context, event *domain.ChangeEvent) domain.NotificationOutcome {
			panic("boom")
		}
		rr := doRequest(t, newTestServer(d), http.MethodPost, "/webhooks/drive", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("no processor", func(t *testing.T) {
		s := NewServer(DefaultConfig(), Dependencies{})
		rr := doRequest(t, s, http.MethodPost, "/webhooks/drive", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestHandleWebhookStatus(t *testing.T) {
	d := newTestDeps()
	d.channels.listActiveFn = func(ctx context.Context) ([]*domain.WebhookChannel, error) {
		return []*domain.WebhookChannel{{ChannelID: "c1"}, {ChannelID: "c2"}}, nil
	}
	d.tracker.statsFn = func(ctx context.Context) (*domain.SyncStats, error) {
		return &domain.SyncStats{Synced: 3, Failed: 1, Total: 4}, nil
	}

	rr := doRequest(t, newTestServer(d), http.MethodGet, "/webhooks/drive/status", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[WebhookStatusResponse](t, rr)
	assert.Equal(t, 2, resp.ActiveChannels)
	assert.Equal(t, 3, resp.SyncStats.Synced)
	assert.Equal(t, 4, resp.SyncStats.Total)
	assert.Nil(t, resp.Queue)
}

func TestHandleWebhookStatus_QueueDepth(t *testing.T) {
	d := newTestDeps()
	d.queue = mocks.NewMockTaskQueue()
	require.NoError(t, d.queue.Enqueue(context.Background(), domain.NewScanFolderTask("f1", time.Minute)))
	require.NoError(t, d.queue.Enqueue(context.Background(), domain.NewScanFolderTask("f2", time.Minute)))

	rr := doRequest(t, newTestServer(d), http.MethodGet, "/webhooks/drive/status", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[WebhookStatusResponse](t, rr)
	require.NotNil(t, resp.Queue)
	assert.Equal(t, int64(2), resp.Queue.PendingCount)
}

func TestHandleWebhookStatus_StoreError(t *testing.T) {
	d := newTestDeps()
	d.tracker.statsFn = func(ctx context.Context) (*domain.SyncStats, error) {
		return nil, errors.New("db down")
	}

	rr := doRequest(t, newTestServer(d), http.MethodGet, "/webhooks/drive/status", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "sync stats failed", decodeBody[map[string]string](t, rr)["error"])
}

// Channels

func TestChannelRoutes_RequireAdmin(t *testing.T) {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/channels"},
		{http.MethodGet, "/api/v1/channels"},
		{http.MethodGet, "/api/v1/channels/c1"},
		{http.MethodDelete, "/api/v1/channels/c1"},
		{http.MethodPost, "/api/v1/channels/renew"},
		{http.MethodPost, "/api/v1/sync/scan"},
		{http.MethodGet, "/api/v1/sync/stats"},
		{http.MethodGet, "/api/v1/sync/failed"},
		{http.MethodGet, "/api/v1/sync/documents/doc-1"},
	}
	s := newTestServer(newTestDeps())

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rr := doRequest(t, s, route.method, route.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)

			rr = doRequest(t, s, route.method, route.path, "pi-token", nil)
			assert.Equal(t, http.StatusForbidden, rr.Code)
		})
	}
}

func TestHandleCreateChannel(t *testing.T) {
	d := newTestDeps()
	var gotFolder, gotURL string
	d.channels.createFn = func(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error) {
		gotFolder, gotURL = folderID, webhookURL
		return &domain.WebhookChannel{ChannelID: "sercha-3-abc-x", FolderID: folderID, Status: domain.ChannelStatusActive}, nil
	}

	rr := doRequest(t, newTestServer(d), http.MethodPost, "/api/v1/channels", "admin-token",
		CreateChannelRequest{FolderID: "abc"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "abc", gotFolder)
	assert.Equal(t, "https://hooks.example.com/webhooks/drive", gotURL)
	assert.Equal(t, "sercha-3-abc-x", decodeBody[domain.WebhookChannel](t, rr).ChannelID)
}

func TestHandleCreateChannel_Recursive(t *testing.T) {
	d := newTestDeps()
	created := false
	d.channels.createFn = func(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error) {
		created = true
		return nil, errors.New("unexpected")
	}
	var gotRoot string
	d.channels.watchTreeFn = func(ctx context.Context, rootFolderID, webhookURL string) (*domain.WatchTreeReport, error) {
		gotRoot = rootFolderID
		return &domain.WatchTreeReport{RootFolderID: rootFolderID, Folders: 4, Created: 3, Existing: 1}, nil
	}

	rr := doRequest(t, newTestServer(d), http.MethodPost, "/api/v1/channels", "admin-token",
		CreateChannelRequest{FolderID: "root", Recursive: true})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "root", gotRoot)
	assert.False(t, created)
	report := decodeBody[domain.WatchTreeReport](t, rr)
	assert.Equal(t, 4, report.Folders)
	assert.Equal(t, 3, report.Created)

	d.channels.watchTreeFn = func(ctx context.Context, rootFolderID, webhookURL string) (*domain.WatchTreeReport, error) {
		return nil, fmt.Errorf("list folder: %w", domain.ErrResourceMissing)
	}
	rr = doRequest(t, newTestServer(d), http.MethodPost, "/api/v1/channels", "admin-token",
		CreateChannelRequest{FolderID: "gone", Recursive: true})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleCreateChannel_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		createErr  error
		webhookURL string
		wantStatus int
	}{
		{name: "missing folder", body: CreateChannelRequest{}, wantStatus: http.StatusBadRequest},
		{name: "bad body", body: "not an object", wantStatus: http.StatusBadRequest},
		{name: "folder not found", body: CreateChannelRequest{FolderID: "x"}, createErr: domain.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "store failure", body: CreateChannelRequest{FolderID: "x"}, createErr: errors.New("boom"), wantStatus: http.StatusInternalServerError},
		{name: "no webhook url", body: CreateChannelRequest{FolderID: "x"}, webhookURL: "-", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.channels.createFn = func(ctx context.Context, folderID, webhookURL string) (*domain.WebhookChannel, error) {
				return nil, tt.createErr
			}
			s := newTestServer(d)
			if tt.webhookURL == "-" {
				s.webhookURL = ""
			}

			rr := doRequest(t, s, http.MethodPost, "/api/v1/channels", "admin-token", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestHandleListChannels_EmptyIsArray(t *testing.T) {
	rr := doRequest(t, newTestServer(newTestDeps()), http.MethodGet, "/api/v1/channels", "admin-token", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHandleGetChannel(t *testing.T) {
	d := newTestDeps()
	d.channels.getFn = func(ctx context.Context, channelID string) (*domain.WebhookChannel, error) {
		if channelID == "c1" {
			return &domain.WebhookChannel{ChannelID: "c1"}, nil
		}
		return nil, domain.ErrNotFound
	}
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodGet, "/api/v1/channels/c1", "admin-token", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, s, http.MethodGet, "/api/v1/channels/missing", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleStopChannel(t *testing.T) {
	t.Run("stop only", func(t *testing.T) {
		d := newTestDeps()
		var stopped string
		d.channels.stopFn = func(ctx context.Context, channelID string) error {
			stopped = channelID
			return nil
		}

		rr := doRequest(t, newTestServer(d), http.MethodDelete, "/api/v1/channels/c1", "admin-token", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "c1", stopped)
		assert.Empty(t, d.channels.deleteCalls)
		assert.Equal(t, "stopped", decodeBody[map[string]string](t, rr)["status"])
	})

	t.Run("purge", func(t *testing.T) {
		d := newTestDeps()
		rr := doRequest(t, newTestServer(d), http.MethodDelete, "/api/v1/channels/c1?purge=true", "admin-token", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"c1"}, d.channels.deleteCalls)
		assert.Equal(t, "deleted", decodeBody[map[string]string](t, rr)["status"])
	})

	t.Run("not found", func(t *testing.T) {
		d := newTestDeps()
		d.channels.stopFn = func(ctx context.Context, channelID string) error {
			return domain.ErrNotFound
		}
		rr := doRequest(t, newTestServer(d), http.MethodDelete, "/api/v1/channels/c1", "admin-token", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleRenewChannels(t *testing.T) {
	d := newTestDeps()
	d.channels.renewFn = func(ctx context.Context, threshold time.Duration) (*domain.RenewalReport, error) {
		return &domain.RenewalReport{Checked: 2, Renewed: 1, Skipped: 1}, nil
	}
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodPost, "/api/v1/channels/renew", "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decodeBody[domain.RenewalReport](t, rr).Renewed)

	rr = doRequest(t, s, http.MethodPost, "/api/v1/channels/renew", "admin-token", RenewChannelsRequest{ThresholdHours: 48})
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, []time.Duration{24 * time.Hour, 48 * time.Hour}, d.channels.renewRequests)
}

// Sync

func TestHandleScanFolder(t *testing.T) {
	d := newTestDeps()
	var gotWindow time.Duration
	d.syncer.scanFn = func(ctx context.Context, folderID string, window time.Duration) ([]*domain.SyncResult, error) {
		gotWindow = window
		return []*domain.SyncResult{
			{SourceDocID: "a", Action: domain.SyncActionIndexed, Chunks: 3},
		}, nil
	}
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodPost, "/api/v1/sync/scan", "admin-token",
		ScanFolderRequest{FolderID: "folder-1", WindowMinutes: 60})

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[ScanFolderResponse](t, rr)
	assert.Equal(t, "folder-1", resp.FolderID)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, time.Hour, gotWindow)

	rr = doRequest(t, s, http.MethodPost, "/api/v1/sync/scan", "admin-token", ScanFolderRequest{FolderID: "folder-1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10*time.Minute, gotWindow)
}

func TestHandleScanFolder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		scanErr    error
		wantStatus int
	}{
		{name: "missing folder", body: ScanFolderRequest{}, wantStatus: http.StatusBadRequest},
		{name: "negative window", body: ScanFolderRequest{FolderID: "f", WindowMinutes: -1}, wantStatus: http.StatusBadRequest},
		{name: "folder missing", body: ScanFolderRequest{FolderID: "f"}, scanErr: domain.ErrResourceMissing, wantStatus: http.StatusNotFound},
		{name: "backend failure", body: ScanFolderRequest{FolderID: "f"}, scanErr: errors.New("drive down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.syncer.scanFn = func(ctx context.Context, folderID string, window time.Duration) ([]*domain.SyncResult, error) {
				return nil, tt.scanErr
			}
			rr := doRequest(t, newTestServer(d), http.MethodPost, "/api/v1/sync/scan", "admin-token", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestAsyncRequests_Enqueue(t *testing.T) {
	d := newTestDeps()
	d.queue = mocks.NewMockTaskQueue()
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodPost, "/api/v1/sync/scan", "admin-token",
		ScanFolderRequest{FolderID: "folder-1", WindowMinutes: 30, Async: true})
	require.Equal(t, http.StatusAccepted, rr.Code)
	scan := decodeBody[TaskAcceptedResponse](t, rr)
	assert.Equal(t, string(domain.TaskTypeScanFolder), scan.Type)

	rr = doRequest(t, s, http.MethodPost, "/api/v1/channels/renew", "admin-token",
		RenewChannelsRequest{ThresholdHours: 12, Async: true})
	require.Equal(t, http.StatusAccepted, rr.Code)

	task, err := d.queue.GetTask(context.Background(), scan.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "folder-1", task.FolderID())
	assert.Equal(t, 30*time.Minute, task.ScanWindow(0))
	assert.Empty(t, d.channels.renewRequests)

	renew, err := d.queue.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, renew)
	renew, err = d.queue.DequeueWithTimeout(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, renew)
	assert.Equal(t, domain.TaskTypeRenewChannels, renew.Type)
	assert.Equal(t, 12*time.Hour, renew.RenewThreshold(0))
}

func TestAsyncRequests_NoQueue(t *testing.T) {
	rr := doRequest(t, newTestServer(newTestDeps()), http.MethodPost, "/api/v1/sync/scan", "admin-token",
		ScanFolderRequest{FolderID: "folder-1", Async: true})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleGetTask(t *testing.T) {
	d := newTestDeps()
	d.queue = mocks.NewMockTaskQueue()
	task := domain.NewScanFolderTask("folder-9", 10*time.Minute)
	require.NoError(t, d.queue.Enqueue(context.Background(), task))
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodGet, "/api/v1/sync/tasks/"+task.ID, "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[domain.Task](t, rr)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, domain.TaskTypeScanFolder, got.Type)

	rr = doRequest(t, s, http.MethodGet, "/api/v1/sync/tasks/missing", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, s, http.MethodGet, "/api/v1/sync/tasks/"+task.ID, "pi-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleGetTask_NoQueue(t *testing.T) {
	rr := doRequest(t, newTestServer(newTestDeps()), http.MethodGet, "/api/v1/sync/tasks/t1", "admin-token", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleListFailed(t *testing.T) {
	d := newTestDeps()
	var gotStatus domain.SyncStatus
	var gotLimit int
	d.tracker.listByStatusFn = func(ctx context.Context, status domain.SyncStatus, limit int) ([]*domain.DocumentSyncRecord, error) {
		gotStatus, gotLimit = status, limit
		return []*domain.DocumentSyncRecord{{SourceDocID: "bad", Status: domain.SyncStatusFailed}}, nil
	}
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodGet, "/api/v1/sync/failed", "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.SyncStatusFailed, gotStatus)
	assert.Equal(t, defaultFailedLimit, gotLimit)
	assert.Len(t, decodeBody[[]domain.DocumentSyncRecord](t, rr), 1)

	rr = doRequest(t, s, http.MethodGet, "/api/v1/sync/failed?limit=10000", "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, maxFailedLimit, gotLimit)

	rr = doRequest(t, s, http.MethodGet, "/api/v1/sync/failed?limit=abc", "admin-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleSyncStats(t *testing.T) {
	d := newTestDeps()
	d.tracker.statsFn = func(ctx context.Context) (*domain.SyncStats, error) {
		return &domain.SyncStats{Pending: 1, Synced: 2, Total: 3}, nil
	}

	rr := doRequest(t, newTestServer(d), http.MethodGet, "/api/v1/sync/stats", "admin-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.SyncStats{Pending: 1, Synced: 2, Total: 3}, decodeBody[domain.SyncStats](t, rr))
}

func TestHandleGetSyncRecord(t *testing.T) {
	d := newTestDeps()
	d.tracker.getFn = func(ctx context.Context, docID string) (*domain.DocumentSyncRecord, error) {
		if docID == "doc-1" {
			return &domain.DocumentSyncRecord{SourceDocID: docID, Status: domain.SyncStatusSynced}, nil
		}
		return nil, domain.ErrNotFound
	}
	s := newTestServer(d)

	rr := doRequest(t, s, http.MethodGet, "/api/v1/sync/documents/doc-1", "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.SyncStatusSynced, decodeBody[domain.DocumentSyncRecord](t, rr).Status)

	rr = doRequest(t, s, http.MethodGet, "/api/v1/sync/documents/other", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// Retrieval

func TestHandleRetrieve(t *testing.T) {
	d := newTestDeps()
	var got *domain.RetrievalRequest
	d.retrieval.retrieveFn = func(ctx context.Context, req *domain.RetrievalRequest) (*domain.RetrievalResponse, error) {
		got = req
		return &domain.RetrievalResponse{
			Answer:         "42",
			SanitizedQuery: req.Query,
			ChunkCitations: []string{"doc-1-0"},
			SessionID:      "s-1",
		}, nil
	}

	rr := doRequest(t, newTestServer(d), http.MethodPost, "/api/v1/retrieve", "pi-token", RetrieveRequest{
		Query:     "what is the answer",
		TopKPre:   20,
		TopKPost:  5,
		SessionID: "s-1",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.User{ID: "user-pi_access", Role: domain.RolePIAccess}, got.User)
	assert.Equal(t, 20, got.TopKPre)
	assert.Equal(t, 5, got.TopKPost)

	resp := decodeBody[domain.RetrievalResponse](t, rr)
	assert.Equal(t, "42", resp.Answer)
	assert.Equal(t, []string{"doc-1-0"}, resp.ChunkCitations)
}

func TestHandleRetrieve_Errors(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		rr := doRequest(t, newTestServer(newTestDeps()), http.MethodPost, "/api/v1/retrieve", "", RetrieveRequest{Query: "q"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		rr := doRequest(t, newTestServer(newTestDeps()), http.MethodPost, "/api/v1/retrieve", "expired-token", RetrieveRequest{Query: "q"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "token expired", decodeBody[map[string]string](t, rr)["error"])
	})

	t.Run("invalid request", func(t *testing.T) {
		d := newTestDeps()
		d.retrieval.retrieveFn = func(ctx context.Context, req *domain.RetrievalRequest) (*domain.RetrievalResponse, error) {
			return nil, domain.ErrInvalidInput
		}
		rr := doRequest(t, newTestServer(d), http.MethodPost, "/api/v1/retrieve", "pi-token", RetrieveRequest{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		rr := doRequest(t, newTestServer(newTestDeps()), http.MethodPost, "/api/v1/retrieve", "pi-token", "text")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleMyAccess(t *testing.T) {
	rr := doRequest(t, newTestServer(newTestDeps()), http.MethodGet, "/api/v1/me/access", "non-pi-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	summary := decodeBody[domain.AccessSummary](t, rr)
	assert.Equal(t, "user-non_pi_access", summary.UserID)
	assert.Equal(t, domain.RoleNonPIAccess, summary.Role)
}

// Helpers

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrResourceMissing, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnsupportedType, http.StatusBadRequest},
		{domain.ErrChannelInactive, http.StatusConflict},
		{domain.ErrTokenExpired, http.StatusUnauthorized},
		{domain.ErrAccessDenied, http.StatusForbidden},
		{domain.ErrConfigMissing, http.StatusServiceUnavailable},
		{errors.Join(errors.New("wrapped"), domain.ErrNotFound), http.StatusNotFound},
		{errors.New("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(newTestDeps())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/retrieve", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()

	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
