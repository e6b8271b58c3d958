package mocks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.FileStore = (*MockFileStore)(nil)

// MockFileStore is an in-memory FileStore for testing.
// Resources can be made to appear only after a number of lookups to model
// the eventual consistency of the remote store.
type MockFileStore struct {
	mu          sync.RWMutex
	files       map[string]*domain.FileMetadata
	content     map[string][]byte
	appearAfter map[string]int
	lookups     map[string]int
	watches     []domain.WatchRequest
	stopped     []string
	downloads   int

	// Hooks override the in-memory behavior when set
	ClassifyFn func(resourceID string) (domain.ResourceKind, *domain.FileMetadata, error)
	DownloadFn func(fileID string, w io.Writer) error
	WatchFn    func(req domain.WatchRequest) (*domain.WatchRegistration, error)
	StopFn     func(channelID, resourceID string) error
}

// NewMockFileStore creates a new MockFileStore
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{
		files:       make(map[string]*domain.FileMetadata),
		content:     make(map[string][]byte),
		appearAfter: make(map[string]int),
		lookups:     make(map[string]int),
	}
}

func (m *MockFileStore) Classify(ctx context.Context, resourceID string) (domain.ResourceKind, *domain.FileMetadata, error) {
	if m.ClassifyFn != nil {
		return m.ClassifyFn(resourceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[resourceID]++
	meta, ok := m.files[resourceID]
	if !ok || m.lookups[resourceID] <= m.appearAfter[resourceID] {
		return domain.ResourceKindMissing, nil, nil
	}
	cp := *meta
	return cp.Kind(), &cp, nil
}

func (m *MockFileStore) GetMetadata(ctx context.Context, resourceID string) (*domain.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.files[resourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *meta
	return &cp, nil
}

func (m *MockFileStore) ListChildren(ctx context.Context, folderID string, since time.Time) ([]*domain.FileMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.FileMetadata
	for _, meta := range m.files {
		if meta.Trashed || !slices.Contains(meta.Parents, folderID) {
			continue
		}
		if !since.IsZero() && !meta.IsFolder() && !meta.ChangedWithin(since) {
			continue
		}
		cp := *meta
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *domain.FileMetadata) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return result, nil
}

func (m *MockFileStore) Download(ctx context.Context, fileID string, w io.Writer) error {
	m.mu.Lock()
	m.downloads++
	m.mu.Unlock()
	if m.DownloadFn != nil {
		return m.DownloadFn(fileID, w)
	}
	m.mu.RLock()
	data, ok := m.content[fileID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("download %s: %w", fileID, domain.ErrNotFound)
	}
	_, err := w.Write(data)
	return err
}

func (m *MockFileStore) Watch(ctx context.Context, req domain.WatchRequest) (*domain.WatchRegistration, error) {
	m.mu.Lock()
	m.watches = append(m.watches, req)
	m.mu.Unlock()
	if m.WatchFn != nil {
		return m.WatchFn(req)
	}
	return &domain.WatchRegistration{
		ResourceID: "res-" + req.ChannelID,
		Expiration: time.Now().Add(req.TTL).UnixMilli(),
	}, nil
}

func (m *MockFileStore) StopWatch(ctx context.Context, channelID, resourceID string) error {
	m.mu.Lock()
	m.stopped = append(m.stopped, channelID)
	m.mu.Unlock()
	if m.StopFn != nil {
		return m.StopFn(channelID, resourceID)
	}
	return nil
}

// Helper methods for testing

// AddFolder stores a folder under parent ("" for a root)
func (m *MockFileStore) AddFolder(id, name, parent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := &domain.FileMetadata{ID: id, Name: name, MimeType: domain.FolderMimeType}
	if parent != "" {
		meta.Parents = []string{parent}
	}
	m.files[id] = meta
}

// AddFile stores a file and its content
func (m *MockFileStore) AddFile(meta *domain.FileMetadata, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *meta
	m.files[meta.ID] = &cp
	m.content[meta.ID] = content
}

// Remove deletes a resource
func (m *MockFileStore) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	delete(m.content, id)
}

// AppearAfter makes Classify report id as missing for the first n lookups
func (m *MockFileStore) AppearAfter(id string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appearAfter[id] = n
}

// Lookups returns how many times Classify looked up id
func (m *MockFileStore) Lookups(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookups[id]
}

// Watches returns every watch request received
func (m *MockFileStore) Watches() []domain.WatchRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WatchRequest(nil), m.watches...)
}

// Stopped returns the channel ids passed to StopWatch
func (m *MockFileStore) Stopped() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.stopped...)
}

// Downloads returns the number of Download calls
func (m *MockFileStore) Downloads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloads
}
