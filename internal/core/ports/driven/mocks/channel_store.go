package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.ChannelStore = (*MockChannelStore)(nil)

// MockChannelStore is an in-memory ChannelStore for testing
type MockChannelStore struct {
	mu       sync.RWMutex
	channels map[string]*domain.WebhookChannel
	order    []string

	// ActivateFn runs before Activate and can fail it
	ActivateFn func(channel *domain.WebhookChannel) error
}

// NewMockChannelStore creates a new MockChannelStore
func NewMockChannelStore() *MockChannelStore {
	return &MockChannelStore{
		channels: make(map[string]*domain.WebhookChannel),
	}
}

func (m *MockChannelStore) Activate(ctx context.Context, channel *domain.WebhookChannel) (int, error) {
	if m.ActivateFn != nil {
		if err := m.ActivateFn(channel); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ch := range m.channels {
		if ch.FolderID == channel.FolderID && ch.ChannelID != channel.ChannelID && ch.IsActive() {
			ch.Status = domain.ChannelStatusInactive
			ch.UpdatedAt = time.Now()
			n++
		}
	}
	if _, ok := m.channels[channel.ChannelID]; !ok {
		m.order = append(m.order, channel.ChannelID)
	}
	cp := *channel
	m.channels[channel.ChannelID] = &cp
	return n, nil
}

func (m *MockChannelStore) Get(ctx context.Context, channelID string) (*domain.WebhookChannel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *MockChannelStore) GetActiveByFolder(ctx context.Context, folderID string) (*domain.WebhookChannel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		ch := m.channels[m.order[i]]
		if ch != nil && ch.FolderID == folderID && ch.IsActive() {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockChannelStore) ListActive(ctx context.Context) ([]*domain.WebhookChannel, error) {
	return m.list(func(ch *domain.WebhookChannel) bool { return ch.IsActive() }), nil
}

func (m *MockChannelStore) ListExpiring(ctx context.Context, beforeMs int64) ([]*domain.WebhookChannel, error) {
	return m.list(func(ch *domain.WebhookChannel) bool {
		return ch.IsActive() && ch.Expiration <= beforeMs
	}), nil
}

func (m *MockChannelStore) list(keep func(*domain.WebhookChannel) bool) []*domain.WebhookChannel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.WebhookChannel
	for _, id := range m.order {
		ch := m.channels[id]
		if ch != nil && keep(ch) {
			cp := *ch
			result = append(result, &cp)
		}
	}
	return result
}

func (m *MockChannelStore) Deactivate(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return domain.ErrNotFound
	}
	ch.Status = domain.ChannelStatusInactive
	ch.UpdatedAt = time.Now()
	return nil
}

func (m *MockChannelStore) Delete(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.channels, channelID)
	for i, id := range m.order {
		if id == channelID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Helper methods for testing

// Put stores a channel as is, leaving other channels of its folder untouched
func (m *MockChannelStore) Put(channel *domain.WebhookChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channel.ChannelID]; !ok {
		m.order = append(m.order, channel.ChannelID)
	}
	cp := *channel
	m.channels[channel.ChannelID] = &cp
}

// ActiveCount returns the number of active channels for a folder
func (m *MockChannelStore) ActiveCount(folderID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ch := range m.channels {
		if ch.FolderID == folderID && ch.IsActive() {
			n++
		}
	}
	return n
}

func (m *MockChannelStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}
