package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService records prompts and returns a canned answer
type MockLLMService struct {
	mu       sync.Mutex
	answer   string
	failNext bool
	prompts  []LLMPrompt
}

// LLMPrompt is one recorded Generate call
type LLMPrompt struct {
	System string
	User   string
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService(answer string) *MockLLMService {
	return &MockLLMService{answer: answer}
}

func (m *MockLLMService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, LLMPrompt{System: systemPrompt, User: userPrompt})
	if m.failNext {
		m.failNext = false
		return "", context.DeadlineExceeded
	}
	return m.answer, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockLLMService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// Calls returns the number of Generate calls
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns every recorded call
func (m *MockLLMService) Prompts() []LLMPrompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LLMPrompt(nil), m.prompts...)
}
