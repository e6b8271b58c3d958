package normalisers

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry implements NormaliserRegistry with priority-based selection
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty normaliser registry
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with the normalisers for every
// supported Drive file type plus the plain text fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&PDFNormaliser{})
	r.Register(&WordNormaliser{})
	r.Register(&SpreadsheetNormaliser{})
	return r
}

// Register adds a normaliser
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, normaliser)
}

// Get returns the highest priority normaliser for mimeType, or nil
func (r *Registry) Get(mimeType string) driven.Normaliser {
	matches := r.GetAll(mimeType)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// GetAll returns every normaliser matching mimeType, highest priority first.
// Equal priorities keep registration order.
func (r *Registry) GetAll(mimeType string) []driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []driven.Normaliser
	for _, n := range r.normalisers {
		if matchesMIMEType(n.SupportedTypes(), mimeType) {
			matches = append(matches, n)
		}
	}
	slices.SortStableFunc(matches, func(a, b driven.Normaliser) int {
		return b.Priority() - a.Priority()
	})
	return matches
}

// Normalise runs content through the best normaliser for mimeType.
// Content is returned unchanged when nothing matches.
func (r *Registry) Normalise(content, mimeType string) string {
	n := r.Get(mimeType)
	if n == nil {
		return content
	}
	return n.Normalise(content, mimeType)
}

// List returns all registered MIME types
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, n := range r.normalisers {
		for _, t := range n.SupportedTypes() {
			seen[t] = struct{}{}
		}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// matchesMIMEType reports whether mimeType is covered by supportedTypes.
// Parameters such as charset are ignored; "type/*" and "*/*" are wildcards.
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))
		switch {
		case supported == "*/*", supported == mimeType:
			return true
		case strings.HasSuffix(supported, "/*") && strings.HasPrefix(mimeType, supported[:len(supported)-1]):
			return true
		}
	}
	return false
}
