package driving

import "github.com/custodia-labs/sercha-drive/internal/core/domain"

// AccessController decides which chunks a user may read
type AccessController interface {
	// BuildFilter returns the index-level predicate for a user
	BuildFilter(user domain.User) domain.AccessFilter

	// Validate re-checks one candidate chunk for a user
	Validate(user domain.User, chunk *domain.IndexedChunk) bool

	// Summary describes the buckets a user can read
	Summary(user domain.User) *domain.AccessSummary
}
