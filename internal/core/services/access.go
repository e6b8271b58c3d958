package services

import (
	"log/slog"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.AccessController = (*AccessController)(nil)

// AccessController enforces the data-access rules at two independent points:
// the filter pushed down to the index and the per-chunk Validate applied to
// everything the index returns. Both must agree for a chunk to be served.
type AccessController struct {
	logger *slog.Logger
}

// NewAccessController creates a new access controller.
func NewAccessController(logger *slog.Logger) *AccessController {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessController{logger: logger}
}

// BuildFilter returns the index predicate for user. Unknown roles get a
// deny-all predicate, never an empty one.
func (a *AccessController) BuildFilter(user domain.User) domain.AccessFilter {
	switch user.Role {
	case domain.RoleSignedUp, domain.RoleNonPIAccess:
		return domain.AccessFilter{Kind: domain.FilterNonPIOnly}
	case domain.RolePIAccess:
		if user.ID == "" {
			return domain.AccessFilter{Kind: domain.FilterNonPIOnly}
		}
		return domain.AccessFilter{Kind: domain.FilterNonPIOrOwned, OwnerUID: user.ID}
	default:
		a.logger.Warn("no document access for role", "user_id", user.ID, "role", user.Role)
		return domain.AccessFilter{Kind: domain.FilterDenyAll}
	}
}

// Validate decides from the chunk's own metadata whether user may read it.
// It does not consult BuildFilter.
func (a *AccessController) Validate(user domain.User, chunk *domain.IndexedChunk) bool {
	if chunk == nil {
		return false
	}
	access := chunk.Access

	switch user.Role {
	case domain.RoleSignedUp, domain.RoleNonPIAccess:
		return !access.IsPI
	case domain.RolePIAccess:
		if !access.IsPI {
			return true
		}
		return user.ID != "" && access.OwnerUID != nil && *access.OwnerUID == user.ID
	default:
		return false
	}
}

// Summary describes which buckets user can read
func (a *AccessController) Summary(user domain.User) *domain.AccessSummary {
	filter := a.BuildFilter(user)
	summary := &domain.AccessSummary{
		UserID:  user.ID,
		Role:    user.Role,
		PIScope: "none",
		Filter:  filter.Kind,
	}
	switch filter.Kind {
	case domain.FilterNonPIOnly:
		summary.CanReadNonPI = true
	case domain.FilterNonPIOrOwned:
		summary.CanReadNonPI = true
		summary.CanReadPI = true
		summary.PIScope = "own"
	}
	return summary
}

// ClassifyPath derives access metadata for a document from its folder path.
// The PI / NON PI segment convention is fixed; see domain.ClassifyPath.
func (a *AccessController) ClassifyPath(segments []string) domain.AccessMetadata {
	access := domain.ClassifyPath(segments)
	if access.IsPI && access.OwnerUID == nil {
		a.logger.Debug("folder path not classified, restricting", "path", segments)
	}
	return access
}
