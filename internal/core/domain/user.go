package domain

import (
	"slices"
	"strings"
)

// Role defines a user's data-access level. Roles are not a hierarchy.
type Role string

const (
	RoleSignedUp    Role = "signed_up"
	RoleNonPIAccess Role = "non_pi_access"
	RolePIAccess    Role = "pi_access"
	RoleAdmin       Role = "admin" // manages channels and scans; sees no documents by role alone
)

// User is the identity a request runs as
type User struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin checks if the user may manage channels and scans
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Access buckets stored in a chunk's RolesAllowed
const (
	BucketPI    = "pi"
	BucketNonPI = "non_pi"
)

// AccessMetadata is the access classification attached to every chunk
type AccessMetadata struct {
	IsPI         bool     `json:"is_pi"`
	OwnerUID     *string  `json:"owner_uid,omitempty"`
	RolesAllowed []string `json:"roles_allowed"`
}

// RestrictedAccess returns PI access metadata owned by owner (nil for unknown owner)
func RestrictedAccess(owner *string) AccessMetadata {
	return AccessMetadata{IsPI: true, OwnerUID: owner, RolesAllowed: []string{BucketPI}}
}

// UnrestrictedAccess returns non-PI access metadata
func UnrestrictedAccess() AccessMetadata {
	return AccessMetadata{IsPI: false, RolesAllowed: []string{BucketNonPI}}
}

// Owner returns the owner uid or empty string
func (a AccessMetadata) Owner() string {
	if a.OwnerUID == nil {
		return ""
	}
	return *a.OwnerUID
}

// Consistent reports whether the roles agree with the PI flag
func (a AccessMetadata) Consistent() bool {
	if a.IsPI {
		return slices.Contains(a.RolesAllowed, BucketPI)
	}
	return slices.Contains(a.RolesAllowed, BucketNonPI)
}

// Folder segment literals of the classification convention
const (
	SegmentPI    = "PI"
	SegmentNonPI = "NON PI"
)

// ClassifyPath derives access metadata from a folder path given as segments
// from the root downward. A "PI" segment followed by an owner segment makes the
// document restricted to that owner. A "NON PI" segment makes it unrestricted.
// Everything else fails closed to restricted with no owner.
func ClassifyPath(segments []string) AccessMetadata {
	for i, seg := range segments {
		switch strings.ToUpper(strings.TrimSpace(seg)) {
		case SegmentPI:
			if i+1 < len(segments) {
				owner := strings.TrimSpace(segments[i+1])
				if owner != "" {
					return RestrictedAccess(&owner)
				}
			}
			return RestrictedAccess(nil)
		case SegmentNonPI:
			return UnrestrictedAccess()
		}
	}
	return RestrictedAccess(nil)
}
