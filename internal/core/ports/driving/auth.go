package driving

import (
	"context"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// AuthService turns a bearer token into the caller's user id and role.
// Expired tokens fail with domain.ErrTokenExpired, anything else malformed
// with domain.ErrTokenInvalid.
type AuthService interface {
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
