package driven

import "github.com/custodia-labs/sercha-drive/internal/core/domain"

// TokenVerifier validates bearer tokens issued by the identity service.
// Issuing tokens and checking passwords happen elsewhere.
type TokenVerifier interface {
	// ParseToken validates token and returns its claims
	ParseToken(token string) (*domain.TokenClaims, error)

	// GenerateToken signs claims. Used by tests and operator tooling.
	GenerateToken(claims *domain.TokenClaims) (string, error)
}
