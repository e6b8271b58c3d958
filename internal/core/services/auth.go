package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService validates bearer tokens. Sessions and passwords are owned by
// the identity service that issues the tokens.
type authService struct {
	verifier driven.TokenVerifier
	now      func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(verifier driven.TokenVerifier) driving.AuthService {
	return &authService{
		verifier: verifier,
		now:      time.Now,
	}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.verifier.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	if claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt > 0 && s.now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	return &domain.AuthContext{
		UserID:    claims.UserID,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}
