package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven/mocks"
)

func newTestAuthService() (*mocks.MockTokenVerifier, *authService) {
	verifier := mocks.NewMockTokenVerifier()
	svc := NewAuthService(verifier).(*authService)
	return verifier, svc
}

func TestAuthService_ValidateToken(t *testing.T) {
	verifier, svc := newTestAuthService()
	ctx := context.Background()

	valid, _ := verifier.GenerateToken(&domain.TokenClaims{
		UserID:    "u1",
		Role:      domain.RolePIAccess,
		SessionID: "s1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	expired, _ := verifier.GenerateToken(&domain.TokenClaims{
		UserID:    "u1",
		Role:      domain.RolePIAccess,
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	anonymous, _ := verifier.GenerateToken(&domain.TokenClaims{Role: domain.RolePIAccess})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid token", valid, nil},
		{"empty token", "", domain.ErrTokenInvalid},
		{"garbage", "!!not-base64!!", domain.ErrTokenInvalid},
		{"expired", expired, domain.ErrTokenExpired},
		{"no user id", anonymous, domain.ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authCtx, err := svc.ValidateToken(ctx, tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if authCtx.UserID != "u1" || authCtx.Role != domain.RolePIAccess || authCtx.SessionID != "s1" {
				t.Errorf("unexpected auth context %+v", authCtx)
			}
			if u := authCtx.User(); u.ID != "u1" || u.Role != domain.RolePIAccess {
				t.Errorf("unexpected user %+v", u)
			}
		})
	}
}

func TestAuthService_ValidateToken_ClockInjected(t *testing.T) {
	verifier, svc := newTestAuthService()
	token, _ := verifier.GenerateToken(&domain.TokenClaims{
		UserID:    "u1",
		Role:      domain.RoleSignedUp,
		ExpiresAt: 1000,
	})

	svc.now = func() time.Time { return time.Unix(999, 0) }
	if _, err := svc.ValidateToken(context.Background(), token); err != nil {
		t.Errorf("expected token valid before expiry, got %v", err)
	}

	svc.now = func() time.Time { return time.Unix(1001, 0) }
	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}
