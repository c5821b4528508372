package auth

import (
	"context"
	"log/slog"

	"github.com/phrazzld/fcs-vault/internal/domain"
)

// IdentityProvider resolves a bearer credential to an owner.
type IdentityProvider interface {
	// Verify never fails: a missing or invalid credential is the anonymous owner.
	Verify(ctx context.Context, credential string) domain.Owner

	// Authenticate is Verify for endpoints that require a user; it reports
	// why the credential was rejected.
	Authenticate(ctx context.Context, credential string) (domain.UserID, error)
}

// JWTIdentityProvider verifies credentials as JWT access tokens.
type JWTIdentityProvider struct {
	tokens JWTService
	logger *slog.Logger
}

var _ IdentityProvider = (*JWTIdentityProvider)(nil)

// NewJWTIdentityProvider wraps a JWTService.
// If logger is nil, a default logger will be used.
func NewJWTIdentityProvider(tokens JWTService, logger *slog.Logger) *JWTIdentityProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTIdentityProvider{tokens: tokens, logger: logger}
}

// Authenticate implements IdentityProvider.
func (p *JWTIdentityProvider) Authenticate(ctx context.Context, credential string) (domain.UserID, error) {
	if credential == "" {
		return 0, ErrMissingToken
	}
	claims, err := p.tokens.ValidateToken(ctx, credential)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Verify implements IdentityProvider.
func (p *JWTIdentityProvider) Verify(ctx context.Context, credential string) domain.Owner {
	id, err := p.Authenticate(ctx, credential)
	if err != nil {
		if credential != "" {
			p.logger.Debug("treating caller as anonymous", slog.String("reason", err.Error()))
		}
		return domain.Anonymous()
	}
	return domain.OwnedBy(id)
}
