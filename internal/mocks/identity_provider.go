package mocks

import (
	"context"

	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/service/auth"
)

// MockIdentityProvider resolves credentials from a fixed token table.
type MockIdentityProvider struct {
	// Tokens maps a credential to the user it authenticates.
	Tokens map[string]domain.UserID

	AuthenticateFn func(ctx context.Context, credential string) (domain.UserID, error)
}

var _ auth.IdentityProvider = (*MockIdentityProvider)(nil)

// Authenticate implements auth.IdentityProvider.
func (m *MockIdentityProvider) Authenticate(ctx context.Context, credential string) (domain.UserID, error) {
	if m.AuthenticateFn != nil {
		return m.AuthenticateFn(ctx, credential)
	}
	if credential == "" {
		return 0, auth.ErrMissingToken
	}
	id, ok := m.Tokens[credential]
	if !ok {
		return 0, auth.ErrInvalidToken
	}
	return id, nil
}

// Verify implements auth.IdentityProvider.
func (m *MockIdentityProvider) Verify(ctx context.Context, credential string) domain.Owner {
	id, err := m.Authenticate(ctx, credential)
	if err != nil {
		return domain.Anonymous()
	}
	return domain.OwnedBy(id)
}
