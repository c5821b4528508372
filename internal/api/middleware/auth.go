package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/fcs-vault/internal/api/shared"
	"github.com/phrazzld/fcs-vault/internal/domain"
	"github.com/phrazzld/fcs-vault/internal/platform/logger"
	"github.com/phrazzld/fcs-vault/internal/redact"
	"github.com/phrazzld/fcs-vault/internal/service/auth"
)

// AuthMiddleware resolves bearer credentials to an owner for routes.
type AuthMiddleware struct {
	identity auth.IdentityProvider
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(identity auth.IdentityProvider) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
	}
}

// bearerToken extracts the token from an Authorization header value.
// ok is false when a header is present but not in Bearer form.
func bearerToken(header string) (token string, ok bool) {
	if header == "" {
		return "", true
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth rejects requests without a valid bearer token and adds the
// authenticated owner to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required",
				shared.WithKind("auth"))
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format",
				shared.WithKind("auth"))
			return
		}

		userID, err := m.identity.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired",
					shared.WithKind("auth"), shared.WithElevatedLogLevel())
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrTokenNotYetValid),
				errors.Is(err, auth.ErrMissingToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token",
					shared.WithKind("auth"), shared.WithElevatedLogLevel())
			default:
				logger.FromContextOrDefault(r.Context(), slog.Default()).
					Error("failed to validate token", redact.Attr(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		ctx := shared.WithOwner(r.Context(), domain.OwnedBy(userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth never rejects. Callers with a missing, malformed or invalid
// credential continue as the anonymous owner.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := domain.Anonymous()
		if token, ok := bearerToken(r.Header.Get("Authorization")); ok && token != "" {
			owner = m.identity.Verify(r.Context(), token)
		}
		ctx := shared.WithOwner(r.Context(), owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
