package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/infrastructure/auth"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user
	UserContextKey ContextKey = "user"

	// OwnerIDHeader and RoleHeader identify the caller when token
	// authentication is disabled, e.g. behind a trusted gateway.
	OwnerIDHeader = "X-Owner-ID"
	RoleHeader    = "X-Role"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid bearer token and attaches its user.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}

// HeaderIdentity trusts the X-Owner-ID and X-Role headers.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get(OwnerIDHeader))
		if ownerID == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing "+OwnerIDHeader+" header")
			return
		}

		role := domain.Role(r.Header.Get(RoleHeader))
		if role == "" {
			role = domain.RoleCustomer
		}
		if !role.IsValid() {
			writeJSONError(w, http.StatusUnauthorized, "unknown role")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &domain.User{ID: ownerID, Role: role})))
	})
}

// RequireAdmin rejects callers whose role cannot administer the engine.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
			return
		}

		if !user.Role.CanAdminister() {
			writeJSONError(w, http.StatusForbidden, domain.ErrInsufficientRole.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithUser attaches user to ctx and tags the request logger with it.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		tagged := l.With().Str("owner_id", user.ID).Logger()
		ctx = tagged.WithContext(ctx)
	}
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext extracts the authenticated user from context
func GetUserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
