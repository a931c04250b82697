package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ideascope-backend/internal/shared/auth"
	"ideascope-backend/internal/shared/server/respond"
	"ideascope-backend/internal/users"
)

const (
	userIDKey   = "userId"
	identityKey = "identity"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// IdentityResolver loads the caller's identity from the user directory.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (users.Identity, error)
}

// Auth validates the bearer JWT, resolves the subject through the user
// directory and stores the identity in context.
func Auth(verifier TokenVerifier, resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "unknown user", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to resolve user", nil)
			return
		}

		c.Set(userIDKey, identity.ID)
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequirePermission rejects callers lacking permission with 403.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing identity", nil)
			return
		}
		if !identity.Has(permission) {
			respond.Error(c, http.StatusForbidden, "forbidden", "permission required", gin.H{"permission": permission})
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware, or 0.
func UserIDFromContext(c *gin.Context) int64 {
	if c == nil {
		return 0
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(int64); ok {
		return id
	}
	return 0
}

// IdentityFromContext fetches the identity set by the auth middleware.
func IdentityFromContext(c *gin.Context) (users.Identity, bool) {
	if c == nil {
		return users.Identity{}, false
	}
	val, ok := c.Get(identityKey)
	if !ok {
		return users.Identity{}, false
	}
	identity, ok := val.(users.Identity)
	return identity, ok
}
