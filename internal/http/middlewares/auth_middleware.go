package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/contenthub/internal/auth"
	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep these interfaces small so tests can fake them easily.
type TokenValidator interface {
	Validate(raw string) (*auth.Claims, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenValidator
	users UserLoader
}

func NewAuthMiddleware(jwt TokenValidator, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

// RequireAuth resolves the bearer token to a live user and attaches it to
// the request context. Every failure mode answers with the same 401 so a
// caller cannot tell a malformed token from a deactivated account.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := m.resolve(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"error":   "Invalid token",
			})
			return
		}

		c.Set(ctxUserKey, u)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is presented but lets
// anonymous requests through. Used by public content reads, where
// visibility widens for admins and authors.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, ok := m.resolve(c); ok {
			c.Set(ctxUserKey, u)
		}
		c.Next()
	}
}

// resolve walks the full gate: header extraction, structural token
// validation, live user lookup, active check.
func (m *AuthMiddleware) resolve(c *gin.Context) (user.User, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return user.User{}, false
	}

	raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if raw == "" {
		return user.User{}, false
	}

	claims, err := m.jwt.Validate(raw)
	if err != nil {
		return user.User{}, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := m.users.GetByID(ctx, claims.UserID())
	if err != nil || !u.Active {
		return user.User{}, false
	}

	return u, true
}

// Helpers so handlers don't need to know the magic keys.

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	return u.ID, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	return u.Role, ok
}
