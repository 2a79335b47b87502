package middlewares

import (
	"net/http"

	"github.com/geocoder89/contenthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRoles gates a route on a declarative role set. Runs after
// RequireAuth; a missing identity is a 401, a role miss is a 403.
func (m *AuthMiddleware) RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))

	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		u, ok := UserFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    "unauthorized",
				"error":   "Missing identity context",
			})
			return
		}

		if _, ok := allowed[u.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"code":    "forbidden",
				"error":   "Insufficient role",
			})
			return
		}
		c.Next()
	}
}

// OwnerOrAdmin is the single ownership predicate every owner-gated route
// uses: admins pass, otherwise the requester must own the resource.
func OwnerOrAdmin(u user.User, ownerID string) bool {
	return u.Role == user.RoleAdmin || u.ID == ownerID
}
