package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/auth"
	"github.com/sellforge/sellforge/internal/models"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey ContextKey = "user"

// AuthMiddleware returns a Gin middleware that requires authentication.
func AuthMiddleware(sessions *auth.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		sessionUser, err := sessions.GetUser(c.Request)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		// Store user in Gin context for handlers to access
		c.Set(string(UserContextKey), sessionUser)
		c.Next()
	}
}

// GetUser returns the authenticated user from the Gin context, or nil.
func GetUser(c *gin.Context) *auth.SessionUser {
	val, ok := c.Get(string(UserContextKey))
	if !ok {
		return nil
	}
	user, ok := val.(*auth.SessionUser)
	if !ok {
		return nil
	}
	return user
}

// RequireUser returns the authenticated user or aborts with 401.
func RequireUser(c *gin.Context) *auth.SessionUser {
	user := GetUser(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return user
}

// RequireRole returns the authenticated user if they hold one of the
// given roles, aborting with 403 otherwise.
func RequireRole(c *gin.Context, roles ...models.UserRole) *auth.SessionUser {
	user := RequireUser(c)
	if user == nil {
		return nil
	}
	for _, role := range roles {
		if user.Role == role {
			return user
		}
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	return nil
}
