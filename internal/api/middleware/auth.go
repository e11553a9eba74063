package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/identity"
)

// UserContextKey is the gin context key the verified user is stored under
const UserContextKey = "identity_user"

// TokenVerifier resolves a bearer token to a user
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*identity.User, error)
}

// RequireIdentity validates the bearer token in the Authorization header
// against the identity provider and stores the resolved user in the request
// context.
func RequireIdentity(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		user, err := verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			} else {
				log.Error().Err(err).Msg("Identity provider unavailable")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify token"})
			}
			c.Abort()
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// UserFrom extracts the verified user stored by RequireIdentity
func UserFrom(c *gin.Context) (*identity.User, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*identity.User)
	return user, ok
}
