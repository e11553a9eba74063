package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/api/middleware"
	"example.com/verdad/services/notifier/internal/liveblocks"
)

// SessionMinter mints collaboration sessions for verified users
type SessionMinter interface {
	AuthorizeUser(ctx context.Context, userID string, info liveblocks.SessionInfo, permissions map[string][]string) (*liveblocks.AuthorizeResult, error)
}

// AuthHandler proxies collaboration session auth: the bearer token is
// verified upstream by the identity middleware, then a session granting
// full access to all rooms under a wildcard policy is minted and the
// provider's response passed through verbatim.
type AuthHandler struct {
	collab SessionMinter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(collab SessionMinter) *AuthHandler {
	return &AuthHandler{collab: collab}
}

// HandleAuth mints a collaboration session for the authenticated user
func (h *AuthHandler) HandleAuth(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization header"})
		return
	}

	result, err := h.collab.AuthorizeUser(c.Request.Context(), user.Subject(),
		liveblocks.SessionInfo{
			Name:   user.DisplayName(),
			Avatar: user.UserMetadata.AvatarURL,
		},
		map[string][]string{"*": liveblocks.FullAccess},
	)
	if err != nil {
		log.Error().Err(err).Str("user", user.Subject()).Msg("Failed to authorize session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to authorize session"})
		return
	}

	c.Data(result.Status, "application/json", result.Body)
}
