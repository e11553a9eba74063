package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/models"
)

// ProfileStore looks up and searches user profiles
type ProfileStore interface {
	GetByEmails(ctx context.Context, emails []string) ([]models.Profile, error)
	Search(ctx context.Context, text string) ([]models.Profile, error)
}

// UsersHandler serves user lookup and search for the commenting frontend
type UsersHandler struct {
	profiles ProfileStore
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(profiles ProfileStore) *UsersHandler {
	return &UsersHandler{profiles: profiles}
}

// UsersByEmailsRequest is the lookup request body
type UsersByEmailsRequest struct {
	Emails []string `json:"emails"`
}

// GetUsersByEmails resolves a list of emails to profiles, preserving the
// request order. Emails with no matching profile are filtered out.
func (h *UsersHandler) GetUsersByEmails(c *gin.Context) {
	var req UsersByEmailsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Emails) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or empty email array"})
		return
	}

	profiles, err := h.profiles.GetByEmails(c.Request.Context(), req.Emails)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up profiles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up users"})
		return
	}

	byEmail := make(map[string]models.Profile, len(profiles))
	for _, profile := range profiles {
		byEmail[profile.Email] = profile
	}

	ordered := make([]models.Profile, 0, len(req.Emails))
	for _, email := range req.Emails {
		if profile, ok := byEmail[email]; ok {
			ordered = append(ordered, profile)
		}
	}

	c.JSON(http.StatusOK, ordered)
}

// SearchUsers finds profiles whose name or email matches the query text
func (h *UsersHandler) SearchUsers(c *gin.Context) {
	profiles, err := h.profiles.Search(c.Request.Context(), c.Query("text"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to search profiles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	c.JSON(http.StatusOK, profiles)
}
