package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"example.com/verdad/services/notifier/config"
)

// ErrInvalidToken reports a bearer token the identity provider rejected
var ErrInvalidToken = errors.New("invalid or expired token")

// User is the identity attached to a verified session token
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	UserMetadata struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

// DisplayName returns the user's name, falling back to the email
func (u *User) DisplayName() string {
	if u.UserMetadata.Name != "" {
		return u.UserMetadata.Name
	}
	return u.Email
}

// Subject returns the identifier a collaboration session is minted for
func (u *User) Subject() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Client verifies session tokens against the identity provider
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates an identity provider client
func NewClient(cfg config.IdentityConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		serviceKey: cfg.ServiceRoleKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// VerifyToken resolves a bearer token to the user it belongs to. A token the
// provider rejects returns ErrInvalidToken; transport failures return a
// distinct error so callers can answer 500 instead of 401.
func (c *Client) VerifyToken(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build user request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "identity provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "failed to decode user response")
	}
	return &user, nil
}
