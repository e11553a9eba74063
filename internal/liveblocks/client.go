package liveblocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"example.com/verdad/services/notifier/config"
)

// ErrNotFound reports a resource the collaboration backend does not know
var ErrNotFound = errors.New("resource not found")

// FullAccess is the permission set granting complete access to a room
var FullAccess = []string{"room:write", "comment:write"}

// Room is a collaboration workspace containing threads
type Room struct {
	ID               string     `json:"id"`
	CreatedAt        *time.Time `json:"createdAt"`
	LastConnectionAt *time.Time `json:"lastConnectionAt"`
}

// Comment is a single comment as the collaboration backend stores it. Body
// is the opaque rich-text document; the notifier never interprets it beyond
// flattening for notifications.
type Comment struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"threadId"`
	RoomID    string          `json:"roomId"`
	UserID    string          `json:"userId"`
	CreatedAt *time.Time      `json:"createdAt"`
	EditedAt  *time.Time      `json:"editedAt"`
	DeletedAt *time.Time      `json:"deletedAt"`
	Body      json.RawMessage `json:"body"`
}

// Thread is a discussion anchored to one point within a room
type Thread struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"roomId"`
	CreatedAt *time.Time `json:"createdAt"`
	Comments  []Comment  `json:"comments"`
}

// InboxNotification is a per-user notification record. Kind is "thread",
// "textMention", or an application-defined "$"-prefixed custom kind.
type InboxNotification struct {
	ID         string     `json:"inboxNotificationId"`
	Kind       string     `json:"kind"`
	RoomID     string     `json:"roomId"`
	NotifiedAt *time.Time `json:"notifiedAt"`
	ReadAt     *time.Time `json:"readAt"`
}

// SessionInfo carries the user identity attached to a minted session
type SessionInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// AuthorizeResult is the provider's authorize response, passed through to
// the client verbatim (status plus body).
type AuthorizeResult struct {
	Status int
	Body   []byte
}

// Client is a REST client for the collaboration backend. Constructed
// explicitly and passed into components so tests can swap in doubles.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a collaboration backend client
func NewClient(cfg config.LiveblocksConfig) *Client {
	return &Client{
		baseURL:   cfg.APIURL,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetComment fetches the authoritative comment by id
func (c *Client) GetComment(ctx context.Context, roomID, threadID, commentID string) (*Comment, error) {
	path := fmt.Sprintf("/v2/rooms/%s/threads/%s/comments/%s",
		url.PathEscape(roomID), url.PathEscape(threadID), url.PathEscape(commentID))

	var comment Comment
	if err := c.get(ctx, path, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetRooms fetches one page of rooms. An empty returned cursor means the
// listing is exhausted.
func (c *Client) GetRooms(ctx context.Context, cursor string) ([]Room, string, error) {
	path := "/v2/rooms"
	if cursor != "" {
		path += "?startingAfter=" + url.QueryEscape(cursor)
	}

	var page struct {
		Data       []Room  `json:"data"`
		NextCursor *string `json:"nextCursor"`
	}
	if err := c.get(ctx, path, &page); err != nil {
		return nil, "", err
	}

	next := ""
	if page.NextCursor != nil {
		next = *page.NextCursor
	}
	return page.Data, next, nil
}

// GetThreads fetches one page of threads in a room
func (c *Client) GetThreads(ctx context.Context, roomID, cursor string) ([]Thread, string, error) {
	path := fmt.Sprintf("/v2/rooms/%s/threads", url.PathEscape(roomID))
	if cursor != "" {
		path += "?startingAfter=" + url.QueryEscape(cursor)
	}

	var page struct {
		Data       []Thread `json:"data"`
		NextCursor *string  `json:"nextCursor"`
	}
	if err := c.get(ctx, path, &page); err != nil {
		return nil, "", err
	}

	next := ""
	if page.NextCursor != nil {
		next = *page.NextCursor
	}
	return page.Data, next, nil
}

// GetRoomComments fetches all comments of a thread
func (c *Client) GetRoomComments(ctx context.Context, roomID, threadID string) ([]Comment, error) {
	path := fmt.Sprintf("/v2/rooms/%s/threads/%s/comments",
		url.PathEscape(roomID), url.PathEscape(threadID))

	var page struct {
		Data []Comment `json:"data"`
	}
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// GetInboxNotification fetches a user's inbox notification by id. Always
// queried fresh rather than trusted from a webhook body.
func (c *Client) GetInboxNotification(ctx context.Context, userID, inboxNotificationID string) (*InboxNotification, error) {
	path := fmt.Sprintf("/v2/users/%s/inbox-notifications/%s",
		url.PathEscape(userID), url.PathEscape(inboxNotificationID))

	var notification InboxNotification
	if err := c.get(ctx, path, &notification); err != nil {
		return nil, err
	}
	return &notification, nil
}

// AuthorizeUser mints a collaboration session for the user with the given
// room permissions. The provider's response is returned as-is so the auth
// endpoint can pass status and body through.
func (c *Client) AuthorizeUser(ctx context.Context, userID string, info SessionInfo, permissions map[string][]string) (*AuthorizeResult, error) {
	payload := map[string]interface{}{
		"userId":      userID,
		"userInfo":    info,
		"permissions": permissions,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal authorize payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/authorize-user", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build authorize request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "authorize request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read authorize response")
	}

	return &AuthorizeResult{Status: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, "GET %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("GET %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response of GET %s", path)
	}
	return nil
}
