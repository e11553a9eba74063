package liveblocks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/verdad/services/notifier/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.LiveblocksConfig{
		APIURL:    server.URL,
		SecretKey: "sk_test",
	})
	return client, server
}

func TestGetCommentSendsBearerAuth(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.Equal(t, "/v2/rooms/r1/threads/th1/comments/cm1", r.URL.Path)
		json.NewEncoder(w).Encode(Comment{ID: "cm1", UserID: "u1"})
	})

	comment, err := client.GetComment(context.Background(), "r1", "th1", "cm1")
	require.NoError(t, err)
	require.Equal(t, "cm1", comment.ID)
	require.Equal(t, "u1", comment.UserID)
}

func TestGetCommentNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetComment(context.Background(), "r1", "th1", "missing")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetRoomsPagination(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cursor := "page2"
		if r.URL.Query().Get("startingAfter") == "" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data":       []Room{{ID: "room-a"}},
				"nextCursor": &cursor,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":       []Room{{ID: "room-b"}},
			"nextCursor": nil,
		})
	})

	rooms, next, err := client.GetRooms(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "room-a", rooms[0].ID)
	require.Equal(t, "page2", next)

	rooms, next, err = client.GetRooms(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, "room-b", rooms[0].ID)
	require.Empty(t, next)
}

func TestGetInboxNotification(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/users/u1/inbox-notifications/in_1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"inboxNotificationId": "in_1",
			"kind":                "textMention",
			"roomId":              "r1",
		})
	})

	notification, err := client.GetInboxNotification(context.Background(), "u1", "in_1")
	require.NoError(t, err)
	require.Equal(t, "textMention", notification.Kind)
	require.Equal(t, "r1", notification.RoomID)
}

func TestAuthorizeUserPassesThroughProviderResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/authorize-user", r.URL.Path)

		var payload struct {
			UserID      string              `json:"userId"`
			Permissions map[string][]string `json:"permissions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "alice@verdad.app", payload.UserID)
		require.Equal(t, FullAccess, payload.Permissions["*"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"lb_tok"}`))
	})

	result, err := client.AuthorizeUser(context.Background(), "alice@verdad.app",
		SessionInfo{Name: "Alice"}, map[string][]string{"*": FullAccess})

	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, result.Status)
	require.JSONEq(t, `{"token":"lb_tok"}`, string(result.Body))
}

func TestGetServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	_, err := client.GetRoomComments(context.Background(), "r1", "th1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "500")
}
