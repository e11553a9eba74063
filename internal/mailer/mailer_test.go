package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/verdad/services/notifier/config"
)

func newTestMailer(t *testing.T, handler http.HandlerFunc) *ResendMailer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewResendMailer(config.MailConfig{
		APIURL: server.URL,
		APIKey: "re_test",
		From:   "Verdad <notifications@verdad.app>",
	})
}

func TestSendEmailPayload(t *testing.T) {
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "Verdad <notifications@verdad.app>", payload["from"])
		require.Equal(t, "alice@verdad.app", payload["to"])
		require.Equal(t, "Hello", payload["subject"])
		require.Equal(t, "<p>Hi</p>", payload["html"])

		w.Write([]byte(`{"id":"email_1"}`))
	})

	err := m.SendEmail(context.Background(), "alice@verdad.app", "Hello", "<p>Hi</p>")
	require.NoError(t, err)
}

func TestSendEmailProviderError(t *testing.T) {
	m := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	})

	err := m.SendEmail(context.Background(), "alice@verdad.app", "Hello", "<p>Hi</p>")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}
