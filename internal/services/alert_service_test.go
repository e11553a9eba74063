package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/verdad/services/notifier/internal/metrics"
)

func TestAlertSendCommentLayout(t *testing.T) {
	mockMailer := new(MockMailer)
	mockMailer.On("SendEmail", mock.Anything, "alerts@verdad.app",
		"💬 New Comment in Room r1", mock.Anything).Return(nil)

	service := NewAlertService(mockMailer, "alerts@verdad.app", "https://verdad.app", metrics.NewMetrics())
	service.Send(context.Background(), AlertParams{
		Type:    AlertComment,
		Actor:   "alice",
		RoomID:  "r1",
		Content: "first!",
	})

	html := mockMailer.Calls[0].Arguments.String(3)
	require.Contains(t, html, "<strong>alice</strong>")
	require.Contains(t, html, "first!")
	require.Contains(t, html, "https://verdad.app/snippet/r1")
	mockMailer.AssertExpectations(t)
}

func TestAlertSendEditShowsBothVersions(t *testing.T) {
	mockMailer := new(MockMailer)
	mockMailer.On("SendEmail", mock.Anything, "alerts@verdad.app",
		"✏️ Comment Edited in Room r1", mock.Anything).Return(nil)

	service := NewAlertService(mockMailer, "alerts@verdad.app", "https://verdad.app", metrics.NewMetrics())
	service.Send(context.Background(), AlertParams{
		Type:          AlertEdit,
		Actor:         "bob",
		RoomID:        "r1",
		Content:       "teh fix",
		EditedContent: "the fix",
	})

	html := mockMailer.Calls[0].Arguments.String(3)
	require.Contains(t, html, "teh fix")
	require.Contains(t, html, "the fix")
}

func TestAlertSendMentionListsUsers(t *testing.T) {
	mockMailer := new(MockMailer)
	mockMailer.On("SendEmail", mock.Anything, "alerts@verdad.app",
		"🔔 Mention in Room r1", mock.Anything).Return(nil)

	service := NewAlertService(mockMailer, "alerts@verdad.app", "https://verdad.app", metrics.NewMetrics())
	service.Send(context.Background(), AlertParams{
		Type:           AlertMention,
		Actor:          "alice",
		RoomID:         "r1",
		MentionedUsers: []string{"bob", "carol"},
	})

	html := mockMailer.Calls[0].Arguments.String(3)
	require.Contains(t, html, "bob, carol")
}

func TestAlertSendSkipsWithoutConfiguredAddress(t *testing.T) {
	mockMailer := new(MockMailer)

	service := NewAlertService(mockMailer, "", "https://verdad.app", metrics.NewMetrics())
	service.Send(context.Background(), AlertParams{Type: AlertDelete, RoomID: "r1"})

	mockMailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAlertSendSwallowsMailerFailure(t *testing.T) {
	mockMailer := new(MockMailer)
	mockMailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	service := NewAlertService(mockMailer, "alerts@verdad.app", "https://verdad.app", metrics.NewMetrics())

	// Must not panic or propagate
	service.Send(context.Background(), AlertParams{Type: AlertDelete, Actor: "x", RoomID: "r1"})
}
