package webhook

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// EventKind identifies the closed set of webhook event types the notifier
// acts on. Types outside the set classify as KindUnknown, which is a
// guaranteed no-op rather than an error, so new upstream event types never
// break the endpoint.
type EventKind string

const (
	KindCommentCreated  EventKind = "commentCreated"
	KindCommentEdited   EventKind = "commentEdited"
	KindCommentDeleted  EventKind = "commentDeleted"
	KindReactionAdded   EventKind = "commentReactionAdded"
	KindReactionRemoved EventKind = "commentReactionRemoved"
	KindNotification    EventKind = "notification"
	KindUnknown         EventKind = "unknown"
)

// Event is a verified webhook delivery envelope. The payload stays raw until
// a kind-specific accessor decodes it.
type Event struct {
	Kind EventKind
	// Type is the raw upstream type string, kept for logging unknown kinds
	Type string
	data json.RawMessage
}

// CommentEventData is the payload of the comment lifecycle events. The
// webhook carries identifiers only, never comment content; content is always
// re-fetched from the collaboration backend.
type CommentEventData struct {
	ProjectID string     `json:"projectId"`
	RoomID    string     `json:"roomId"`
	ThreadID  string     `json:"threadId"`
	CommentID string     `json:"commentId"`
	CreatedBy string     `json:"createdBy"`
	EditedBy  string     `json:"editedBy"`
	DeletedBy string     `json:"deletedBy"`
	CreatedAt *time.Time `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

// ReactionEventData is the payload of the reaction add/remove events
type ReactionEventData struct {
	ProjectID string     `json:"projectId"`
	RoomID    string     `json:"roomId"`
	ThreadID  string     `json:"threadId"`
	CommentID string     `json:"commentId"`
	Emoji     string     `json:"emoji"`
	AddedBy   string     `json:"addedBy"`
	RemovedBy string     `json:"removedBy"`
	AddedAt   *time.Time `json:"addedAt"`
	RemovedAt *time.Time `json:"removedAt"`
}

// NotificationEventData is the payload of the notification event. It names
// an inbox notification by id; the notification itself is fetched fresh from
// the collaboration backend rather than trusted from the webhook body.
type NotificationEventData struct {
	ProjectID           string     `json:"projectId"`
	RoomID              string     `json:"roomId"`
	UserID              string     `json:"userId"`
	InboxNotificationID string     `json:"inboxNotificationId"`
	CreatedBy           string     `json:"createdBy"`
	TriggeredAt         *time.Time `json:"triggeredAt"`
}

// Classify maps a raw envelope to its event kind. Only a body that is not
// valid JSON fails; unrecognized types succeed as KindUnknown.
func Classify(rawBody []byte) (*Event, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to decode event envelope")
	}

	event := &Event{Type: envelope.Type, data: envelope.Data}
	switch EventKind(envelope.Type) {
	case KindCommentCreated, KindCommentEdited, KindCommentDeleted,
		KindReactionAdded, KindReactionRemoved, KindNotification:
		event.Kind = EventKind(envelope.Type)
	default:
		event.Kind = KindUnknown
	}
	return event, nil
}

// CommentData decodes the payload of a comment lifecycle event
func (e *Event) CommentData() (*CommentEventData, error) {
	var data CommentEventData
	if err := json.Unmarshal(e.data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode comment event data")
	}
	return &data, nil
}

// ReactionData decodes the payload of a reaction event
func (e *Event) ReactionData() (*ReactionEventData, error) {
	var data ReactionEventData
	if err := json.Unmarshal(e.data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode reaction event data")
	}
	return &data, nil
}

// NotificationData decodes the payload of a notification event
func (e *Event) NotificationData() (*NotificationEventData, error) {
	var data NotificationEventData
	if err := json.Unmarshal(e.data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode notification event data")
	}
	return &data, nil
}
