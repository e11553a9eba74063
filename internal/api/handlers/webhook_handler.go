package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/services"
	"example.com/verdad/services/notifier/internal/tracing"
	"example.com/verdad/services/notifier/internal/webhook"
)

// EventPublisher publishes processed events for downstream consumers
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, body interface{}) error
}

// WebhookHandler dispatches inbound collaboration backend webhooks:
// verify, classify, then mirror or compose. A delivery that fails
// verification is rejected with 400 and never retried. Once verified, the
// response is always 200 regardless of downstream failures - surfacing a
// transient mirror or email error would only make the sender retry-storm.
// The single exception is a recognized notification event missing its
// required identifiers, which is malformed rather than merely hard to act
// on and earns a 400.
type WebhookHandler struct {
	verifier      *webhook.Verifier
	comments      *services.CommentService
	notifications *services.NotificationService
	alerts        *services.AlertService
	publisher     EventPublisher
	metrics       *metrics.Metrics
	tracer        tracing.Tracer
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	verifier *webhook.Verifier,
	comments *services.CommentService,
	notifications *services.NotificationService,
	alerts *services.AlertService,
	publisher EventPublisher,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:      verifier,
		comments:      comments,
		notifications: notifications,
		alerts:        alerts,
		publisher:     publisher,
		metrics:       metricsCollector,
		tracer:        tracer,
	}
}

// HandleWebhook processes one webhook delivery
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	txn := h.tracer.StartTransaction("webhook-delivery")
	defer h.tracer.EndTransaction(txn)
	start := time.Now()

	// The signature covers the exact bytes on the wire, so the body must be
	// captured before any parsing.
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read request body"})
		return
	}

	event, err := h.verifier.Verify(rawBody, c.Request.Header)
	if err != nil {
		h.metrics.IncrCounter(metrics.WebhookRejected)
		h.tracer.RecordError(txn, err)
		log.Warn().Err(err).Msg("Webhook verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not verify webhook call"})
		return
	}

	h.metrics.IncrCounter(metrics.WebhookReceived)
	h.tracer.AddAttribute(txn, "event_type", event.Type)
	ctx := c.Request.Context()

	switch event.Kind {
	case webhook.KindCommentCreated:
		h.handleCommentCreated(ctx, event)
	case webhook.KindCommentEdited:
		h.handleCommentEdited(ctx, event)
	case webhook.KindCommentDeleted:
		h.handleCommentDeleted(ctx, event)
	case webhook.KindReactionAdded:
		h.handleReaction(ctx, event, true)
	case webhook.KindReactionRemoved:
		h.handleReaction(ctx, event, false)
	case webhook.KindNotification:
		if !h.handleNotification(ctx, event, c) {
			return
		}
	default:
		// Forward-compatible no-op: unrecognized kinds are acknowledged
		h.metrics.IncrCounter(metrics.WebhookUnknownKind)
		log.Debug().Str("type", event.Type).Msg("Ignoring unrecognized event kind")
	}

	h.publish(ctx, event, rawBody)
	h.metrics.RecordTime("webhook.duration", time.Since(start))
	h.metrics.IncrCounter(metrics.WebhookProcessed)
	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
}

func (h *WebhookHandler) handleCommentCreated(ctx context.Context, event *webhook.Event) {
	data, err := event.CommentData()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode comment created event")
		return
	}

	text, err := h.comments.OnCreated(ctx, data)
	if err != nil {
		log.Error().Err(err).Str("comment_id", data.CommentID).Msg("Failed to mirror created comment")
		return
	}

	h.alerts.Send(ctx, services.AlertParams{
		Type:    services.AlertComment,
		Actor:   data.CreatedBy,
		RoomID:  data.RoomID,
		Content: text,
	})
}

func (h *WebhookHandler) handleCommentEdited(ctx context.Context, event *webhook.Event) {
	data, err := event.CommentData()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode comment edited event")
		return
	}

	previous, current, err := h.comments.OnEdited(ctx, data)
	if err != nil {
		log.Error().Err(err).Str("comment_id", data.CommentID).Msg("Failed to mirror edited comment")
		return
	}
	if current == "" {
		// Edit arrived before the create was visible and was dropped
		return
	}

	actor := data.EditedBy
	if actor == "" {
		actor = data.CreatedBy
	}
	h.alerts.Send(ctx, services.AlertParams{
		Type:          services.AlertEdit,
		Actor:         actor,
		RoomID:        data.RoomID,
		Content:       previous,
		EditedContent: current,
	})
}

func (h *WebhookHandler) handleCommentDeleted(ctx context.Context, event *webhook.Event) {
	data, err := event.CommentData()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode comment deleted event")
		return
	}

	if err := h.comments.OnDeleted(ctx, data); err != nil {
		log.Error().Err(err).Str("comment_id", data.CommentID).Msg("Failed to mirror deleted comment")
		return
	}

	h.alerts.Send(ctx, services.AlertParams{
		Type:   services.AlertDelete,
		Actor:  data.DeletedBy,
		RoomID: data.RoomID,
	})
}

func (h *WebhookHandler) handleReaction(ctx context.Context, event *webhook.Event, added bool) {
	data, err := event.ReactionData()
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode reaction event")
		return
	}

	if added {
		err = h.comments.OnReactionAdded(ctx, data)
	} else {
		err = h.comments.OnReactionRemoved(ctx, data)
	}
	if err != nil {
		log.Error().Err(err).
			Str("comment_id", data.CommentID).
			Str("emoji", data.Emoji).
			Msg("Failed to mirror reaction")
	}
}

// handleNotification returns false when it has written the 400 response
// itself (malformed event), true when the dispatcher should acknowledge.
func (h *WebhookHandler) handleNotification(ctx context.Context, event *webhook.Event, c *gin.Context) bool {
	data, err := event.NotificationData()
	if err != nil || data.UserID == "" || data.RoomID == "" || data.InboxNotificationID == "" {
		log.Error().Err(err).Msg("Missing required data in notification event")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required data"})
		return false
	}

	if err := h.notifications.HandleNotification(ctx, data); err != nil {
		log.Error().Err(err).
			Str("user_id", data.UserID).
			Str("inbox_notification_id", data.InboxNotificationID).
			Msg("Failed to dispatch notification")
	}
	return true
}

// publish forwards the processed event downstream, best-effort
func (h *WebhookHandler) publish(ctx context.Context, event *webhook.Event, rawBody []byte) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishEvent(ctx, event.Type, json.RawMessage(rawBody)); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Failed to publish processed event")
	}
}
