package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/cache"
	"example.com/verdad/services/notifier/internal/liveblocks"
	"example.com/verdad/services/notifier/internal/mailer"
	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/tracing"
	"example.com/verdad/services/notifier/internal/webhook"
)

const (
	defaultMessage      = "You have a new notification"
	defaultTemplateName = "default_notification"

	// customKindPrefix marks application-defined notification kinds
	customKindPrefix = "$"

	templateCacheTTL = 5 * time.Minute
)

// TemplateStore looks up email templates by exact name
type TemplateStore interface {
	GetContentByName(ctx context.Context, name string) (string, bool, error)
}

// InboxFetcher fetches inbox notifications from the collaboration backend
type InboxFetcher interface {
	GetInboxNotification(ctx context.Context, userID, inboxNotificationID string) (*liveblocks.InboxNotification, error)
}

// Substitution is one literal token replacement applied to a template
type Substitution struct {
	Token string
	Value string
}

// ApplySubstitutions replaces each token with its value, one occurrence per
// substitution, in order. This is a deliberate minimal contract, not a
// template engine: unresolved tokens pass through verbatim into the output.
func ApplySubstitutions(template string, subs []Substitution) string {
	for _, sub := range subs {
		template = strings.Replace(template, sub.Token, sub.Value, 1)
	}
	return template
}

// NotificationService resolves notification events into user-facing emails.
// The inbox notification is always fetched fresh from the collaboration
// backend by id; the webhook body is trusted only for the identifiers.
type NotificationService struct {
	templates TemplateStore
	cache     *cache.RedisCache
	collab    InboxFetcher
	mailer    mailer.Mailer
	alerts    *AlertService
	baseURL   string
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	templates TemplateStore,
	templateCache *cache.RedisCache,
	collab InboxFetcher,
	m mailer.Mailer,
	alerts *AlertService,
	baseURL string,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *NotificationService {
	return &NotificationService{
		templates: templates,
		cache:     templateCache,
		collab:    collab,
		mailer:    m,
		alerts:    alerts,
		baseURL:   baseURL,
		metrics:   metricsCollector,
		tracer:    tracer,
	}
}

// HandleNotification composes and dispatches the email for one notification
// event. Composition happens at most once per delivery; the send is an
// at-least-once attempt.
func (s *NotificationService) HandleNotification(ctx context.Context, data *webhook.NotificationEventData) error {
	txn := s.tracer.StartTransaction("handle-notification")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "room_id", data.RoomID)

	inbox, err := s.collab.GetInboxNotification(ctx, data.UserID, data.InboxNotificationID)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrapf(ErrUpstreamFetch, "inbox notification %s: %v", data.InboxNotificationID, err)
	}

	message, templateName := resolveNotification(inbox.Kind, data.RoomID)

	if inbox.Kind == "textMention" {
		s.alerts.Send(ctx, AlertParams{
			Type:           AlertMention,
			Actor:          data.CreatedBy,
			RoomID:         data.RoomID,
			MentionedUsers: []string{data.UserID},
		})
	}

	html := s.composeBody(ctx, templateName, message, data.RoomID)

	if err := s.mailer.SendEmail(ctx, data.UserID, message, html); err != nil {
		s.metrics.IncrCounter(metrics.NotificationsFailed)
		s.tracer.RecordError(txn, err)
		return errors.Wrapf(ErrDelivery, "notify %s: %v", data.UserID, err)
	}
	s.metrics.IncrCounter(metrics.NotificationsSent)

	log.Info().
		Str("user_id", data.UserID).
		Str("room_id", data.RoomID).
		Str("kind", inbox.Kind).
		Msg("Notification dispatched")

	return nil
}

// resolveNotification maps an inbox notification kind to the human-readable
// message and template name. Custom kinds carry a reserved "$" prefix that
// is stripped to form the category name.
func resolveNotification(kind, roomID string) (message, templateName string) {
	message = defaultMessage
	templateName = defaultTemplateName

	switch kind {
	case "thread":
		message = fmt.Sprintf("A new thread was created in room %s", roomID)
		templateName = "thread_notification"
	case "textMention":
		message = fmt.Sprintf("You were mentioned in room %s", roomID)
		templateName = "mention_notification"
	default:
		if strings.HasPrefix(kind, customKindPrefix) {
			customType := strings.TrimPrefix(kind, customKindPrefix)
			message = fmt.Sprintf("New %s notification in room %s", customType, roomID)
			templateName = customType + "_notification"
		}
	}
	return message, templateName
}

// composeBody renders the email HTML from the named template, or the fixed
// fallback layout when no template row exists
func (s *NotificationService) composeBody(ctx context.Context, templateName, message, roomID string) string {
	template, found := s.lookupTemplate(ctx, templateName)
	if !found {
		return s.fallbackBody(message, roomID)
	}

	return ApplySubstitutions(template, []Substitution{
		{Token: "{{notificationMessage}}", Value: message},
		{Token: "{{roomId}}", Value: roomID},
		{Token: "{{additionalContent}}", Value: ""},
	})
}

// lookupTemplate resolves a template through the cache, falling through to
// storage on a miss. Storage errors degrade to the fallback layout.
func (s *NotificationService) lookupTemplate(ctx context.Context, name string) (string, bool) {
	type cachedTemplate struct {
		Content string `json:"content"`
		Found   bool   `json:"found"`
	}

	key := cache.TemplateCacheKey(name)
	var cached cachedTemplate
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached.Content, cached.Found
	}

	content, found, err := s.templates.GetContentByName(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to fetch email template")
		return "", false
	}

	if err := s.cache.Set(ctx, key, cachedTemplate{Content: content, Found: found}, templateCacheTTL); err != nil {
		log.Warn().Err(err).Str("template", name).Msg("Failed to cache email template")
	}

	return content, found
}

func (s *NotificationService) fallbackBody(message, roomID string) string {
	return fmt.Sprintf(`<h1>New Notification from Verdad</h1>
<p>%s</p>
<a href="%s/snippet/%s" style="display: inline-block; padding: 10px 20px; background-color: #007bff; color: white; text-decoration: none; border-radius: 5px;">View in Verdad</a>`,
		message, s.baseURL, roomID)
}
