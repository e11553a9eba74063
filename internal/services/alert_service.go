package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/mailer"
	"example.com/verdad/services/notifier/internal/metrics"
)

// AlertType distinguishes the side-channel alert layouts
type AlertType string

const (
	AlertMention AlertType = "mention"
	AlertComment AlertType = "comment"
	AlertEdit    AlertType = "edit"
	AlertDelete  AlertType = "delete"
)

// AlertParams describes one operational alert
type AlertParams struct {
	Type           AlertType
	Actor          string
	RoomID         string
	MentionedUsers []string
	Content        string
	EditedContent  string
}

// AlertService posts operational alerts to a Slack-routed email address.
// This is a side channel: every failure is logged and swallowed so it can
// never block the primary user-facing notification.
type AlertService struct {
	mailer     mailer.Mailer
	slackEmail string
	baseURL    string
	metrics    *metrics.Metrics
}

// NewAlertService creates a new alert service
func NewAlertService(m mailer.Mailer, slackEmail, baseURL string, metricsCollector *metrics.Metrics) *AlertService {
	return &AlertService{
		mailer:     m,
		slackEmail: slackEmail,
		baseURL:    baseURL,
		metrics:    metricsCollector,
	}
}

// Send dispatches one alert. It never returns an error.
func (s *AlertService) Send(ctx context.Context, params AlertParams) {
	if s.slackEmail == "" {
		log.Warn().Msg("Slack notification email not configured, skipping alert")
		return
	}

	var subject, content string
	switch params.Type {
	case AlertMention:
		subject = fmt.Sprintf("🔔 Mention in Room %s", params.RoomID)
		content = fmt.Sprintf(
			"<p><strong>%s</strong> mentioned %s in room %s</p>",
			params.Actor, strings.Join(params.MentionedUsers, ", "), params.RoomID)
	case AlertComment:
		subject = fmt.Sprintf("💬 New Comment in Room %s", params.RoomID)
		content = fmt.Sprintf(
			`<p><strong>%s</strong> added a new comment in room %s</p>
<div style="margin: 10px 0; padding: 10px; background: #f5f5f5; border-radius: 4px;"><p>%s</p></div>`,
			params.Actor, params.RoomID, params.Content)
	case AlertEdit:
		subject = fmt.Sprintf("✏️ Comment Edited in Room %s", params.RoomID)
		content = fmt.Sprintf(
			`<p><strong>%s</strong> edited a comment in room %s</p>
<div style="margin: 10px 0; padding: 10px; background: #f5f5f5; border-radius: 4px;">
<p><strong>Original:</strong></p><p style="color: #666;">%s</p>
<p><strong>Edited to:</strong></p><p style="color: #000;">%s</p></div>`,
			params.Actor, params.RoomID, params.Content, params.EditedContent)
	case AlertDelete:
		subject = fmt.Sprintf("🗑️ Comment Deleted in Room %s", params.RoomID)
		content = fmt.Sprintf(
			"<p><strong>%s</strong> deleted a comment in room %s</p>",
			params.Actor, params.RoomID)
	default:
		log.Warn().Str("type", string(params.Type)).Msg("Unknown alert type, skipping")
		return
	}

	html := fmt.Sprintf(`%s
<p><a href="%s/snippet/%s">View in Verdad</a></p>`, content, s.baseURL, params.RoomID)

	if err := s.mailer.SendEmail(ctx, s.slackEmail, subject, html); err != nil {
		s.metrics.IncrCounter(metrics.AlertsFailed)
		log.Error().Err(err).Str("room_id", params.RoomID).Msg("Failed to send alert")
		return
	}
	s.metrics.IncrCounter(metrics.AlertsSent)
}
