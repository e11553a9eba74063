package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/config"
)

// Mailer delivers a composed message to an email address. Implementations
// return a DeliveryError-style error on failure; callers decide whether the
// failure propagates or is swallowed.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// ResendMailer sends email through the Resend REST API
type ResendMailer struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewResendMailer creates a Resend-backed mailer
func NewResendMailer(cfg config.MailConfig) *ResendMailer {
	return &ResendMailer{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		from:   cfg.From,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendEmail sends one HTML email
func (m *ResendMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	payload := map[string]interface{}{
		"from":    m.from,
		"to":      to,
		"subject": subject,
		"html":    html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal email payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build email request")
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "email request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("email provider returned %d: %s", resp.StatusCode, detail)
	}

	log.Debug().Str("to", to).Str("subject", subject).Msg("Email dispatched")
	return nil
}
