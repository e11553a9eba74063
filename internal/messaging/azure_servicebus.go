package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"

	"example.com/verdad/services/notifier/config"
)

// EventPublisher publishes processed webhook events for downstream
// consumers (analytics, audit). Publishing is best-effort: the dispatcher
// logs and swallows failures so the webhook response is never affected.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, body interface{}) error
	Close() error
}

// serviceBusPublisher implements EventPublisher over Azure Service Bus
type serviceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// noopPublisher is used when messaging is disabled by configuration
type noopPublisher struct{}

func (noopPublisher) PublishEvent(context.Context, string, interface{}) error { return nil }
func (noopPublisher) Close() error                                            { return nil }

// NewEventPublisher creates a Service Bus publisher, or a no-op publisher
// when messaging is disabled
func NewEventPublisher(cfg config.AzureConfig) (EventPublisher, error) {
	if !cfg.Enabled {
		return noopPublisher{}, nil
	}
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// PublishEvent sends one processed event to the queue
func (p *serviceBusPublisher) PublishEvent(ctx context.Context, eventType string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event body")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"event_type": eventType,
			"source":     "notifier",
			"time":       time.Now().UTC().Format(time.RFC3339),
		},
	}

	return p.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (p *serviceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}
