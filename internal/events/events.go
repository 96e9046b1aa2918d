package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"
)

// Event describes one completed directory mutation.
type Event struct {
	Entity string `json:"entity"` // user or group
	ID     string `json:"id"`
	Action string `json:"action"` // create, update, delete
}

// Notifier publishes directory lifecycle events.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// EventPublisher sends events to a Pulsar topic.
type EventPublisher struct {
	client   pulsar.Client
	producer pulsar.Producer
}

// NewEventPublisher initializes the Pulsar client and producer.
func NewEventPublisher(pulsarURL, topic string) (*EventPublisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: pulsarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar producer: %w", err)
	}

	return &EventPublisher{client: client, producer: producer}, nil
}

// Publish serializes the event and sends it to Pulsar.
func (p *EventPublisher) Publish(ctx context.Context, event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not serialize event payload: %w", err)
	}

	_, err = p.producer.Send(ctx, &pulsar.ProducerMessage{
		Payload: message,
	})
	if err != nil {
		return fmt.Errorf("could not send event to Pulsar: %w", err)
	}
	return nil
}

// Close cleans up the Pulsar producer and client.
func (p *EventPublisher) Close() {
	p.producer.Close()
	p.client.Close()
}

// NopNotifier discards events. Used in tests and event-less deployments.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) error { return nil }
func (NopNotifier) Close()                               {}
