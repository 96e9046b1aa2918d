package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"
)

// EventConsumer receives directory lifecycle events from Pulsar.
type EventConsumer struct {
	client   pulsar.Client
	consumer pulsar.Consumer
}

// NewEventConsumer initializes the Pulsar client and consumer.
func NewEventConsumer(pulsarURL, topic, subscription string) (*EventConsumer, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: pulsarURL})
	if err != nil {
		return nil, fmt.Errorf("could not create Pulsar client: %w", err)
	}

	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            topic,
		SubscriptionName: subscription,
		Type:             pulsar.Shared,
		DLQ: &pulsar.DLQPolicy{
			MaxDeliveries:   3,
			DeadLetterTopic: topic + "-dlq",
		},
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not create Pulsar consumer: %w", err)
	}

	return &EventConsumer{client: client, consumer: consumer}, nil
}

// Receive blocks until the next event arrives and decodes it.
func (c *EventConsumer) Receive(ctx context.Context) (Event, pulsar.Message, error) {
	msg, err := c.consumer.Receive(ctx)
	if err != nil {
		return Event{}, nil, fmt.Errorf("failed to receive message: %w", err)
	}

	var event Event
	if err := json.Unmarshal(msg.Payload(), &event); err != nil {
		return Event{}, msg, fmt.Errorf("failed to decode event payload: %w", err)
	}
	return event, msg, nil
}

// Ack acknowledges a message.
func (c *EventConsumer) Ack(msg pulsar.Message) {
	c.consumer.Ack(msg)
}

// Nack negatively acknowledges a message.
func (c *EventConsumer) Nack(msg pulsar.Message) {
	c.consumer.Nack(msg)
}

// Close cleans up the Pulsar consumer and client.
func (c *EventConsumer) Close() {
	c.consumer.Close()
	c.client.Close()
}
