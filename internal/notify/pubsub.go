package notify

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSubPublisher implements Publisher on Google Cloud Pub/Sub. It
// authenticates via Application Default Credentials.
type PubSubPublisher struct {
	client *pubsub.Client
	logger *zap.Logger
}

// NewPubSubPublisher creates a Pub/Sub client for the project.
func NewPubSubPublisher(ctx context.Context, projectID string, logger *zap.Logger) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubPublisher{client: client, logger: logger}, nil
}

// Publish marshals the payload to JSON and publishes it to the topic,
// blocking until the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, topicID string, payload any) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return "", err
	}

	topic := p.client.Topic(topicID)
	defer topic.Stop()

	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close closes the underlying client connection.
func (p *PubSubPublisher) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
