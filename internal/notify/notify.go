// Package notify publishes run completion notices so downstream consumers
// can pick up finished exports without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Completion is the payload published when a retrieval run finishes.
type Completion struct {
	RunID       uuid.UUID `json:"run_id"`
	Keyword     string    `json:"keyword"`
	Articles    int       `json:"articles"`
	Unresolved  int       `json:"unresolved"`
	Elapsed     string    `json:"elapsed"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher sends a completion notice to a named topic and returns the
// server-assigned message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Notify marshals and publishes the completion payload.
func Notify(ctx context.Context, pub Publisher, topic string, completion Completion) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("publisher is not configured")
	}
	if completion.RunID == uuid.Nil {
		return "", fmt.Errorf("run id is required")
	}
	return pub.Publish(ctx, topic, completion)
}

// marshalPayload is shared by the publisher implementations.
func marshalPayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
