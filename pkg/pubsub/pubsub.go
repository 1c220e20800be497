// Package pubsub fans plan events out to in-process observers (autosave) and
// HTTP subscribers over Server-Sent Events.
package pubsub

import (
	"context"
	"encoding/json"
)

// TopicPlan carries one event per completed solve or plan reload.
const TopicPlan = "plan"

// Event types on TopicPlan.
const (
	EventSolved   = "solved"   // a solve finished after a mutation
	EventReloaded = "reloaded" // the plan was replaced from a document
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // Per-topic, increasing
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events. It is closed when the
	// subscription or the publisher closes.
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// PlanSolved is the payload of TopicPlan events.
type PlanSolved struct {
	Revision    uint64   `json:"revision"` // Plan mutation counter
	Networks    int      `json:"networks"`
	Updated     int      `json:"updated"`
	Converged   bool     `json:"converged"`
	Gaps        []string `json:"gaps,omitempty"`
	DurationMs  int64    `json:"durationMs"`
	Aggregation string   `json:"aggregation"`
}
