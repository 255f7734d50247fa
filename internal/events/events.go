// Package events publishes run progress to a message bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event topic constants
const (
	TopicEdgeAdmitted      = "wikinet.edge.admitted"
	TopicCheckpointWritten = "wikinet.checkpoint.written"
	TopicRunCompleted      = "wikinet.run.completed"

	// TopicAll matches every wikinet topic.
	TopicAll = "wikinet.>"
)

// Event types

type EdgeAdmitted struct {
	RunID string  `json:"run_id"`
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
	Depth int     `json:"depth"`
}

type CheckpointWritten struct {
	RunID   string    `json:"run_id"`
	Nodes   int       `json:"nodes"`
	Edges   int       `json:"edges"`
	TakenAt time.Time `json:"taken_at"`
}

type RunCompleted struct {
	RunID     string        `json:"run_id"`
	Seed      string        `json:"seed"`
	Nodes     int           `json:"nodes"`
	Edges     int           `json:"edges"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration_ns"`
}

// ErrUnknownTopic is returned by Message.Decode for topics outside this package.
var ErrUnknownTopic = errors.New("events: unknown topic")

// Message is a received event before decoding.
type Message struct {
	Topic string
	Data  []byte
}

// Decode returns the typed event carried by m: EdgeAdmitted,
// CheckpointWritten or RunCompleted.
func (m Message) Decode() (any, error) {
	switch m.Topic {
	case TopicEdgeAdmitted:
		return decode[EdgeAdmitted](m)
	case TopicCheckpointWritten:
		return decode[CheckpointWritten](m)
	case TopicRunCompleted:
		return decode[RunCompleted](m)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, m.Topic)
}

func decode[T any](m Message) (any, error) {
	var ev T
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", m.Topic, err)
	}
	return ev, nil
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
