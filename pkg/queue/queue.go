package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotRunning    = errors.New("queue: not running")
	ErrUnknownType   = errors.New("queue: no job registered for type")
	ErrStatusMissing = errors.New("queue: job status not found")
)

// Publisher enqueues messages and reports their progress.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
	Status(ctx context.Context, id string) (*JobStatus, error)
}

// Queue is a running queue: it accepts messages, tracks their status and
// lets jobs attach results.
type Queue interface {
	Publisher
	ResultSetter
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // buffered messages for the local queue
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ResultSetter lets a job attach a result to its status.
type ResultSetter interface {
	SetResult(ctx context.Context, id string, result interface{}) error
}

var (
	_ Queue = (*LocalQueue)(nil)
	_ Queue = (*RedisQueue)(nil)
)

func newMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload decodes a message payload into T.
func ParsePayload[T any](msg Message) (*T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("empty payload for message %s", msg.ID)
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &result, nil
}

func statusOf(msg Message, state JobState, err error) JobStatus {
	st := JobStatus{
		ID:        msg.ID,
		Type:      msg.Type,
		State:     state,
		Attempts:  msg.Attempts,
		UpdatedAt: time.Now().Unix(),
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
