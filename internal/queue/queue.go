// Package queue carries summary job ids from the API to the workers, either
// through RabbitMQ or an in-process channel.
package queue

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrClosed = errors.New("queue closed")

// JobMessage is the wire payload of a queued job.
type JobMessage struct {
	JobID string `json:"job_id"`
}

func DecodeJob(body []byte) (string, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if m.JobID == "" {
		return "", errors.New("missing job_id")
	}
	return m.JobID, nil
}

type Task interface {
	Payload() []byte
	Ack() error
	// Nack drops the task; RabbitMQ dead-letters it.
	Nack() error
}

type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
	Close() error
}

type Receiver interface {
	Tasks() <-chan Task
}
