package queue

import (
	"context"
	"encoding/json"
	"sync"
)

type memoryTask struct {
	payload []byte
}

func (t *memoryTask) Payload() []byte { return t.payload }
func (t *memoryTask) Ack() error      { return nil }
func (t *memoryTask) Nack() error     { return nil }

// InMemoryQueue is a bounded in-process queue used when no broker is
// configured. Jobs are lost on restart.
type InMemoryQueue struct {
	mu     sync.RWMutex
	tasks  chan Task
	closed bool
}

func NewInMemoryQueue(size int) *InMemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &InMemoryQueue{tasks: make(chan Task, size)}
}

func (q *InMemoryQueue) PublishJob(ctx context.Context, jobID string) error {
	data, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- &memoryTask{payload: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}
