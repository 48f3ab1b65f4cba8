package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueueRunsEveryJob(t *testing.T) {
	q := NewInMemoryQueue(10)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{})
	go func() {
		RunWorkers(ctx, q, 3, func(_ context.Context, jobID string) error {
			mu.Lock()
			seen[jobID] = true
			mu.Unlock()
			if jobID == "j2" {
				return errors.New("boom")
			}
			return nil
		})
		close(done)
	}()

	for _, id := range []string{"j1", "j2", "j3"} {
		require.NoError(t, q.PublishJob(ctx, id))
	}
	require.NoError(t, q.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after close")
	}
	assert.Equal(t, map[string]bool{"j1": true, "j2": true, "j3": true}, seen)

	assert.ErrorIs(t, q.PublishJob(ctx, "late"), ErrClosed)
}

func TestRunWorkersStopsOnCancel(t *testing.T) {
	q := NewInMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunWorkers(ctx, q, 1, func(context.Context, string) error { return nil })
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
}

type trackedTask struct {
	id     string
	nacked atomic.Bool
}

func (t *trackedTask) Payload() []byte { return []byte(`{"job_id":"` + t.id + `"}`) }
func (t *trackedTask) Ack() error      { return nil }

func (t *trackedTask) Nack() error {
	t.nacked.Store(true)
	return nil
}

type chanReceiver chan Task

func (r chanReceiver) Tasks() <-chan Task { return r }

func TestCancelDoesNotWaitForBusyWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tasks := make(chanReceiver)
	release := make(chan struct{})

	var mu sync.Mutex
	handled := map[string]bool{}
	done := make(chan struct{})
	go func() {
		RunWorkers(ctx, tasks, 1, func(_ context.Context, jobID string) error {
			<-release
			mu.Lock()
			handled[jobID] = true
			mu.Unlock()
			return nil
		})
		close(done)
	}()

	// one running plus two buffered; the fourth is held by the dispatcher
	all := []*trackedTask{{id: "j1"}, {id: "j2"}, {id: "j3"}, {id: "j4"}}
	for _, tk := range all {
		tasks <- tk
	}
	cancel()

	require.Eventually(t, func() bool { return all[3].nacked.Load() }, 2*time.Second, 10*time.Millisecond,
		"the held task is nacked while the worker is still busy")

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, handled["j4"])
	assert.True(t, handled["j1"])
}

func TestDecodeJob(t *testing.T) {
	id, err := DecodeJob([]byte(`{"job_id":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = DecodeJob([]byte(`{}`))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`nope`))
	assert.Error(t, err)
}
