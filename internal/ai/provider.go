package ai

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured is returned by provider factories missing credentials.
var ErrNotConfigured = errors.New("ai provider not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider produces a complete reply in one call.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
type StreamProvider interface {
	// OpenStream issues the request and checks the response status before
	// returning, so a non-2xx upstream never yields a Stream.
	OpenStream(ctx context.Context, messages []Message) (Stream, error)
}

// Stream is a lazily decoded sequence of content deltas.
type Stream interface {
	// Recv returns the next non-empty delta, or io.EOF once the upstream is done.
	Recv() (string, error)
	Close() error
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// FrameError is an error object sent by the upstream inside the stream.
type FrameError struct {
	Message string
}

func (e *FrameError) Error() string { return "upstream stream error: " + e.Message }
