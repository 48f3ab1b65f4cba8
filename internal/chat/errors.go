package chat

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyContent  = errors.New("content is required")
	ErrNotConfigured = errors.New("chat service not configured")
	ErrUpstream      = errors.New("upstream request failed")
)

// PaywallError is returned when a free user has used up the message limit.
type PaywallError struct {
	MessageCount int
	MessageLimit int
}

func (e *PaywallError) Error() string {
	return fmt.Sprintf("free message limit reached (%d/%d)", e.MessageCount, e.MessageLimit)
}
