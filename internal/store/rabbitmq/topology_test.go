package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "summary_jobs.retry", retryQueue("summary_jobs"))
	assert.Equal(t, "summary_jobs.dlq", deadLetterQueue("summary_jobs"))
}
