package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"grumpstudio/internal/domain"
)

func TestClassifyRetryableByText(t *testing.T) {
	c := NewErrorClassifier()

	for _, msg := range []string{
		"Rate limit exceeded, please retry",
		"429 Too Many Requests",
		"request timed out after 30s",
		"upstream timeout",
		"server overloaded",
	} {
		cls := c.Classify(errors.New(msg))
		assert.True(t, cls.Retryable, "expected retryable for %q", msg)
		assert.NotEmpty(t, cls.UserMessage)
	}
}

func TestClassifyTerminal(t *testing.T) {
	c := NewErrorClassifier()

	cls := c.Classify(errors.New("Invalid API key"))
	assert.False(t, cls.Retryable)
	assert.Contains(t, cls.UserMessage, "Invalid API key")
}

func TestClassifySentinels(t *testing.T) {
	c := NewErrorClassifier()

	wrapped := fmt.Errorf("start turn: %w", domain.ErrRateLimit)
	assert.True(t, c.Classify(wrapped).Retryable)
	assert.True(t, c.Classify(domain.ErrOverloaded).Retryable)
	assert.True(t, c.Classify(domain.ErrTimeout).Retryable)
	assert.False(t, c.Classify(domain.ErrTransport).Retryable)
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	c := NewErrorClassifier()

	cls := c.Classify(fmt.Errorf("fetch: %w", context.DeadlineExceeded))
	assert.True(t, cls.Retryable)
}
