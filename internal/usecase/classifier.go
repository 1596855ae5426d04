package usecase

import (
	"context"
	"errors"
	"strings"

	"grumpstudio/internal/domain"
)

// Classification is the user-facing shape of a turn failure.
type Classification struct {
	UserMessage string
	Retryable   bool
}

// ErrorClassifier turns transport and stream failures into a notification
// message plus a retryable/terminal split. Retryable failures surface as
// informational toasts; everything else is error-level.
type ErrorClassifier struct{}

// NewErrorClassifier creates a new classifier.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// retryablePatterns are matched against the lowercased error text when no
// sentinel matches.
var retryablePatterns = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"deadline exceeded",
	"overloaded",
}

// Classify inspects a transport or stream error. nil classifies as a
// non-retryable empty message; callers should not pass nil.
func (c *ErrorClassifier) Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	if domain.IsRetryableError(err) {
		return Classification{
			UserMessage: "The service is busy right now, please try again in a moment.",
			Retryable:   true,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{
			UserMessage: "The request timed out, please try again.",
			Retryable:   true,
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return Classification{
				UserMessage: "The service is busy right now, please try again in a moment.",
				Retryable:   true,
			}
		}
	}

	return Classification{
		UserMessage: "Something went wrong: " + err.Error(),
		Retryable:   false,
	}
}
