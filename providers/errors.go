package providers

import (
	"errors"
	"fmt"
)

// FailureClass drives the retry policy in the LLM layer: auth failures are
// never retried, rate limits get a longer backoff, everything else counts as
// transient.
type FailureClass string

const (
	FailureAuth      FailureClass = "auth"
	FailureRateLimit FailureClass = "rate_limit"
	FailureTransient FailureClass = "transient"
)

// CallError is a classified provider failure.
type CallError struct {
	Provider string
	Class    FailureClass
	Status   int
	Message  string
}

func (e *CallError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Class, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Class, e.Message)
}

// Classify maps an error to its failure class. Unclassified errors are
// treated as transient so they stay retryable.
func Classify(err error) FailureClass {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return FailureTransient
}

func classifyStatus(status int) FailureClass {
	switch {
	case status == 401 || status == 403:
		return FailureAuth
	case status == 429:
		return FailureRateLimit
	default:
		return FailureTransient
	}
}
