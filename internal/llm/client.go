// Package llm wraps the hosted language-model provider behind a small
// client interface with throttling, transient-error classification, and
// exponential backoff.
package llm

import (
	"context"
	"fmt"
)

// Request is a single generation call. Temperature and MaxTokens are set
// per call site so the OCR reasoner and authenticity judge can differ.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client is the language-model provider. Implementations must observe
// context cancellation.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// Error is a categorized provider error.
type Error struct {
	Category   string
	StatusCode int
	Retryable  bool
	RateLimited bool
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s (status %d, retryable %v): %v", e.Category, e.StatusCode, e.Retryable, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient provider error
// (throttling, timeout, 5xx). Schema and request errors are not retryable.
func IsRetryable(err error) bool {
	if lerr, ok := err.(*Error); ok {
		return lerr.Retryable
	}
	return false
}

// IsRateLimited reports whether err is provider throttling specifically.
// Rate-limit errors back off more aggressively than other transients.
func IsRateLimited(err error) bool {
	if lerr, ok := err.(*Error); ok {
		return lerr.RateLimited
	}
	return false
}
