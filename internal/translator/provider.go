// Package translator implements the page translation core: protected term
// masking, chunking, provider calls with retry, and quality verification.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TranslationProvider translates one piece of text between two languages.
// Implementations must be safe for concurrent use.
type TranslationProvider interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// ProviderFunc adapts a function to TranslationProvider.
type ProviderFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translate calls f.
func (f ProviderFunc) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}

// ProviderError is returned by provider implementations. Retryable marks
// transient failures such as throttling, timeouts and 5xx responses.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err and classifies it as retryable or not.
func NewProviderError(provider string, statusCode int, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, StatusCode: statusCode, Err: err}
	pe.Retryable = classifyRetryable(statusCode, err)
	return pe
}

// IsRetryable reports whether err is a retryable ProviderError.
// Errors that are not ProviderErrors are never retried.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func classifyRetryable(statusCode int, err error) bool {
	switch {
	case statusCode == 429, statusCode == 408, statusCode >= 500:
		return true
	case statusCode >= 400:
		return false
	}
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())

	// Non-retryable: authentication and malformed requests
	for _, s := range []string{"unauthorized", "invalid api key", "authentication", "access denied", "validationexception", "invalid request"} {
		if strings.Contains(msg, s) {
			return false
		}
	}

	for _, s := range []string{
		"timeout", "timed out", "deadline exceeded",
		"rate limit", "too many requests", "throttl",
		"connection reset", "connection refused", "eof",
		"service unavailable", "server error", "temporarily",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
