package classify

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"linksort/internal/services"
	"linksort/internal/services/llm"
)

// ErrExhausted reports that every provider and model failed.
var ErrExhausted = errors.New("classification providers exhausted")

// ErrMalformedResponse marks a payload that could not be normalized.
var ErrMalformedResponse = errors.New("malformed classification response")

// IsTransient reports whether err is the kind of provider failure that may
// succeed later: throttling, server faults, timeouts, and unusable payloads.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) || errors.Is(err, services.ErrTransient) {
		return true
	}
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusRequestTimeout || gErr.Code == http.StatusTooManyRequests || gErr.Code >= http.StatusInternalServerError
	}
	return llm.IsTransient(err)
}
