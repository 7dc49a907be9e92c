// Package remote provides the remote list fetcher: one outbound read per URL,
// a three-state result and client-side filtering over the items.
package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Status is the lifecycle position of a list fetch.
type Status int

const (
	// StatusPending means the outbound call has not resolved yet.
	StatusPending Status = iota
	// StatusReady means items were received.
	StatusReady
	// StatusFailed means the call failed; Failure holds the reason.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Common fetch errors.
var (
	ErrMalformedPayload = errors.New("malformed payload")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// ListState is the observable result of a list fetch.
// Items is nil while pending and non-nil once ready.
type ListState[T any] struct {
	Items   []T
	Status  Status
	Failure error
}

// IsEmpty reports a resolved fetch with no items. A pending fetch is never empty.
func (s ListState[T]) IsEmpty() bool {
	return s.Status == StatusReady && len(s.Items) == 0
}

// Message returns text suitable for display next to the list.
func (s ListState[T]) Message() string {
	switch s.Status {
	case StatusPending:
		return "Loading..."
	case StatusFailed:
		return FailureMessage(s.Failure)
	default:
		return ""
	}
}

// FailureMessage turns a fetch error into a short user-facing message.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Failed to load data (HTTP %d)", statusErr.Code)
	case errors.Is(err, ErrMalformedPayload):
		return "Failed to load data: the server sent an unexpected response"
	default:
		return "Failed to load data: " + err.Error()
	}
}
