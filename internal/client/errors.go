package client

import "fmt"

// ValidationError means the operation was rejected before any network
// call. The request was never attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError means the server's state moved on since the last read:
// somebody else already resolved the item, or the deliverable changed
// status. The caller should refresh and must not retry the same commit.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "this item was already resolved"
}

// NotFoundError covers 404s; with tenant scoping it also means "not
// yours".
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// TransportError wraps a network failure or a 5xx. It is retryable, but
// mutations are never retried automatically: the human retries
// explicitly, so an edited approval is not double-submitted.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
