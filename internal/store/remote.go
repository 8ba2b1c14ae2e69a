package store

import (
	"context"
	"encoding/json"
	"fmt"

	"schedsync/internal/event"
)

// Op names a remote operation.
type Op string

const (
	OpListEvents  Op = "list-events"
	OpCreateEvent Op = "create-event"
	OpUpdateEvent Op = "update-event"
	OpDeleteEvent Op = "delete-event"
)

// ListRequest is the list-events body. Nil fields are sent as null.
type ListRequest struct {
	ID       event.ID `json:"id"`
	StartStr *string  `json:"startStr"`
	EndStr   *string  `json:"endStr"`
	Category []int    `json:"category"`
}

// DeleteRequest is the delete-event body.
type DeleteRequest struct {
	ID  event.ID `json:"id"`
	SNo int64    `json:"sNo"`
}

// Payload is an event object passed to the service verbatim.
type Payload = map[string]any

// Response is whatever the service answered, undecoded.
type Response = json.RawMessage

// Remote is the scheduling service as seen by the store.
type Remote interface {
	ListEvents(ctx context.Context, req ListRequest) ([]event.Wire, error)
	CreateEvent(ctx context.Context, payload Payload) (Response, error)
	UpdateEvent(ctx context.Context, payload Payload) (Response, error)
	DeleteEvent(ctx context.Context, req DeleteRequest) (Response, error)
}

// RemoteCallError is the single failure kind for remote operations. It
// covers transport errors and service-reported failures alike.
type RemoteCallError struct {
	Op  Op
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}
