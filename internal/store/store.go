package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"schedsync/internal/cache"
	"schedsync/internal/event"
	"schedsync/internal/filter"
	appLog "schedsync/internal/log"
)

// ErrNoOwner is returned when a mutation payload carries no "id" to
// resynchronize with.
var ErrNoOwner = errors.New("store: payload has no id")

// Store keeps a Cache consistent with the remote service. Mutations never
// patch the cache; they call the service and then reload.
type Store struct {
	remote     Remote
	filter     *filter.State
	normalizer *event.Normalizer
	cache      *cache.Cache

	legacyAdd bool
}

type Option func(*Store)

// WithLegacyAddPolicy makes Add log and swallow remote failures instead of
// returning them. The refetch is still skipped on failure.
func WithLegacyAddPolicy() Option {
	return func(s *Store) { s.legacyAdd = true }
}

// New wires a Store. A nil cache starts empty.
func New(remote Remote, f *filter.State, n *event.Normalizer, c *cache.Cache, opts ...Option) *Store {
	if c == nil {
		c = cache.New()
	}
	s := &Store{
		remote:     remote,
		filter:     f,
		normalizer: n,
		cache:      c,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Filter() *filter.State { return s.filter }

func (s *Store) Cache() *cache.Cache { return s.cache }

// Events returns the current snapshot.
func (s *Store) Events() []event.Event { return s.cache.Events() }

// Visible returns the snapshot restricted to the filter's visible categories.
func (s *Store) Visible() []event.Event { return s.cache.Visible(s.filter.IsVisible) }

func (s *Store) Select(no int64) { s.cache.Select(no) }

func (s *Store) Selected() (event.Event, bool) { return s.cache.Selected() }

// Fetch lists the events of userID matching the current filter, replaces the
// cache with them and returns them. On failure the cache is left untouched.
//
// If a fetch issued later has already landed, the result is returned to the
// caller but not installed.
func (s *Store) Fetch(ctx context.Context, userID event.ID) ([]event.Event, error) {
	p := s.filter.Params()
	req := ListRequest{
		ID:       userID,
		StartStr: p.StartStr,
		EndStr:   p.EndStr,
		Category: p.Category,
	}

	seq := s.cache.Begin()
	rows, err := s.remote.ListEvents(ctx, req)
	if err != nil {
		return nil, &RemoteCallError{Op: OpListEvents, Err: err}
	}

	events, err := s.normalizer.NormalizeAll(rows)
	if err != nil {
		return nil, fmt.Errorf("store: fetch: %w", err)
	}

	if err := s.cache.Replace(seq, events); err != nil {
		appLog.Info("fetch result superseded; cache kept", "user", userID, "seq", seq)
		return events, nil
	}

	appLog.Debug("events fetched", "user", userID, "seq", seq, "count", len(events))
	return events, nil
}

// Add creates an event and, on success, reloads the events of payload["id"].
func (s *Store) Add(ctx context.Context, payload Payload) error {
	owner, err := payloadOwner(payload)
	if err != nil {
		return err
	}

	if _, err := s.remote.CreateEvent(ctx, payload); err != nil {
		rerr := &RemoteCallError{Op: OpCreateEvent, Err: err}
		if s.legacyAdd {
			appLog.Error("event addition failed", rerr, "user", owner)
			return nil
		}
		return rerr
	}

	if _, err := s.Fetch(ctx, owner); err != nil {
		return fmt.Errorf("store: resync after add: %w", err)
	}
	return nil
}

// Update sends the full event object and, on success, reloads the events of
// payload["id"]. The service response is returned even when the reload
// fails.
func (s *Store) Update(ctx context.Context, payload Payload) (Response, error) {
	owner, err := payloadOwner(payload)
	if err != nil {
		return nil, err
	}

	resp, err := s.remote.UpdateEvent(ctx, payload)
	if err != nil {
		return nil, &RemoteCallError{Op: OpUpdateEvent, Err: err}
	}

	if _, err := s.Fetch(ctx, owner); err != nil {
		return resp, fmt.Errorf("store: resync after update: %w", err)
	}
	return resp, nil
}

// Remove deletes event sNo of eventID and, on success, reloads eventID.
func (s *Store) Remove(ctx context.Context, eventID event.ID, sNo int64) (Response, error) {
	resp, err := s.remote.DeleteEvent(ctx, DeleteRequest{ID: eventID, SNo: sNo})
	if err != nil {
		return nil, &RemoteCallError{Op: OpDeleteEvent, Err: err}
	}

	if _, err := s.Fetch(ctx, eventID); err != nil {
		return resp, fmt.Errorf("store: resync after remove: %w", err)
	}
	return resp, nil
}

func payloadOwner(p Payload) (event.ID, error) {
	switch v := p["id"].(type) {
	case string:
		if v != "" {
			return event.ID(v), nil
		}
	case event.ID:
		if v != "" {
			return v, nil
		}
	case json.Number:
		return event.ID(v.String()), nil
	case float64:
		return event.ID(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case int:
		return event.ID(strconv.Itoa(v)), nil
	case int64:
		return event.ID(strconv.FormatInt(v, 10)), nil
	}
	return "", ErrNoOwner
}
