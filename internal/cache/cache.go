package cache

import (
	"errors"
	"sync"

	"schedsync/internal/event"
)

// ErrStale is returned by Replace when a later-issued fetch has already
// been applied.
var ErrStale = errors.New("cache: stale result discarded")

// Cache holds the current ordered snapshot of normalized events. It is
// only ever replaced wholesale. Events go in and come out as deep copies, so
// callers cannot reach the cached values.
type Cache struct {
	mu       sync.RWMutex
	events   []event.Event
	issued   uint64
	applied  uint64
	selected *int64
}

func New() *Cache {
	return &Cache{}
}

// Begin reserves the sequence number for a fetch about to be issued.
func (c *Cache) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// Replace installs events as the new snapshot for the fetch identified by
// seq. If a fetch issued after seq has already been applied, the snapshot is
// left as is and ErrStale is returned.
func (c *Cache) Replace(seq uint64, events []event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		return ErrStale
	}
	c.applied = seq
	c.events = event.CloneAll(events)
	return nil
}

// Events returns a copy of the current snapshot in server order.
func (c *Cache) Events() []event.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return event.CloneAll(c.events)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Visible returns the snapshot restricted to events whose category is
// accepted by show. Events without a category are always kept.
func (c *Cache) Visible(show func(category int) bool) []event.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]event.Event, 0, len(c.events))
	for _, ev := range c.events {
		if cat, ok := ev.Category(); ok && !show(cat) {
			continue
		}
		out = append(out, ev.Clone())
	}
	return out
}

// Select remembers no as the clicked event. The selection does not own the
// event; it is resolved against whatever snapshot is current when read.
func (c *Cache) Select(no int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = &no
}

func (c *Cache) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// Selected resolves the selection against the current snapshot. It reports
// false if nothing is selected or the event is no longer cached.
func (c *Cache) Selected() (event.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return event.Event{}, false
	}
	for _, ev := range c.events {
		if k, ok := ev.Key(); ok && k == *c.selected {
			return ev.Clone(), true
		}
	}
	return event.Event{}, false
}
