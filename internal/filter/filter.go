package filter

import (
	"slices"
	"sync"

	"schedsync/internal/category"
)

// Params are the list-events request parameters derived from a State.
// A nil field is sent to the service as JSON null.
type Params struct {
	Category []int
	StartStr *string
	EndStr   *string
}

// State holds the caller's current filter selection.
//
// Categories is the request-side filter: empty means "no category
// restriction". Visible is the display-side selection and never changes
// what is requested from the service.
type State struct {
	mu         sync.RWMutex
	categories []int
	visible    []int
	dateRange  []string
}

// New returns a State with every category of reg visible, no category
// filter and no date range.
func New(reg *category.Registry) *State {
	s := &State{}
	if reg != nil {
		s.visible = reg.Values()
	}
	return s
}

// SetCategories replaces the request filter. Duplicates are dropped,
// first occurrence wins.
func (s *State) SetCategories(ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = dedupe(ids)
}

// ToggleCategory adds id to the request filter, or removes it if present.
func (s *State) ToggleCategory(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = toggle(s.categories, id)
}

func (s *State) ClearCategories() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = nil
}

func (s *State) Categories() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

func (s *State) SetVisible(ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = dedupe(ids)
}

func (s *State) ToggleVisible(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = toggle(s.visible, id)
}

func (s *State) Visible() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.visible)
}

func (s *State) IsVisible(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.visible, id)
}

// SetDateRange stores the given bounds as-is. Only a range of exactly two
// bounds is applied to requests; anything else behaves as unset.
func (s *State) SetDateRange(bounds ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dateRange = slices.Clone(bounds)
}

func (s *State) ClearDateRange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dateRange = nil
}

func (s *State) DateRange() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.dateRange)
}

// Params derives the request parameters from the current state.
func (s *State) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Params
	if len(s.categories) > 0 {
		p.Category = slices.Clone(s.categories)
	}
	if len(s.dateRange) == 2 {
		start, end := s.dateRange[0], s.dateRange[1]
		p.StartStr = &start
		p.EndStr = &end
	}
	return p
}

func dedupe(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func toggle(ids []int, id int) []int {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return append(slices.Clone(ids), id)
}
