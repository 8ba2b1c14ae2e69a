package category

import (
	"fmt"
	"slices"
)

// Category is a tag used to group and filter schedule events.
type Category struct {
	// Color is a semantic color tag understood by the UI (e.g. "success").
	// It may be empty.
	Color string `yaml:"color" json:"color"`
	// Label is the display label.
	Label string `yaml:"label" json:"label"`
	// Value is the numeric identifier the remote service uses.
	Value int `yaml:"value" json:"value"`
}

// Registry is an immutable, ordered set of categories.
type Registry struct {
	cats  []Category
	index map[int]int
}

// New builds a registry from cats in declaration order. Values must be unique.
func New(cats []Category) (*Registry, error) {
	r := &Registry{
		cats:  make([]Category, 0, len(cats)),
		index: make(map[int]int, len(cats)),
	}
	for _, c := range cats {
		if _, dup := r.index[c.Value]; dup {
			return nil, fmt.Errorf("category: duplicate value %d", c.Value)
		}
		r.index[c.Value] = len(r.cats)
		r.cats = append(r.cats, c)
	}
	return r, nil
}

// Lookup returns the category with the given value.
func (r *Registry) Lookup(value int) (Category, bool) {
	i, ok := r.index[value]
	if !ok {
		return Category{}, false
	}
	return r.cats[i], true
}

// All returns a copy of the categories in declaration order.
func (r *Registry) All() []Category {
	return slices.Clone(r.cats)
}

// Values returns every category value in declaration order.
func (r *Registry) Values() []int {
	out := make([]int, len(r.cats))
	for i, c := range r.cats {
		out[i] = c.Value
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.cats)
}
