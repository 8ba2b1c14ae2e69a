package event

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// FieldMap maps wire field names to local field names.
type FieldMap map[string]string

// DefaultFieldMap is the rename table of the schedule service.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		"sno":      "no",
		"id":       "id",
		"stitle":   "stitle",
		"start":    "start",
		"end":      "end",
		"cal":      "calendar",
		"sarea":    "startArea",
		"sdest":    "endArea",
		"scontent": "content",
		"seat":     "eat",
		"sexer":    "exercise",
		"scom":     "complete",
		"rpathNo":  "rPathNo",
		"smate":    "sMate",
	}
}

// Validate reports local names Event does not declare and local names
// targeted by more than one wire field.
func (m FieldMap) Validate() error {
	seen := make(map[string]string, len(m))
	for _, wire := range slices.Sorted(maps.Keys(m)) {
		local := m[wire]
		if !slices.Contains(LocalFields, local) {
			return fmt.Errorf("event: field map %q -> %q: unknown local field", wire, local)
		}
		if prev, dup := seen[local]; dup {
			return fmt.Errorf("event: field map: %q and %q both map to %q", prev, wire, local)
		}
		seen[local] = wire
	}
	return nil
}

// Normalizer converts wire records into local events using a fixed rename
// table.
type Normalizer struct {
	fields FieldMap
}

// NewNormalizer returns a Normalizer for fields. A nil map selects
// DefaultFieldMap.
func NewNormalizer(fields FieldMap) (*Normalizer, error) {
	if fields == nil {
		fields = DefaultFieldMap()
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{fields: maps.Clone(fields)}, nil
}

// Normalize maps w field by field. Wire fields outside the table are
// dropped; missing or null wire fields leave the local field nil.
//
// Only the identity, category and text fields are converted (weakly, so
// "12" and 12 both yield a sequence number). The free-form fields keep the
// wire value as is.
func (n *Normalizer) Normalize(w Wire) (Event, error) {
	renamed := make(map[string]any, len(n.fields))
	for wire, local := range n.fields {
		if v, ok := w[wire]; ok && v != nil {
			renamed[local] = v
		}
	}

	var ev Event
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &ev,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("event: create decoder: %w", err)
	}
	if err := dec.Decode(renamed); err != nil {
		return Event{}, fmt.Errorf("event: normalize: %w", err)
	}
	return ev, nil
}

// NormalizeAll normalizes rows in order. It stops at the first malformed row.
func (n *Normalizer) NormalizeAll(rows []Wire) ([]Event, error) {
	out := make([]Event, 0, len(rows))
	for i, w := range rows {
		ev, err := n.Normalize(w)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}
