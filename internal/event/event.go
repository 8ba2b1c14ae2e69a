package event

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Wire is a raw event record as delivered by the remote scheduling service.
// Numbers are expected as json.Number (decode with UseNumber).
type Wire = map[string]any

// ID identifies a user or event owner. The service sends it either as a
// JSON number or a JSON string. On output an ID that is a canonical decimal
// integer is always written as a JSON number, even if it arrived as the
// string "42"; anything else, including "007", is written as a string.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Event is the normalized local event. A nil field means the wire record
// did not carry the corresponding value.
//
// Fields typed any hold the wire value unchanged (string, bool,
// json.Number, []any, map[string]any).
type Event struct {
	No        *int64  `mapstructure:"no" json:"no,omitempty"`
	ID        *ID     `mapstructure:"id" json:"id,omitempty"`
	Title     *string `mapstructure:"stitle" json:"stitle,omitempty"`
	Start     *string `mapstructure:"start" json:"start,omitempty"`
	End       *string `mapstructure:"end" json:"end,omitempty"`
	Calendar  *int64  `mapstructure:"calendar" json:"calendar,omitempty"`
	StartArea *string `mapstructure:"startArea" json:"startArea,omitempty"`
	EndArea   *string `mapstructure:"endArea" json:"endArea,omitempty"`
	Content   any     `mapstructure:"content" json:"content,omitempty"`
	Eat       any     `mapstructure:"eat" json:"eat,omitempty"`
	Exercise  any     `mapstructure:"exercise" json:"exercise,omitempty"`
	Complete  any     `mapstructure:"complete" json:"complete,omitempty"`
	RPathNo   any     `mapstructure:"rPathNo" json:"rPathNo,omitempty"`
	SMate     any     `mapstructure:"sMate" json:"sMate,omitempty"`
}

// Clone returns a deep copy of e. The copy shares no memory with e.
func (e Event) Clone() Event {
	return Event{
		No:        clonePtr(e.No),
		ID:        clonePtr(e.ID),
		Title:     clonePtr(e.Title),
		Start:     clonePtr(e.Start),
		End:       clonePtr(e.End),
		Calendar:  clonePtr(e.Calendar),
		StartArea: clonePtr(e.StartArea),
		EndArea:   clonePtr(e.EndArea),
		Content:   cloneValue(e.Content),
		Eat:       cloneValue(e.Eat),
		Exercise:  cloneValue(e.Exercise),
		Complete:  cloneValue(e.Complete),
		RPathNo:   cloneValue(e.RPathNo),
		SMate:     cloneValue(e.SMate),
	}
}

// CloneAll deep-copies events. A nil slice stays nil.
func CloneAll(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, ev := range events {
		out[i] = ev.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneValue copies the containers JSON decoding produces. Scalars are
// immutable and returned as is.
func cloneValue(v any) any {
	switch v := v.(type) {
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = cloneValue(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}

// Key returns the event's sequence number, used to reference it inside a
// cache snapshot.
func (e Event) Key() (int64, bool) {
	if e.No == nil {
		return 0, false
	}
	return *e.No, true
}

// Category returns the event's category value, if present.
func (e Event) Category() (int, bool) {
	if e.Calendar == nil {
		return 0, false
	}
	return int(*e.Calendar), true
}

// LocalFields lists the local field names Event declares.
var LocalFields = localFields()

func localFields() []string {
	t := reflect.TypeOf(Event{})
	out := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("mapstructure"), ",")
		out = append(out, name)
	}
	return out
}
