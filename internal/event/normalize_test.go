package event

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeWire(t *testing.T, raw string) []Wire {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var rows []Wire
	require.NoError(t, dec.Decode(&rows))
	return rows
}

func TestNormalizeScenario(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	rows := decodeWire(t, `[{"sno":10,"id":42,"stitle":"Meeting","start":"2024-01-01","end":"2024-01-01","cal":1}]`)
	events, err := n.NormalizeAll(rows)
	require.NoError(t, err)
	require.Len(t, events, 1)

	out, err := json.Marshal(events)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"no":10,"id":42,"stitle":"Meeting","start":"2024-01-01","end":"2024-01-01","calendar":1}]`,
		string(out))

	ev := events[0]
	assert.Nil(t, ev.StartArea)
	assert.Nil(t, ev.SMate)
	key, ok := ev.Key()
	require.True(t, ok)
	assert.Equal(t, int64(10), key)
	cat, ok := ev.Category()
	require.True(t, ok)
	assert.Equal(t, 1, cat)
}

func TestNormalizeEveryField(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	rows := decodeWire(t, `[{
		"sno": 1, "id": "kim", "stitle": "t", "start": "s", "end": "e", "cal": 6,
		"sarea": "Seoul", "sdest": "Busan", "scontent": "c", "seat": "rice",
		"sexer": "run", "scom": "Y", "rpathNo": 9, "smate": "lee",
		"extra": "dropped"
	}]`)
	ev, err := n.Normalize(rows[0])
	require.NoError(t, err)

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"no": 1, "id": "kim", "stitle": "t", "start": "s", "end": "e", "calendar": 6,
		"startArea": "Seoul", "endArea": "Busan", "content": "c", "eat": "rice",
		"exercise": "run", "complete": "Y", "rPathNo": 9, "sMate": "lee"
	}`, string(out))
}

func TestNormalizeAbsentAndNull(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	ev, err := n.Normalize(Wire{"stitle": "only title", "sarea": nil})
	require.NoError(t, err)
	require.NotNil(t, ev.Title)
	assert.Equal(t, "only title", *ev.Title)
	assert.Nil(t, ev.No)
	assert.Nil(t, ev.ID)
	assert.Nil(t, ev.StartArea)
	_, ok := ev.Key()
	assert.False(t, ok)
}

func TestNormalizeWeakTypes(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	ev, err := n.Normalize(Wire{"sno": "12", "cal": json.Number("3"), "id": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), *ev.No)
	assert.Equal(t, int64(3), *ev.Calendar)
	assert.Equal(t, ID("7"), *ev.ID)
}

func TestNormalizeFreeFormFieldsPassThrough(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	rows := decodeWire(t, `[{
		"sno": 1, "scom": true, "seat": false, "sexer": 1.5,
		"smate": ["lee", "park"], "rpathNo": "R-12", "scontent": {"memo": "x"}
	}]`)
	events, err := n.NormalizeAll(rows)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, true, ev.Complete)
	assert.Equal(t, false, ev.Eat)
	assert.Equal(t, json.Number("1.5"), ev.Exercise)
	assert.Equal(t, []any{"lee", "park"}, ev.SMate)
	assert.Equal(t, "R-12", ev.RPathNo)
	assert.Equal(t, map[string]any{"memo": "x"}, ev.Content)

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"no": 1, "complete": true, "eat": false, "exercise": 1.5,
		"sMate": ["lee", "park"], "rPathNo": "R-12", "content": {"memo": "x"}
	}`, string(out))
}

func TestEventClone(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	orig, err := n.Normalize(Wire{"sno": json.Number("1"), "stitle": "Meeting", "smate": []any{"lee"}})
	require.NoError(t, err)

	cp := orig.Clone()
	*cp.Title = "changed"
	*cp.No = 99
	cp.SMate.([]any)[0] = "park"

	assert.Equal(t, "Meeting", *orig.Title)
	assert.Equal(t, int64(1), *orig.No)
	assert.Equal(t, []any{"lee"}, orig.SMate)
	assert.Nil(t, CloneAll(nil))
}

func TestNormalizeAllReportsMalformedRow(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	_, err = n.NormalizeAll([]Wire{{"sno": 1}, {"sno": "not-a-number"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	n, err := NewNormalizer(nil)
	require.NoError(t, err)

	events, err := n.NormalizeAll([]Wire{{"sno": 3}, {"sno": 1}, {"sno": 2}})
	require.NoError(t, err)
	var keys []int64
	for _, ev := range events {
		k, _ := ev.Key()
		keys = append(keys, k)
	}
	assert.Equal(t, []int64{3, 1, 2}, keys)
}

func TestCustomFieldMap(t *testing.T) {
	n, err := NewNormalizer(FieldMap{"uid": "id", "summary": "stitle"})
	require.NoError(t, err)

	ev, err := n.Normalize(Wire{"uid": "abc", "summary": "Standup", "sno": 5})
	require.NoError(t, err)
	assert.Equal(t, ID("abc"), *ev.ID)
	assert.Equal(t, "Standup", *ev.Title)
	assert.Nil(t, ev.No)
}

func TestFieldMapValidate(t *testing.T) {
	require.NoError(t, DefaultFieldMap().Validate())

	_, err := NewNormalizer(FieldMap{"sno": "number"})
	assert.ErrorContains(t, err, "unknown local field")

	_, err = NewNormalizer(FieldMap{"sno": "no", "seq": "no"})
	assert.ErrorContains(t, err, "both map to")
}

func TestIDJSON(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ID
		out  string
	}{
		{`42`, "42", `42`},
		{`"kim"`, "kim", `"kim"`},
		{`"007"`, "007", `"007"`},
		// Canonical integers are written as numbers whatever form they arrived in.
		{`"42"`, "42", `42`},
	} {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tc.in), &id))
		assert.Equal(t, tc.want, id)

		out, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, tc.out, string(out))
	}
}
