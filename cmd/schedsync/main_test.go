package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService answers like the scheduling service and records request
// bodies by path.
type fakeService struct {
	bodies map[string][]string
	list   string
}

func newFakeService(t *testing.T, list string) (*fakeService, *httptest.Server) {
	t.Helper()
	fs := &fakeService{bodies: map[string][]string{}, list: list}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		fs.bodies[r.URL.Path] = append(fs.bodies[r.URL.Path], string(b))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/sch/seleteAll.do" {
			_, _ = w.Write([]byte(fs.list))
			return
		}
		_, _ = w.Write([]byte(`{"result":1}`))
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func run(t *testing.T, baseURL string, stdin string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("SCHEDSYNC_BASE_URL", baseURL)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchCommand(t *testing.T) {
	fs, srv := newFakeService(t,
		`[{"sno":10,"id":42,"stitle":"Meeting","start":"2024-01-01","end":"2024-01-01","cal":1}]`)

	out, err := run(t, srv.URL, "", "fetch", "--user", "42")
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"no":10,"id":42,"stitle":"Meeting","start":"2024-01-01","end":"2024-01-01","calendar":1}]`, out)
	require.Len(t, fs.bodies["/sch/seleteAll.do"], 1)
	assert.JSONEq(t, `{"id":42,"startStr":null,"endStr":null,"category":null}`, fs.bodies["/sch/seleteAll.do"][0])
}

func TestFetchCommandFilters(t *testing.T) {
	fs, srv := newFakeService(t, `[{"sno":1,"cal":2},{"sno":2,"cal":3}]`)

	out, err := run(t, srv.URL, "", "fetch", "--user", "kim",
		"--category", "2", "--category", "3", "--from", "2024-01-01", "--to", "2024-01-31", "--visible", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"no":2,"calendar":3}]`, out)
	assert.JSONEq(t,
		`{"id":"kim","startStr":"2024-01-01","endStr":"2024-01-31","category":[2,3]}`,
		fs.bodies["/sch/seleteAll.do"][0])
}

func TestFetchCommandHalfRange(t *testing.T) {
	fs, srv := newFakeService(t, `[]`)

	_, err := run(t, srv.URL, "", "fetch", "--user", "kim", "--from", "2024-01-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"kim","startStr":null,"endStr":null,"category":null}`, fs.bodies["/sch/seleteAll.do"][0])
}

func TestRemoveCommand(t *testing.T) {
	fs, srv := newFakeService(t, `[]`)

	out, err := run(t, srv.URL, "", "remove", "--user", "7", "--sno", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":1}`, out)
	assert.JSONEq(t, `{"id":7,"sNo":3}`, fs.bodies["/sch/delete.do"][0])
	assert.JSONEq(t, `{"id":7,"startStr":null,"endStr":null,"category":null}`, fs.bodies["/sch/seleteAll.do"][0])
}

func TestAddCommandFromStdin(t *testing.T) {
	fs, srv := newFakeService(t, `[{"sno":11,"stitle":"new"}]`)

	out, err := run(t, srv.URL, `{"stitle":"new","cal":2}`, "add", "--user", "kim")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"no":11,"stitle":"new"}]`, out)
	assert.JSONEq(t, `{"id":"kim","stitle":"new","cal":2}`, fs.bodies["/sch/insert.do"][0])
	require.Len(t, fs.bodies["/sch/seleteAll.do"], 1)
}

func TestUpdateCommand(t *testing.T) {
	fs, srv := newFakeService(t, `[]`)

	_, err := run(t, srv.URL, "", "update", "--data", `{"id":42,"sno":10,"stitle":"moved"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"sno":10,"stitle":"moved"}`, fs.bodies["/sch/update.do"][0])
	assert.JSONEq(t, `{"id":42,"startStr":null,"endStr":null,"category":null}`, fs.bodies["/sch/seleteAll.do"][0])
}

func TestExportCommand(t *testing.T) {
	_, srv := newFakeService(t, `[{"sno":10,"id":42,"stitle":"Meeting","start":"2024-01-01","end":"2024-01-01","cal":1}]`)
	out := filepath.Join(t.TempDir(), "schedule.ics")

	_, err := run(t, srv.URL, "", "export", "--user", "42", "--out", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cal, err := ical.ParseCalendar(f)
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	assert.Equal(t, "Meeting", cal.Events()[0].GetProperty(ical.ComponentPropertySummary).Value)
}

func TestMissingUser(t *testing.T) {
	_, srv := newFakeService(t, `[]`)
	_, err := run(t, srv.URL, "", "fetch")
	assert.ErrorContains(t, err, "no user id")
}

func TestReadPayload(t *testing.T) {
	p, err := readPayload(strings.NewReader(`{"id":1}`), "-")
	require.NoError(t, err)
	assert.Contains(t, p, "id")

	_, err = readPayload(nil, "null")
	assert.Error(t, err)

	_, err = readPayload(nil, "{")
	assert.Error(t, err)
}

func TestPrintRaw(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRaw(&buf, nil))
	assert.Empty(t, buf.String())

	require.NoError(t, printRaw(&buf, []byte(`{"a":1}`)))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, printRaw(&buf, []byte(`OK`)))
	assert.Equal(t, "OK\n", buf.String())
}
