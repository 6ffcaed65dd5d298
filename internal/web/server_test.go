package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gravitylevel/internal/button"
	"gravitylevel/internal/host"
	"gravitylevel/internal/level"
)

type fakeProgram struct {
	snap     level.Snapshot
	err      error
	triggers []level.Trigger
}

func (f *fakeProgram) Snapshot() level.Snapshot { return f.snap }

func (f *fakeProgram) Request(_ context.Context, trigger level.Trigger) error {
	f.triggers = append(f.triggers, trigger)
	if f.err == nil {
		f.snap.State = level.StateRunning
	}
	return f.err
}

func newTestServer(t *testing.T, prog *fakeProgram, logs *LogBuffer) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(Handler(NewStatus(prog, 100*time.Millisecond), prog, logs))
	t.Cleanup(ts.Close)
	return ts
}

func TestAPIStatus(t *testing.T) {
	prog := &fakeProgram{snap: level.Snapshot{State: level.StateOff, CandidateGyros: 4}}
	ts := newTestServer(t, prog, nil)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "gravitylevel" {
		t.Fatalf("service=%q", snap.Service)
	}
	if snap.Interval != "100ms" {
		t.Fatalf("interval=%q want 100ms", snap.Interval)
	}
	if snap.Program.State != level.StateOff || snap.Program.CandidateGyros != 4 {
		t.Fatalf("program=%+v", snap.Program)
	}
	if snap.Build.GoVersion == "" {
		t.Fatalf("expected go version")
	}
}

type fakeButton struct{ snap button.Snapshot }

func (f fakeButton) Snapshot() button.Snapshot { return f.snap }

func TestAPIStatus_Button(t *testing.T) {
	prog := &fakeProgram{}
	status := NewStatus(prog, time.Second)

	if got := status.Snapshot(time.Time{}); got.Button != nil {
		t.Fatalf("button=%+v want nil without a source", got.Button)
	}

	status.WithButton(fakeButton{snap: button.Snapshot{Enabled: true, Presses: 3, Dropped: 1, LastError: "busy"}})
	ts := httptest.NewServer(Handler(status, prog, nil))
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Button == nil || !out.Button.Enabled || out.Button.Presses != 3 || out.Button.Dropped != 1 || out.Button.LastError != "busy" {
		t.Fatalf("button=%+v", out.Button)
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeProgram{}, nil)
	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodGet {
		t.Fatalf("allow=%q", allow)
	}
}

func TestAPITrigger_Kinds(t *testing.T) {
	cases := []struct {
		path string
		want level.Trigger
	}{
		{"/api/trigger", level.TriggerButton},
		{"/api/terminal", level.TriggerTerminal},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			prog := &fakeProgram{}
			ts := newTestServer(t, prog, nil)

			resp, err := http.Post(ts.URL+tc.path, "application/json", nil)
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status code=%d", resp.StatusCode)
			}
			var out TriggerResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode json: %v", err)
			}
			if !out.OK || out.Program.State != level.StateRunning || out.Trigger != tc.want.String() {
				t.Fatalf("response=%+v", out)
			}
			if len(prog.triggers) != 1 || prog.triggers[0] != tc.want {
				t.Fatalf("triggers=%v want [%v]", prog.triggers, tc.want)
			}
		})
	}
}

func TestAPITrigger_ProgramErrorInBody(t *testing.T) {
	prog := &fakeProgram{err: level.ErrNoEngagedGyros}
	ts := newTestServer(t, prog, nil)

	resp, err := http.Post(ts.URL+"/api/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	var out TriggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.OK || out.Error != level.ErrNoEngagedGyros.Error() {
		t.Fatalf("response=%+v", out)
	}
}

func TestAPITrigger_Closed(t *testing.T) {
	prog := &fakeProgram{err: fmt.Errorf("deliver: %w", host.ErrClosed)}
	ts := newTestServer(t, prog, nil)

	resp, err := http.Post(ts.URL+"/api/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status code=%d want 503", resp.StatusCode)
	}
}

func TestAPITrigger_GetRejected(t *testing.T) {
	prog := &fakeProgram{}
	ts := newTestServer(t, prog, nil)

	resp, err := http.Get(ts.URL + "/api/trigger")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d want 405", resp.StatusCode)
	}
	if len(prog.triggers) != 0 {
		t.Fatalf("GET must not trigger")
	}
}

func TestRootPage(t *testing.T) {
	prog := &fakeProgram{snap: level.Snapshot{Controller: "<Cockpit>"}}
	ts := newTestServer(t, prog, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "controller=&lt;Cockpit&gt;") {
		t.Fatalf("body=%q", string(b))
	}

	resp2, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d want 404", resp2.StatusCode)
	}
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(2)
	_, _ = logs.Write([]byte("one\ntwo\nthr"))
	_, _ = logs.Write([]byte("ee\n"))
	ts := newTestServer(t, &fakeProgram{}, logs)

	resp, err := http.Get(ts.URL + "/api/logs?tail=5")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	defer resp.Body.Close()
	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Dropped != 1 || len(out.Lines) != 2 || out.Lines[0] != "two" || out.Lines[1] != "three" {
		t.Fatalf("logs=%+v", out)
	}

	bad, err := http.Get(ts.URL + "/api/logs?tail=0")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d want 400", bad.StatusCode)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", NewStatus(&fakeProgram{}, time.Second), nil, nil)
	}()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err=%v want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
	}
}
