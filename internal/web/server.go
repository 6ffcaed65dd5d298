package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"gravitylevel/internal/host"
	"gravitylevel/internal/level"
)

// Requester delivers manual triggers to the program and waits for the result.
type Requester interface {
	Request(ctx context.Context, trigger level.Trigger) error
}

type TriggerResponse struct {
	OK      bool           `json:"ok"`
	Trigger string         `json:"trigger"`
	Error   string         `json:"error,omitempty"`
	Program level.Snapshot `json:"program"`
}

func Handler(status *Status, ctl Requester, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	// Both the button-panel trigger and the terminal run toggle the leveler;
	// the terminal path also runs one cycle immediately on start.
	mux.Handle("/api/trigger", triggerHandler(status, ctl, level.TriggerButton))
	mux.Handle("/api/terminal", triggerHandler(status, ctl, level.TriggerTerminal))

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>Gravity Level</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>Gravity Level</h1>")
		_, _ = fmt.Fprintf(w, "<pre>state=%s\ncontroller=%s\ngyros=%d/%d\ncycles=%d\nlast_error=%s</pre>",
			snap.Program.State, html.EscapeString(snap.Program.Controller),
			len(snap.Program.Gyros), snap.Program.CandidateGyros,
			snap.Program.Cycles, html.EscapeString(snap.Program.LastError),
		)
		_, _ = fmt.Fprintf(w, "<form method=\"post\" action=\"/api/trigger\"><button>Toggle</button></form>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a>.</p></body></html>")
	})

	return mux
}

func triggerHandler(status *Status, ctl Requester, trigger level.Trigger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if ctl == nil {
			http.Error(w, "program unavailable", http.StatusNotFound)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		err := ctl.Request(ctx, trigger)
		switch {
		case errors.Is(err, host.ErrClosed):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			http.Error(w, "request timed out", http.StatusGatewayTimeout)
			return
		}

		// Program errors leave it in a safe state; report them in the body.
		resp := TriggerResponse{
			OK:      err == nil,
			Trigger: trigger.String(),
			Program: status.Snapshot(time.Now().UTC()).Program,
		}
		if err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, resp)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, status *Status, ctl Requester, logs *LogBuffer) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, ctl, logs),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
