package web

import (
	"runtime"
	"runtime/debug"
	"time"

	"gravitylevel/internal/button"
	"gravitylevel/internal/level"
)

const serviceName = "gravitylevel"

// StatusSource supplies the latest program snapshot. Implementations must be
// safe to call concurrently.
type StatusSource interface {
	Snapshot() level.Snapshot
}

// ButtonSource supplies the push-button counters.
type ButtonSource interface {
	Snapshot() button.Snapshot
}

type Status struct {
	start    time.Time
	interval time.Duration
	source   StatusSource
	button   ButtonSource
	build    BuildInfo
}

func NewStatus(source StatusSource, interval time.Duration) *Status {
	return &Status{
		start:    time.Now().UTC(),
		interval: interval,
		source:   source,
		build:    readBuildInfo(),
	}
}

// WithButton adds the push-button counters to every status response.
func (s *Status) WithButton(src ButtonSource) *Status {
	s.button = src
	return s
}

type BuildInfo struct {
	GoVersion string `json:"go_version"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

type StatusResponse struct {
	Service   string           `json:"service"`
	NowUTC    string           `json:"now_utc"`
	UptimeSec int64            `json:"uptime_sec"`
	Interval  string           `json:"interval"`
	Build     BuildInfo        `json:"build"`
	Program   level.Snapshot   `json:"program"`
	Button    *button.Snapshot `json:"button,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusResponse {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	resp := StatusResponse{
		Service:   serviceName,
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(s.start).Seconds()),
		Interval:  s.interval.String(),
		Build:     s.build,
	}
	if s.source != nil {
		resp.Program = s.source.Snapshot()
	}
	if s.button != nil {
		b := s.button.Snapshot()
		resp.Button = &b
	}
	return resp
}

func readBuildInfo() BuildInfo {
	out := BuildInfo{GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return out
	}
	out.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		}
	}
	return out
}
