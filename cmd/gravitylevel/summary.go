package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gravitylevel/internal/level"
	"gravitylevel/internal/record"
)

type recordSummary struct {
	Sessions    int
	Entries     int
	Running     int
	MaxCycles   uint64
	MaxDuration time.Duration
	// Errors counts entries per distinct last_error.
	Errors map[string]int
}

func summarizeRecord(entries []record.Entry) recordSummary {
	s := recordSummary{Errors: map[string]int{}}
	sessions := map[int]bool{}
	for _, e := range entries {
		sessions[e.Session] = true
		s.Entries++
		if e.Status.State == level.StateRunning {
			s.Running++
		}
		if e.Status.Cycles > s.MaxCycles {
			s.MaxCycles = e.Status.Cycles
		}
		if e.At > s.MaxDuration {
			s.MaxDuration = e.At
		}
		if e.Status.LastError != "" {
			s.Errors[e.Status.LastError]++
		}
	}
	s.Sessions = len(sessions)
	return s
}

func printRecordSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	entries, err := record.ReadFile(path)
	if err != nil {
		return err
	}
	s := summarizeRecord(entries)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "sessions: %d\n", s.Sessions)
	fmt.Fprintf(w, "entries: %d\n", s.Entries)
	fmt.Fprintf(w, "running_entries: %d\n", s.Running)
	fmt.Fprintf(w, "max_cycles: %d\n", s.MaxCycles)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	keys := make([]string, 0, len(s.Errors))
	for k := range s.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "errors:\n")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, s.Errors[k])
	}
	return nil
}
