// Package record keeps a line-oriented log of leveler snapshots.
package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gravitylevel/internal/level"
)

// Log format: line-oriented text.
//
// - Blank lines and lines starting with '#' are ignored.
// - Line "START" marks a new session; following times are relative to it.
// - Data lines are <t_ns>,<json> where t_ns is nanoseconds since START and
//   json is one level.Snapshot.

type Entry struct {
	// Session counts START markers seen so far, starting at 1.
	Session int
	At      time.Duration
	Status  level.Snapshot
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Entry, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []Entry
	session := 0
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			session++
			continue
		}
		if session == 0 {
			return nil, fmt.Errorf("line %d: record before START", lineNo)
		}

		tsStr, body, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: missing comma", lineNo)
		}
		tsNs, err := strconv.ParseInt(strings.TrimSpace(tsStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp: %w", lineNo, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("line %d: negative timestamp %d", lineNo, tsNs)
		}

		var snap level.Snapshot
		if err := json.Unmarshal([]byte(body), &snap); err != nil {
			return nil, fmt.Errorf("line %d: invalid status: %w", lineNo, err)
		}
		out = append(out, Entry{Session: session, At: time.Duration(tsNs), Status: snap})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile reads every entry of the log at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

// Writer appends snapshots to a log. Not safe for concurrent use; the host
// publishes from a single goroutine.
type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

// CreateWriter opens path for append and starts a new session.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteSnapshot(now time.Time, snap level.Snapshot) error {
	if ww.closed {
		return errors.New("record writer is closed")
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err = fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), b)
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
