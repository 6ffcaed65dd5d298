// Package console reads operator commands from a terminal and forwards them to
// the program as terminal runs.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"gravitylevel/internal/level"
)

type Requester interface {
	Request(ctx context.Context, trigger level.Trigger) error
}

type StatusSource interface {
	Snapshot() level.Snapshot
}

type Console struct {
	in     io.Reader
	out    io.Writer
	req    Requester
	status StatusSource
	log    zerolog.Logger
}

func New(in io.Reader, out io.Writer, req Requester, status StatusSource, log zerolog.Logger) *Console {
	return &Console{
		in:     in,
		out:    out,
		req:    req,
		status: status,
		log:    log.With().Str("component", "console").Logger(),
	}
}

const help = `commands:
  run      toggle the leveler as a terminal run (starts with one immediate cycle)
  trigger  toggle the leveler as a button trigger
  status   print the current status
  quit     exit
`

// Run processes commands until the input ends, ctx is done or quit is read.
// It returns nil on quit or end of input.
func (c *Console) Run(ctx context.Context) error {
	// Releases the scanner goroutine on quit.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		s := bufio.NewScanner(c.in)
		for s.Scan() {
			select {
			case lines <- s.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- s.Err()
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case line := <-lines:
			if quit := c.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
			c.prompt()
		}
	}
}

func (c *Console) prompt() {
	_, _ = fmt.Fprint(c.out, "> ")
}

func (c *Console) handle(ctx context.Context, cmd string) (quit bool) {
	switch strings.ToLower(cmd) {
	case "":
	case "run", "r":
		c.request(ctx, level.TriggerTerminal)
	case "trigger", "t":
		c.request(ctx, level.TriggerButton)
	case "status", "s":
		c.printStatus()
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		_, _ = fmt.Fprint(c.out, help)
	default:
		_, _ = fmt.Fprintf(c.out, "unknown command %q\n%s", cmd, help)
	}
	return false
}

func (c *Console) request(ctx context.Context, trigger level.Trigger) {
	err := c.req.Request(ctx, trigger)
	if err != nil {
		c.log.Debug().Err(err).Stringer("trigger", trigger).Msg("request")
		_, _ = fmt.Fprintf(c.out, "error: %v\n", err)
	}
	if c.status != nil {
		_, _ = fmt.Fprintf(c.out, "state: %s\n", c.status.Snapshot().State)
	}
}

func (c *Console) printStatus() {
	if c.status == nil {
		_, _ = fmt.Fprintln(c.out, "status unavailable")
		return
	}
	b, err := json.MarshalIndent(c.status.Snapshot(), "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(c.out, "%s\n", b)
}
