// Package host stands in for the game's programmable block runtime: it owns
// the periodic scheduler and delivers every invocation to the program one at a
// time.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"gravitylevel/internal/level"
)

// Update10 is the game's every-10th-frame rate at 60 updates per second.
const Update10 = 10 * time.Second / 60

var ErrClosed = errors.New("host: service closed")

var newTickerFn = func(d time.Duration) ticker {
	t := time.NewTicker(d)
	return ticker{C: t.C, stop: t.Stop}
}

type ticker struct {
	C    <-chan time.Time
	stop func()
}

// Schedule is the periodic-invocation switch handed to the program.
type Schedule struct {
	on atomic.Bool
}

func (s *Schedule) Active() bool      { return s.on.Load() }
func (s *Schedule) SetActive(on bool) { s.on.Store(on) }

// Invoker is the program surface the host drives.
type Invoker interface {
	Invoke(trigger level.Trigger) error
	Snapshot() level.Snapshot
}

type Config struct {
	// Interval is the scheduled tick period.
	Interval time.Duration
	// Prepare runs before every invocation, e.g. to advance a simulated world.
	Prepare func(now time.Time)
	// Publishers receive a snapshot after every invocation.
	Publishers []func(level.Snapshot)
}

type Service struct {
	cfg   Config
	prog  Invoker
	sched *Schedule
	log   zerolog.Logger

	requests chan request

	mu   sync.RWMutex
	snap level.Snapshot

	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

type request struct {
	trigger level.Trigger
	done    chan error
}

func New(cfg Config, prog Invoker, sched *Schedule, log zerolog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = Update10
	}
	return &Service{
		cfg:      cfg,
		prog:     prog,
		sched:    sched,
		log:      log.With().Str("component", "host").Logger(),
		requests: make(chan request),
		stopCh:   make(chan struct{}),
		snap:     prog.Snapshot(),
	}
}

// Snapshot returns the status published after the latest invocation.
func (s *Service) Snapshot() level.Snapshot {
	if s == nil {
		return level.Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start launches the invocation loop and returns immediately.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("host: service is nil")
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("host: already started")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// Request delivers a manual trigger and waits for the invocation to finish.
// The returned error is the program's status for that invocation.
func (s *Service) Request(ctx context.Context, trigger level.Trigger) error {
	if s == nil {
		return fmt.Errorf("host: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("host: ctx is nil")
	}
	req := request{trigger: trigger, done: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopCh:
		return ErrClosed
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and disengages the program if it is still running, so
// no gyro is left zeroed and unattended.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	defer s.stopOnce.Do(func() { close(s.stopCh) })
	t := newTickerFn(s.cfg.Interval)
	defer t.stop()
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case req := <-s.requests:
			req.done <- s.invoke(req.trigger)
		case <-t.C:
			if !s.sched.Active() {
				continue
			}
			if err := s.invoke(level.TriggerUpdate); err != nil {
				s.log.Warn().Err(err).Msg("tick")
			}
		}
	}
}

func (s *Service) invoke(trigger level.Trigger) error {
	if s.cfg.Prepare != nil {
		s.cfg.Prepare(time.Now())
	}
	err := s.prog.Invoke(trigger)
	snap := s.prog.Snapshot()

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	for _, pub := range s.cfg.Publishers {
		pub(snap)
	}
	return err
}

func (s *Service) shutdown() {
	if s.prog.Snapshot().State != level.StateRunning {
		return
	}
	s.log.Info().Msg("disengaging on shutdown")
	// A manual trigger while running is the stop path.
	if err := s.invoke(level.TriggerButton); err != nil {
		s.log.Error().Err(err).Msg("disengage on shutdown")
	}
}
