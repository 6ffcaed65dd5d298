// Package button turns a physical push-button on a GPIO line into leveler
// toggle requests.
package button

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gravitylevel/internal/level"
)

// line is an opened input line delivering presses to the callback given at
// open time.
type line interface {
	Close() error
}

var openLineFn = openLine

type Config struct {
	Enable bool
	// Chip is the preferred gpiochip device name, e.g. "gpiochip0".
	Chip string
	// Pin is BCM GPIO numbering.
	Pin      int
	Debounce time.Duration
}

// Requester delivers a manual trigger to the program.
type Requester interface {
	Request(ctx context.Context, trigger level.Trigger) error
}

type Snapshot struct {
	Enabled   bool      `json:"enabled"`
	Presses   uint64    `json:"presses"`
	Dropped   uint64    `json:"dropped"`
	LastPress time.Time `json:"last_press_utc,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	req Requester
	log zerolog.Logger

	presses chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	lineMu sync.Mutex
	line   line

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config, req Requester, log zerolog.Logger) *Service {
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	return &Service{
		cfg:     cfg,
		req:     req,
		log:     log.With().Str("component", "button").Int("pin", cfg.Pin).Logger(),
		presses: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start requests the GPIO line and returns immediately. Presses are forwarded
// one at a time; presses arriving while one is in flight are dropped.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("button: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.req == nil {
		return fmt.Errorf("button: requester is nil")
	}

	ln, err := openLineFn(s.cfg, s.press)
	if err != nil {
		s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
		return err
	}
	s.lineMu.Lock()
	s.line = ln
	s.lineMu.Unlock()
	s.setState(func(sn *Snapshot) { sn.Enabled = true })
	s.log.Info().Dur("debounce", s.cfg.Debounce).Msg("button armed")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// press runs on the GPIO event goroutine and must not block.
func (s *Service) press() {
	select {
	case s.presses <- struct{}{}:
	default:
		s.setState(func(sn *Snapshot) { sn.Dropped++ })
	}
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.presses:
		}

		s.setState(func(sn *Snapshot) {
			sn.Presses++
			sn.LastPress = time.Now().UTC()
		})
		if err := s.req.Request(ctx, level.TriggerButton); err != nil {
			s.log.Warn().Err(err).Msg("press")
			s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
			continue
		}
		s.setState(func(sn *Snapshot) { sn.LastError = "" })
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()

	s.lineMu.Lock()
	ln := s.line
	s.line = nil
	s.lineMu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
}
