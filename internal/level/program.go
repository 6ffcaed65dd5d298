// Package level is the gravity leveler: a start/stop lifecycle that takes over
// every gyro with its override engaged and, on each scheduled tick, drives
// them so the controller's down axis follows gravity.
package level

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gravitylevel/internal/actuation"
	"gravitylevel/internal/align"
	"gravitylevel/internal/block"
	"gravitylevel/internal/override"
)

const (
	msgNoControllers = "No usable control blocks found."
	msgNoMain        = "No main control blocks found."
	msgNoGyros       = "No overridden gyroscopes found."
	msgOffline       = "System Offline"
)

var (
	ErrNoEngagedGyros     = errors.New("level: no gyros with override engaged")
	ErrNoUsableController = errors.New("level: no occupied controller")
)

// Scheduler is the host's periodic-invocation switch.
type Scheduler interface {
	Active() bool
	SetActive(on bool)
}

// Sink receives human-readable status lines.
type Sink interface {
	Echo(msg string)
}

type Config struct {
	// Construct restricts enumeration to blocks of this construct; 0 accepts all.
	Construct int64

	Scheduler Scheduler
	Sink      Sink
	Logger    zerolog.Logger

	// Now stamps snapshots; defaults to time.Now.
	Now func() time.Time
}

// Program is the leveler lifecycle.
//
// Not safe for concurrent use: the host must deliver invocations one at a time.
type Program struct {
	cfg Config
	log zerolog.Logger

	controllers []block.Controller
	gyros       []block.Gyro

	state   State
	main    block.Controller
	engaged []block.Gyro
	store   *override.Store

	cycles  uint64
	last    align.Solution
	haveSol bool
	lastErr error
	updated time.Time
}

// New enumerates the grid once and returns a stopped program.
func New(grid block.Grid, cfg Config) *Program {
	if cfg.Scheduler == nil {
		cfg.Scheduler = &flagScheduler{}
	}
	if cfg.Sink == nil {
		cfg.Sink = discardSink{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Program{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "level").Logger(),
		store: override.NewStore(),
	}
	for _, c := range grid.Controllers() {
		if p.sameConstruct(c) {
			p.controllers = append(p.controllers, c)
		}
	}
	for _, g := range grid.Gyros() {
		if p.sameConstruct(g) {
			p.gyros = append(p.gyros, g)
		}
	}
	p.log.Debug().Int("controllers", len(p.controllers)).Int("gyros", len(p.gyros)).Msg("grid enumerated")
	return p
}

func (p *Program) sameConstruct(b block.Block) bool {
	return p.cfg.Construct == 0 || b.ConstructID() == p.cfg.Construct
}

// State returns the lifecycle state.
func (p *Program) State() State {
	return p.state
}

// Invoke runs the program once for trigger. Manual triggers toggle the
// leveler; scheduled ticks run a control cycle while it is running.
//
// Every returned error is non-fatal: the program is already in a safe state
// when Invoke returns.
func (p *Program) Invoke(trigger Trigger) error {
	var err error
	switch {
	case trigger.Manual():
		err = p.powerButton(trigger)
	case trigger&TriggerUpdate != 0 && p.state == StateRunning:
		err = p.cycle()
	default:
		p.echo(msgOffline)
	}
	p.lastErr = err
	p.updated = p.cfg.Now()
	return err
}

func (p *Program) powerButton(trigger Trigger) error {
	p.echof("Executing by %s", trigger)

	if p.state == StateRunning || p.cfg.Scheduler.Active() {
		p.stop()
		return nil
	}
	return p.start(trigger)
}

func (p *Program) start(trigger Trigger) error {
	p.echo("Attempting to start")

	var candidates []block.Gyro
	for _, g := range p.gyros {
		if g.GyroOverride() {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		p.echo(msgNoGyros)
		return ErrNoEngagedGyros
	}

	main := p.selectController()
	if main == nil {
		p.echo(msgNoControllers)
		// Nothing was adopted; only the schedule needs forcing off.
		p.state = StateOff
		p.cfg.Scheduler.SetActive(false)
		return ErrNoUsableController
	}
	p.echof("Using %s", main.CustomName())

	for _, g := range candidates {
		before := g.Axes()
		if !p.store.Adopt(g) {
			continue
		}
		p.engaged = append(p.engaged, g)
		p.echof("Overridden gyro %s Pitch, Roll, Yaw saved %g, %g, %g", g.CustomName(), before.Pitch, before.Roll, before.Yaw)
	}
	p.main = main
	p.state = StateRunning
	p.cfg.Scheduler.SetActive(true)
	p.echof("Overridden Gyros: %d", len(p.engaged))
	p.log.Info().Str("controller", main.CustomName()).Int("gyros", len(p.engaged)).Msg("leveler engaged")

	if trigger == TriggerTerminal {
		return p.cycle()
	}
	return nil
}

// selectController prefers the main cockpit when someone sits in it, then any
// occupied controller.
func (p *Program) selectController() block.Controller {
	for _, c := range p.controllers {
		if c.IsMainCockpit() && c.IsUnderControl() {
			return c
		}
	}
	p.echo(msgNoMain)
	for _, c := range p.controllers {
		if c.IsUnderControl() {
			return c
		}
	}
	return nil
}

func (p *Program) stop() {
	p.echo("Attempting to end")
	for _, g := range p.engaged {
		if err := p.store.Restore(g); err != nil {
			p.log.Error().Err(err).Int64("gyro", g.EntityID()).Msg("restore without saved state")
			continue
		}
		a := g.Axes()
		p.echof("Overridden %s reloaded Pitch, Roll, Yaw: %g, %g, %g", g.CustomName(), a.Pitch, a.Roll, a.Yaw)
	}
	p.store.Clear()
	p.engaged = nil
	p.main = nil
	p.haveSol = false
	p.state = StateOff
	p.cfg.Scheduler.SetActive(false)
	p.log.Info().Msg("leveler disengaged")
}

// cycle runs one solve-and-distribute pass over the engaged gyros.
func (p *Program) cycle() error {
	sol, err := align.Solve(p.main)
	if err != nil {
		// Hold the previous commands; nothing sensible to steer toward.
		p.echof("Gravity unavailable, holding: %v", err)
		return err
	}
	p.echof("Gravity Vector:\n%v\nDown Vector:\n%v\nDifference relative to Cockpit:\n%v", sol.Gravity, sol.Down, sol.LocalDelta)
	p.echof("Target relative to Control Frame:\nPitch: %g\nYaw: %g\nRoll: %g", sol.Target.Pitch, sol.Target.Yaw, sol.Target.Roll)

	vehicle := p.main.WorldOrientation()
	for _, g := range p.engaged {
		cmd := actuation.Apply(sol.Target, vehicle, g)
		p.echof("%s actuation set to\nPitch: %g\nRoll: %g\nYaw: %g", g.CustomName(), cmd.Pitch, cmd.Roll, cmd.Yaw)
	}

	p.last = sol
	p.haveSol = true
	p.cycles++
	p.log.Debug().
		Uint64("cycle", p.cycles).
		Float64("pitch", sol.Target.Pitch).
		Float64("yaw", sol.Target.Yaw).
		Float64("roll", sol.Target.Roll).
		Msg("cycle")
	return nil
}

func (p *Program) echo(msg string) {
	p.cfg.Sink.Echo(msg)
}

func (p *Program) echof(format string, args ...any) {
	p.cfg.Sink.Echo(fmt.Sprintf(format, args...))
}

type discardSink struct{}

func (discardSink) Echo(string) {}

// flagScheduler stands in when the host supplies no scheduler.
type flagScheduler struct{ on bool }

func (s *flagScheduler) Active() bool      { return s.on }
func (s *flagScheduler) SetActive(on bool) { s.on = on }
