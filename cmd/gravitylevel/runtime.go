package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"gravitylevel/internal/button"
	"gravitylevel/internal/config"
	"gravitylevel/internal/console"
	"gravitylevel/internal/host"
	"gravitylevel/internal/level"
	"gravitylevel/internal/logging"
	"gravitylevel/internal/record"
	"gravitylevel/internal/sim"
	"gravitylevel/internal/udp"
	"gravitylevel/internal/web"
)

type app struct {
	cfg config.Config
	log zerolog.Logger

	grid  *sim.Grid
	start time.Time

	sched *host.Schedule
	prog  *level.Program
	svc   *host.Service

	telemetry *udp.Broadcaster
	recorder  *record.Writer
	btn       *button.Service
}

// resolveScenarioPath makes a relative scenario path relative to the config
// file that names it.
func resolveScenarioPath(configPath, scenario string) string {
	if scenario == "" || filepath.IsAbs(scenario) || configPath == "" {
		return scenario
	}
	return filepath.Join(filepath.Dir(configPath), scenario)
}

func loadGrid(cfg config.Config, configPath string) (*sim.Grid, error) {
	path := resolveScenarioPath(configPath, cfg.Sim.Scenario)
	script, err := sim.LoadScenarioScript(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	scn, err := sim.NewScenario(script)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sim.NewGrid(scn, cfg.Sim.Loop), nil
}

func newApp(cfg config.Config, configPath string, log zerolog.Logger) (*app, error) {
	grid, err := loadGrid(cfg, configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		grid:  grid,
		start: time.Now(),
		sched: &host.Schedule{},
	}
	a.prog = level.New(grid, level.Config{
		Construct: cfg.Program.Construct,
		Scheduler: a.sched,
		Sink:      logging.NewEchoSink(log),
		Logger:    log,
	})

	var publishers []func(level.Snapshot)
	if cfg.Telemetry.Enable {
		b, err := udp.NewBroadcaster(cfg.Telemetry.Dest)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		a.telemetry = b
		publishers = append(publishers, a.publishTelemetry)
	}
	if cfg.Record.Enable {
		w, err := record.CreateWriter(cfg.Record.Path)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("record: %w", err)
		}
		a.recorder = w
		publishers = append(publishers, a.publishRecord)
	}

	a.svc = host.New(host.Config{
		Interval:   cfg.Program.Interval,
		Prepare:    a.advance,
		Publishers: publishers,
	}, a.prog, a.sched, log)
	return a, nil
}

// advance moves the simulated world to now before every invocation.
func (a *app) advance(now time.Time) {
	a.grid.Advance(now.Sub(a.start))
}

func (a *app) publishTelemetry(snap level.Snapshot) {
	if err := a.telemetry.Publish(snap); err != nil {
		a.log.Debug().Err(err).Str("dest", a.telemetry.Dest()).Msg("telemetry send")
	}
}

func (a *app) publishRecord(snap level.Snapshot) {
	if err := a.recorder.WriteSnapshot(time.Now(), snap); err != nil {
		a.log.Warn().Err(err).Msg("record write")
	}
}

// run starts every enabled surface and blocks until ctx is done. stop is
// called when the operator quits from the console.
func (a *app) run(ctx context.Context, stop context.CancelFunc, stdin *os.File, logs *web.LogBuffer) error {
	if err := a.svc.Start(ctx); err != nil {
		return err
	}

	if a.cfg.Button.Enable {
		a.btn = button.New(button.Config{
			Enable:   true,
			Chip:     a.cfg.Button.Chip,
			Pin:      a.cfg.Button.Pin,
			Debounce: a.cfg.Button.Debounce,
		}, a.svc, a.log)
		if err := a.btn.Start(ctx); err != nil {
			// Keep running without the button; the other surfaces still work.
			a.log.Error().Err(err).Msg("button init failed")
		}
	}

	if a.cfg.Web.Enable {
		status := web.NewStatus(a.svc, a.cfg.Program.Interval)
		if a.btn != nil {
			status.WithButton(a.btn)
		}
		go func() {
			a.log.Info().Str("listen", a.cfg.Web.Listen).Msg("web listening")
			if err := web.Serve(ctx, a.cfg.Web.Listen, status, a.svc, logs); err != nil && ctx.Err() == nil {
				a.log.Error().Err(err).Msg("web server stopped")
			}
		}()
	}

	if a.cfg.Console.Enable {
		if console.IsTerminal(stdin) {
			go a.runConsole(ctx, stop, stdin)
		} else {
			a.log.Info().Msg("stdin is not a terminal; console disabled")
		}
	}

	<-ctx.Done()
	return nil
}

func (a *app) runConsole(ctx context.Context, stop context.CancelFunc, in io.Reader) {
	c := console.New(in, os.Stdout, a.svc, a.svc, a.log)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn().Err(err).Msg("console stopped")
	}
	if ctx.Err() == nil {
		stop()
	}
}

// close disengages the leveler before releasing the outputs, so the final
// snapshot is still published.
func (a *app) close() {
	if a.btn != nil {
		a.btn.Close()
	}
	if a.svc != nil {
		a.svc.Close()
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn().Err(err).Msg("record close")
		}
	}
	if a.telemetry != nil {
		_ = a.telemetry.Close()
	}
}
