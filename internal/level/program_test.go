package level

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats/scalar"

	"gravitylevel/internal/align"
	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
	"gravitylevel/internal/sim"
)

type recordingSink struct {
	lines []string
}

func (s *recordingSink) Echo(msg string) { s.lines = append(s.lines, msg) }

func (s *recordingSink) contains(sub string) bool {
	for _, l := range s.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

type fakeScheduler struct {
	on    bool
	calls int
}

func (s *fakeScheduler) Active() bool      { return s.on }
func (s *fakeScheduler) SetActive(on bool) { s.on = on; s.calls++ }

type fakeGrid struct {
	controllers []*sim.Controller
	gyros       []*sim.Gyro
}

func (g *fakeGrid) Controllers() []block.Controller {
	out := make([]block.Controller, 0, len(g.controllers))
	for _, c := range g.controllers {
		out = append(out, c)
	}
	return out
}

func (g *fakeGrid) Gyros() []block.Gyro {
	out := make([]block.Gyro, 0, len(g.gyros))
	for _, gy := range g.gyros {
		out = append(out, gy)
	}
	return out
}

type fixture struct {
	grid  *fakeGrid
	sched *fakeScheduler
	sink  *recordingSink
	prog  *Program
}

var (
	savedA = block.Axes{Pitch: 0.2, Yaw: -0.4, Roll: 0.6}
	savedB = block.Axes{Pitch: -1, Yaw: 0.5, Roll: 0}
)

// newFixture is the aligned two-gyro construct with one occupied main cockpit.
func newFixture(t *testing.T, mutate func(*fakeGrid)) *fixture {
	t.Helper()
	grid := &fakeGrid{
		controllers: []*sim.Controller{
			{ID: 1, Name: "Cockpit", Main: true, Occupied: true, Gravity: r3.Vector{Y: -1}, Orientation: frame.Identity(), Rotation: block.Axes{Yaw: 0.35}},
		},
		gyros: []*sim.Gyro{
			{ID: 10, Name: "Gyro A", Override: true, Command: savedA},
			{ID: 11, Name: "Gyro B", Override: true, Command: savedB, Mount: frame.FromEuler(1.2, 0, 0)},
			{ID: 12, Name: "Gyro Idle", Command: block.Axes{Pitch: 0.9}},
		},
	}
	for _, g := range grid.gyros {
		g.Mounted(grid.controllers[0].WorldOrientation())
	}
	if mutate != nil {
		mutate(grid)
	}
	f := &fixture{grid: grid, sched: &fakeScheduler{}, sink: &recordingSink{}}
	f.prog = New(grid, Config{Scheduler: f.sched, Sink: f.sink})
	return f
}

func TestInvoke_StartByButton(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.prog.Invoke(TriggerButton); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if f.prog.State() != StateRunning {
		t.Fatalf("state=%s want running", f.prog.State())
	}
	if !f.sched.on {
		t.Fatalf("scheduler not enabled")
	}
	if f.prog.SavedStates() != 2 {
		t.Fatalf("saved=%d want 2", f.prog.SavedStates())
	}
	for _, g := range f.grid.gyros[:2] {
		if g.Command != (block.Axes{}) {
			t.Fatalf("%s command=%+v want zeroed at adoption", g.Name, g.Command)
		}
	}
	if idle := f.grid.gyros[2]; idle.Command.Pitch != 0.9 {
		t.Fatalf("idle gyro touched: %+v", idle.Command)
	}
	if f.prog.Snapshot().Cycles != 0 {
		t.Fatalf("button start ran a cycle")
	}
	if !f.sink.contains("Using Cockpit") {
		t.Fatalf("missing controller echo: %v", f.sink.lines)
	}
}

func TestInvoke_AlignedTickPassesYaw(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.prog.Invoke(TriggerButton); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.prog.Invoke(TriggerUpdate); err != nil {
		t.Fatalf("tick: %v", err)
	}

	for _, g := range f.grid.gyros[:2] {
		if !scalar.EqualWithinAbs(g.Command.Pitch, 0, 1e-9) || !scalar.EqualWithinAbs(g.Command.Roll, 0, 1e-9) {
			t.Fatalf("%s command=%+v want zero pitch/roll", g.Name, g.Command)
		}
		if !scalar.EqualWithinAbs(g.Command.Yaw, 0.35, 1e-9) {
			t.Fatalf("%s yaw=%v want 0.35", g.Name, g.Command.Yaw)
		}
	}
	snap := f.prog.Snapshot()
	if snap.Cycles != 1 || snap.Solution == nil {
		t.Fatalf("snapshot=%+v want one cycle with solution", snap)
	}
}

func TestInvoke_StopRestores(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.prog.Invoke(TriggerButton); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.prog.Invoke(TriggerUpdate); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if err := f.prog.Invoke(TriggerTerminal); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if f.prog.State() != StateOff {
		t.Fatalf("state=%s want off", f.prog.State())
	}
	if f.sched.on {
		t.Fatalf("scheduler still enabled")
	}
	if f.prog.SavedStates() != 0 {
		t.Fatalf("saved=%d want 0", f.prog.SavedStates())
	}
	a, b := f.grid.gyros[0], f.grid.gyros[1]
	if a.Command != savedA || b.Command != savedB {
		t.Fatalf("restored A=%+v B=%+v", a.Command, b.Command)
	}
	if a.Override || b.Override {
		t.Fatalf("override left engaged after stop")
	}
	if snap := f.prog.Snapshot(); snap.Gyros != nil || snap.Solution != nil || snap.Controller != "" {
		t.Fatalf("snapshot after stop=%+v", snap)
	}
}

func TestInvoke_TerminalStartRunsCycleImmediately(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.prog.Invoke(TriggerTerminal); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if f.prog.State() != StateRunning || !f.sched.on {
		t.Fatalf("state=%s scheduled=%v", f.prog.State(), f.sched.on)
	}
	if f.prog.Snapshot().Cycles != 1 {
		t.Fatalf("cycles=%d want 1", f.prog.Snapshot().Cycles)
	}
	if !scalar.EqualWithinAbs(f.grid.gyros[0].Command.Yaw, 0.35, 1e-9) {
		t.Fatalf("gyro A=%+v not driven", f.grid.gyros[0].Command)
	}
}

func TestInvoke_NoEngagedGyros(t *testing.T) {
	f := newFixture(t, func(g *fakeGrid) {
		for _, gy := range g.gyros {
			gy.Override = false
		}
	})
	err := f.prog.Invoke(TriggerButton)
	if !errors.Is(err, ErrNoEngagedGyros) {
		t.Fatalf("err=%v want ErrNoEngagedGyros", err)
	}
	if f.prog.State() != StateOff || f.sched.on {
		t.Fatalf("state=%s scheduled=%v", f.prog.State(), f.sched.on)
	}
	if !f.sink.contains(msgNoGyros) {
		t.Fatalf("missing echo: %v", f.sink.lines)
	}
	if f.prog.Snapshot().LastError == "" {
		t.Fatalf("last error not recorded")
	}
}

func TestInvoke_NoUsableControllerTouchesNothing(t *testing.T) {
	f := newFixture(t, func(g *fakeGrid) {
		g.controllers[0].Occupied = false
		g.controllers = append(g.controllers, &sim.Controller{ID: 2, Name: "Seat"})
	})
	err := f.prog.Invoke(TriggerTerminal)
	if !errors.Is(err, ErrNoUsableController) {
		t.Fatalf("err=%v want ErrNoUsableController", err)
	}
	if f.prog.State() != StateOff || f.sched.on {
		t.Fatalf("state=%s scheduled=%v", f.prog.State(), f.sched.on)
	}
	if f.prog.SavedStates() != 0 {
		t.Fatalf("saved=%d want 0", f.prog.SavedStates())
	}
	a, b := f.grid.gyros[0], f.grid.gyros[1]
	if a.Command != savedA || b.Command != savedB || !a.Override || !b.Override {
		t.Fatalf("gyros touched: A=%+v B=%+v", a, b)
	}
	if !f.sink.contains(msgNoMain) || !f.sink.contains(msgNoControllers) {
		t.Fatalf("missing echoes: %v", f.sink.lines)
	}
	if f.sink.contains("Attempting to end") {
		t.Fatalf("failed start ran the stop path: %v", f.sink.lines)
	}
	if f.sched.calls != 1 {
		t.Fatalf("scheduler calls=%d want 1", f.sched.calls)
	}
}

func TestInvoke_FallsBackToOccupiedController(t *testing.T) {
	f := newFixture(t, func(g *fakeGrid) {
		g.controllers[0].Occupied = false
		g.controllers = append(g.controllers, &sim.Controller{
			ID: 2, Name: "Passenger Seat", Occupied: true,
			Gravity: r3.Vector{Y: -1}, Orientation: frame.Identity(), Rotation: block.Axes{Yaw: -0.1},
		})
	})
	if err := f.prog.Invoke(TriggerTerminal); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := f.prog.Snapshot().Controller; got != "Passenger Seat" {
		t.Fatalf("controller=%q want Passenger Seat", got)
	}
	if !f.sink.contains(msgNoMain) {
		t.Fatalf("missing no-main echo")
	}
	if !scalar.EqualWithinAbs(f.grid.gyros[0].Command.Yaw, -0.1, 1e-9) {
		t.Fatalf("yaw=%v want -0.1", f.grid.gyros[0].Command.Yaw)
	}
}

func TestInvoke_PrefersOccupiedMain(t *testing.T) {
	f := newFixture(t, func(g *fakeGrid) {
		seat := &sim.Controller{ID: 2, Name: "Seat", Occupied: true, Gravity: r3.Vector{Y: -1}}
		g.controllers = append([]*sim.Controller{seat}, g.controllers...)
	})
	if err := f.prog.Invoke(TriggerButton); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := f.prog.Snapshot().Controller; got != "Cockpit" {
		t.Fatalf("controller=%q want Cockpit", got)
	}
}

func TestInvoke_TickWhileOffIsOffline(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.prog.Invoke(TriggerUpdate); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !f.sink.contains(msgOffline) {
		t.Fatalf("missing offline echo")
	}
	if f.grid.gyros[0].Command != savedA {
		t.Fatalf("gyro driven while off")
	}
}

func TestInvoke_OtherTriggerDoesNotToggle(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.prog.Invoke(TriggerOther); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if f.prog.State() != StateOff || f.sched.calls != 0 {
		t.Fatalf("state=%s scheduler calls=%d", f.prog.State(), f.sched.calls)
	}
}

func TestInvoke_ManualWhileScheduledStops(t *testing.T) {
	f := newFixture(t, nil)
	f.sched.on = true

	if err := f.prog.Invoke(TriggerButton); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if f.sched.on || f.prog.State() != StateOff {
		t.Fatalf("state=%s scheduled=%v", f.prog.State(), f.sched.on)
	}
	if f.grid.gyros[0].Command != savedA || !f.grid.gyros[0].Override {
		t.Fatalf("gyro touched by stop with nothing engaged")
	}
}

func TestInvoke_DegenerateGravityHolds(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.prog.Invoke(TriggerTerminal); err != nil {
		t.Fatalf("start: %v", err)
	}
	held := f.grid.gyros[0].Command

	f.grid.controllers[0].Gravity = r3.Vector{}
	err := f.prog.Invoke(TriggerUpdate)
	if !errors.Is(err, align.ErrDegenerateGravity) {
		t.Fatalf("err=%v want ErrDegenerateGravity", err)
	}
	if f.prog.State() != StateRunning {
		t.Fatalf("state=%s want running", f.prog.State())
	}
	if f.grid.gyros[0].Command != held {
		t.Fatalf("command=%+v want held %+v", f.grid.gyros[0].Command, held)
	}

	f.grid.controllers[0].Gravity = r3.Vector{Y: -9.81}
	if err := f.prog.Invoke(TriggerUpdate); err != nil {
		t.Fatalf("tick after recovery: %v", err)
	}
	if f.prog.Snapshot().LastError != "" {
		t.Fatalf("last error not cleared")
	}
}

func TestInvoke_TiltedVehicleDrivesMountedGyro(t *testing.T) {
	f := newFixture(t, func(g *fakeGrid) {
		o := frame.FromEuler(0, -0.5, 0)
		g.controllers[0].Orientation = o
		g.controllers[0].Rotation = block.Axes{}
		for _, gy := range g.gyros {
			gy.Mounted(o)
		}
	})
	if err := f.prog.Invoke(TriggerTerminal); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	sol := f.prog.Snapshot().Solution
	if sol == nil || sol.Target.Pitch >= 0 {
		t.Fatalf("solution=%+v want negative pitch for nose-down", sol)
	}

	// Gyro A shares the controller frame; gyro B sees the same command rotated
	// through its mount.
	a, b := f.grid.gyros[0], f.grid.gyros[1]
	if !scalar.EqualWithinAbs(a.Command.Pitch, sol.Target.Pitch, 1e-9) {
		t.Fatalf("gyro A pitch=%v want %v", a.Command.Pitch, sol.Target.Pitch)
	}
	got := b.Command.Vector().Norm()
	want := sol.Target.Vector().Norm()
	if !scalar.EqualWithinAbs(got, want, 1e-9) {
		t.Fatalf("gyro B magnitude=%v want %v", got, want)
	}
}

func TestNew_FiltersConstruct(t *testing.T) {
	grid := &fakeGrid{
		controllers: []*sim.Controller{
			{ID: 1, Name: "Other Ship", Construct: 2, Main: true, Occupied: true, Gravity: r3.Vector{Y: -1}},
			{ID: 2, Name: "Cockpit", Construct: 1, Occupied: true, Gravity: r3.Vector{Y: -1}},
		},
		gyros: []*sim.Gyro{
			{ID: 10, Construct: 1, Override: true},
			{ID: 11, Construct: 2, Override: true},
		},
	}
	p := New(grid, Config{Construct: 1})
	if err := p.Invoke(TriggerButton); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	snap := p.Snapshot()
	if snap.Controller != "Cockpit" || len(snap.Gyros) != 1 || snap.CandidateGyros != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if !grid.gyros[1].Override {
		t.Fatalf("foreign gyro touched")
	}
}

func TestTriggerString(t *testing.T) {
	if got := (TriggerTerminal | TriggerUpdate).String(); got != "Terminal, Update" {
		t.Fatalf("got=%q", got)
	}
	if !TriggerButton.Manual() || TriggerUpdate.Manual() {
		t.Fatalf("Manual() mismatch")
	}
}

func TestStateText(t *testing.T) {
	b, err := StateRunning.MarshalText()
	if err != nil || string(b) != "running" {
		t.Fatalf("got=%q err=%v want running", b, err)
	}
	var s State
	if err := s.UnmarshalText([]byte("off")); err != nil || s != StateOff {
		t.Fatalf("got=%v err=%v want off", s, err)
	}
	if err := s.UnmarshalText([]byte("idle")); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}
