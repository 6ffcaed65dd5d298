package sim

import (
	"time"

	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
)

// Grid is a simulated construct driven by a Scenario. It implements
// block.Grid; Advance moves the world forward before the host invokes the
// program.
//
// Not safe for concurrent use; the host calls it from its invocation loop.
type Grid struct {
	scn  *Scenario
	loop bool

	controllers []*Controller
	gyros       []*Gyro
}

// NewGrid builds the blocks described by scn and places them at t=0.
func NewGrid(scn *Scenario, loop bool) *Grid {
	g := &Grid{scn: scn, loop: loop}
	construct := scn.script.Construct
	inherit := func(c int64) int64 {
		if c == 0 {
			return construct
		}
		return c
	}

	for _, c := range scn.script.Controllers {
		g.controllers = append(g.controllers, &Controller{
			ID:        c.ID,
			Name:      c.Name,
			Construct: inherit(c.Construct),
			Main:      c.Main,
			Occupied:  c.Occupied,
			Rotation:  c.Rotation,
		})
	}
	for _, sg := range scn.script.Gyros {
		gy := &Gyro{
			ID:        sg.ID,
			Name:      sg.Name,
			Construct: inherit(sg.Construct),
			Override:  sg.Override,
			Command:   sg.Command,
		}
		if sg.Mount != (MountSpec{}) {
			gy.Mount = frame.FromEuler(rad(sg.Mount.YawDeg), rad(sg.Mount.PitchDeg), rad(sg.Mount.RollDeg))
		}
		g.gyros = append(g.gyros, gy)
	}

	g.Advance(0)
	return g
}

// Advance poses every block at elapsed scenario time.
func (g *Grid) Advance(elapsed time.Duration) {
	st := g.scn.VehicleAt(elapsed, g.loop)
	for _, c := range g.controllers {
		c.Orientation = st.Orientation
		c.Gravity = st.Gravity
	}
	for _, gy := range g.gyros {
		gy.Mounted(st.Orientation)
	}
}

func (g *Grid) Controllers() []block.Controller {
	out := make([]block.Controller, 0, len(g.controllers))
	for _, c := range g.controllers {
		out = append(out, c)
	}
	return out
}

func (g *Grid) Gyros() []block.Gyro {
	out := make([]block.Gyro, 0, len(g.gyros))
	for _, gy := range g.gyros {
		out = append(out, gy)
	}
	return out
}

var _ block.Grid = (*Grid)(nil)
