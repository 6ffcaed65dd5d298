package sim

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
)

// Controller is an in-memory block.Controller.
type Controller struct {
	ID        int64
	Name      string
	Construct int64
	Main      bool
	Occupied  bool

	Gravity     r3.Vector
	Orientation *mat.Dense
	Rotation    block.Axes
}

func (c *Controller) EntityID() int64            { return c.ID }
func (c *Controller) CustomName() string         { return c.Name }
func (c *Controller) ConstructID() int64         { return c.Construct }
func (c *Controller) TotalGravity() r3.Vector    { return c.Gravity }
func (c *Controller) ManualRotation() block.Axes { return c.Rotation }
func (c *Controller) IsMainCockpit() bool        { return c.Main }
func (c *Controller) IsUnderControl() bool       { return c.Occupied }

func (c *Controller) WorldOrientation() mat.Matrix {
	if c.Orientation == nil {
		return frame.Identity()
	}
	return c.Orientation
}

func (c *Controller) Down() r3.Vector {
	return frame.Down(c.WorldOrientation())
}

// Gyro is an in-memory block.Gyro.
//
// Mount is the gyro's orientation relative to the vehicle; when a Grid drives
// the vehicle, Orientation is recomputed as Mount·vehicle.
type Gyro struct {
	ID        int64
	Name      string
	Construct int64

	Override bool
	Command  block.Axes

	Mount       *mat.Dense
	Orientation *mat.Dense
}

func (g *Gyro) EntityID() int64         { return g.ID }
func (g *Gyro) CustomName() string      { return g.Name }
func (g *Gyro) ConstructID() int64      { return g.Construct }
func (g *Gyro) GyroOverride() bool      { return g.Override }
func (g *Gyro) SetGyroOverride(on bool) { g.Override = on }
func (g *Gyro) Axes() block.Axes        { return g.Command }
func (g *Gyro) SetAxes(a block.Axes)    { g.Command = a }

func (g *Gyro) WorldOrientation() mat.Matrix {
	if g.Orientation == nil {
		return frame.Identity()
	}
	return g.Orientation
}

// Mounted places g on a vehicle with the given world orientation.
func (g *Gyro) Mounted(vehicle mat.Matrix) {
	if g.Mount == nil {
		var o mat.Dense
		o.CloneFrom(vehicle)
		g.Orientation = &o
		return
	}
	g.Orientation = frame.Multiply(g.Mount, vehicle)
}

var (
	_ block.Controller = (*Controller)(nil)
	_ block.Gyro       = (*Gyro)(nil)
)
