// Package block describes the host-owned objects the leveler reads and drives.
//
// Nothing in this package owns state; implementations live with the host
// (see internal/sim for the simulated construct).
package block

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Axes is a pitch/yaw/roll triple. On a gyro it is the override command; on a
// controller it is the operator's rotation input.
type Axes struct {
	Pitch float64 `json:"pitch" yaml:"pitch"`
	Yaw   float64 `json:"yaw" yaml:"yaw"`
	Roll  float64 `json:"roll" yaml:"roll"`
}

// Vector packs the axes as (pitch, yaw, roll) on (X, Y, Z).
func (a Axes) Vector() r3.Vector {
	return r3.Vector{X: a.Pitch, Y: a.Yaw, Z: a.Roll}
}

// AxesFromVector is the inverse of Axes.Vector.
func AxesFromVector(v r3.Vector) Axes {
	return Axes{Pitch: v.X, Yaw: v.Y, Roll: v.Z}
}

// Block is the identity every terminal block exposes.
//
// EntityID must be stable for the lifetime of the block; it is the key the
// override store uses.
type Block interface {
	EntityID() int64
	CustomName() string
	ConstructID() int64
}

// Controller is a cockpit, seat or remote control: the reference frame and
// gravity source for the whole construct.
type Controller interface {
	Block
	// TotalGravity is the world-frame gravity at the controller, not normalized.
	TotalGravity() r3.Vector
	// WorldOrientation rows are Right, Up, Backward in world coordinates.
	WorldOrientation() mat.Matrix
	// Down is the controller's local down axis in world coordinates.
	Down() r3.Vector
	// ManualRotation is the operator's current rotation input.
	ManualRotation() Axes
	IsMainCockpit() bool
	IsUnderControl() bool
}

// Gyro is a torque actuator with its own mounting orientation.
type Gyro interface {
	Block
	WorldOrientation() mat.Matrix
	GyroOverride() bool
	SetGyroOverride(on bool)
	Axes() Axes
	SetAxes(a Axes)
}

// Grid enumerates the blocks reachable from the program block.
type Grid interface {
	Controllers() []Controller
	Gyros() []Gyro
}
