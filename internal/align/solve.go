// Package align computes the per-tick gravity-alignment target.
//
// The correction is first-order: gravity and the controller's down axis are
// both unit vectors, so their difference stands in for the rotation between
// them while the vehicle stays near level.
package align

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
)

var ErrDegenerateGravity = errors.New("align: gravity has zero magnitude")

// Solution is one tick's alignment result plus the intermediate vectors that
// produced it.
type Solution struct {
	Gravity    r3.Vector `json:"gravity"`
	Down       r3.Vector `json:"down"`
	WorldDelta r3.Vector `json:"world_delta"`
	LocalDelta r3.Vector `json:"local_delta"`

	// Target is expressed in the controller's local frame.
	Target block.Axes `json:"target"`
}

// Solve computes the alignment target for c.
func Solve(c block.Controller) (Solution, error) {
	grav, err := frame.Normalize(c.TotalGravity())
	if err != nil {
		return Solution{}, fmt.Errorf("%w: %v", ErrDegenerateGravity, c.TotalGravity())
	}
	down := c.Down()

	world := grav.Sub(down)
	local := frame.TransformNormal(world, frame.Transpose(c.WorldOrientation()))

	return Solution{
		Gravity:    grav,
		Down:       down,
		WorldDelta: world,
		LocalDelta: local,
		Target:     Remap(local, c.ManualRotation().Yaw),
	}, nil
}

// Remap turns a controller-local misalignment into pitch/yaw/roll commands.
//
// Pitch follows the Backward (Z) component and roll the negated Up (Y)
// component. Yaw is never gravity-derived: it passes the operator's yaw
// through so steering stays with the pilot.
func Remap(local r3.Vector, manualYaw float64) block.Axes {
	return block.Axes{
		Pitch: local.Z,
		Yaw:   manualYaw,
		Roll:  -local.Y,
	}
}
