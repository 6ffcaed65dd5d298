// Package actuation maps a controller-frame target onto individual gyros.
//
// Gyros are mounted independently, so every gyro gets its own transform on
// every tick.
package actuation

import (
	"gonum.org/v1/gonum/mat"

	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
)

// Compose returns the rotation taking controller-local vectors to
// gyro-local vectors: vehicle·gyroᵀ.
func Compose(vehicle, gyro mat.Matrix) *mat.Dense {
	return frame.Multiply(vehicle, frame.Transpose(gyro))
}

// Distribute expresses target in the gyro's frame.
func Distribute(target block.Axes, vehicle, gyro mat.Matrix) block.Axes {
	return block.AxesFromVector(frame.TransformNormal(target.Vector(), Compose(vehicle, gyro)))
}

// Apply writes the gyro-frame command for target onto g and returns it.
func Apply(target block.Axes, vehicle mat.Matrix, g block.Gyro) block.Axes {
	cmd := Distribute(target, vehicle, g.WorldOrientation())
	g.SetAxes(cmd)
	return cmd
}
