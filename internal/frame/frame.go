// Package frame holds the vector and orientation-matrix helpers shared by the
// solver and the distributor.
//
// Orientation matrices are 3x3 and row-major: row 0 is the block's Right axis,
// row 1 its Up axis and row 2 its Backward axis, each expressed in world
// coordinates. Vectors are treated as row vectors, so transforming v by m
// yields v·m.
package frame

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

var ErrZeroVector = errors.New("frame: zero-length vector")

// Identity returns the world-aligned orientation.
func Identity() *mat.Dense {
	return FromAxes(r3.Vector{X: 1}, r3.Vector{Y: 1}, r3.Vector{Z: 1})
}

// FromAxes builds an orientation from its Right, Up and Backward axes.
func FromAxes(right, up, backward r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		right.X, right.Y, right.Z,
		up.X, up.Y, up.Z,
		backward.X, backward.Y, backward.Z,
	})
}

// FromEuler builds an orientation from yaw (about world Up), pitch (about the
// Right axis, positive raises the nose) and roll (about the Backward axis), in
// radians, applied in yaw-pitch-roll order.
func FromEuler(yaw, pitch, roll float64) *mat.Dense {
	sy, cy := math.Sincos(yaw)
	sp, cp := math.Sincos(pitch)
	sr, cr := math.Sincos(roll)

	ry := mat.NewDense(3, 3, []float64{
		cy, 0, sy,
		0, 1, 0,
		-sy, 0, cy,
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cp, -sp,
		0, sp, cp,
	})
	rz := mat.NewDense(3, 3, []float64{
		cr, -sr, 0,
		sr, cr, 0,
		0, 0, 1,
	})

	var yp, r mat.Dense
	yp.Mul(ry, rx)
	r.Mul(&yp, rz)

	// Columns of r are the rotated basis vectors; orientation rows are axes.
	var o mat.Dense
	o.CloneFrom(r.T())
	return &o
}

// Row returns row i of m as a vector.
func Row(m mat.Matrix, i int) r3.Vector {
	return r3.Vector{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)}
}

// Down is the negated Up row.
func Down(m mat.Matrix) r3.Vector { return Row(m, 1).Mul(-1) }

// Normalize returns v scaled to unit length.
func Normalize(v r3.Vector) (r3.Vector, error) {
	n := v.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vector{}, ErrZeroVector
	}
	return v.Mul(1 / n), nil
}

// Transpose returns the transpose of m. For an orthonormal orientation this is
// its inverse.
func Transpose(m mat.Matrix) mat.Matrix {
	return m.T()
}

// Multiply returns a·b.
func Multiply(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

// TransformNormal rotates the direction v by m, treating v as a row vector.
// Translation is never involved; m must be 3x3.
func TransformNormal(v r3.Vector, m mat.Matrix) r3.Vector {
	var out mat.VecDense
	out.MulVec(m.T(), mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
