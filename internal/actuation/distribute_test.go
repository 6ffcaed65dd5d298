package actuation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
	"gravitylevel/internal/sim"
)

const tol = 1e-9

func deg(d float64) float64 { return d * math.Pi / 180 }

func requireAxes(t *testing.T, got, want block.Axes) {
	t.Helper()
	if !scalar.EqualWithinAbs(got.Pitch, want.Pitch, tol) ||
		!scalar.EqualWithinAbs(got.Yaw, want.Yaw, tol) ||
		!scalar.EqualWithinAbs(got.Roll, want.Roll, tol) {
		t.Fatalf("got=%+v want %+v", got, want)
	}
}

func TestDistribute_CoAlignedIsIdentity(t *testing.T) {
	target := block.Axes{Pitch: 0.3, Yaw: -0.2, Roll: 0.1}
	for _, a := range [][3]float64{{0, 0, 0}, {30, -15, 60}, {-170, 80, -5}} {
		o := frame.FromEuler(deg(a[0]), deg(a[1]), deg(a[2]))
		requireAxes(t, Distribute(target, o, o), target)
	}
}

func TestDistribute_DependsOnlyOnRelativeMount(t *testing.T) {
	target := block.Axes{Pitch: 0.3, Yaw: -0.2, Roll: 0.1}
	mount := frame.FromEuler(deg(90), 0, 0)

	level := frame.Identity()
	tilted := frame.FromEuler(deg(40), deg(-25), deg(12))

	a := Distribute(target, level, frame.Multiply(mount, level))
	b := Distribute(target, tilted, frame.Multiply(mount, tilted))
	requireAxes(t, a, b)
}

func TestDistribute_QuarterTurnAboutUp(t *testing.T) {
	// A gyro yawed 90 degrees on the vehicle sees the vehicle's pitch axis as
	// its roll axis; yaw is shared.
	vehicle := frame.Identity()
	gyro := frame.Multiply(frame.FromEuler(deg(90), 0, 0), vehicle)

	got := Distribute(block.Axes{Pitch: 1, Yaw: 0.5}, vehicle, gyro)
	requireAxes(t, got, block.Axes{Pitch: 0, Yaw: 0.5, Roll: 1})
}

func TestApply_WritesGyro(t *testing.T) {
	vehicle := frame.FromEuler(deg(15), 0, 0)
	g := &sim.Gyro{ID: 1, Override: true}
	g.Mounted(vehicle)

	target := block.Axes{Pitch: -0.4, Yaw: 0.2, Roll: 0.05}
	cmd := Apply(target, vehicle, g)
	requireAxes(t, cmd, target)
	requireAxes(t, g.Command, target)
}
