package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"gravitylevel/internal/block"
	"gravitylevel/internal/frame"
)

// ScenarioScript is a deterministic, script-driven construct description.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	construct: 1
//	gravity: {x: 0, y: -9.81, z: 0}
//	vehicle:
//	  keyframes:
//	    - t: 0s
//	      yaw_deg: 0
//	      pitch_deg: -10
//	      roll_deg: 5
//	      gravity_scale: 1
//	controllers:
//	  - id: 1
//	    name: "Cockpit"
//	    main: true
//	    occupied: true
//	    rotation: {pitch: 0, yaw: 0.25, roll: 0}
//	gyros:
//	  - id: 10
//	    name: "Gyroscope"
//	    override: true
//	    command: {pitch: 0, yaw: 0, roll: 0}
//	    mount: {yaw_deg: 90}
//
// Keyframes must be sorted by t. A block with construct 0 inherits the
// scenario's construct.
type ScenarioScript struct {
	Version     int                  `yaml:"version"`
	Duration    time.Duration        `yaml:"duration"`
	Construct   int64                `yaml:"construct"`
	Gravity     *VectorSpec          `yaml:"gravity"`
	Vehicle     ScenarioVehicle      `yaml:"vehicle"`
	Controllers []ScenarioController `yaml:"controllers"`
	Gyros       []ScenarioGyro       `yaml:"gyros"`
}

type VectorSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type ScenarioVehicle struct {
	Keyframes []VehicleKeyframe `yaml:"keyframes"`
}

// VehicleKeyframe is a time-stamped vehicle attitude. GravityScale multiplies
// the scenario gravity; nil means 1.
type VehicleKeyframe struct {
	T            time.Duration `yaml:"t"`
	YawDeg       float64       `yaml:"yaw_deg"`
	PitchDeg     float64       `yaml:"pitch_deg"`
	RollDeg      float64       `yaml:"roll_deg"`
	GravityScale *float64      `yaml:"gravity_scale"`
}

type ScenarioController struct {
	ID        int64      `yaml:"id"`
	Name      string     `yaml:"name"`
	Construct int64      `yaml:"construct"`
	Main      bool       `yaml:"main"`
	Occupied  bool       `yaml:"occupied"`
	Rotation  block.Axes `yaml:"rotation"`
}

type ScenarioGyro struct {
	ID        int64      `yaml:"id"`
	Name      string     `yaml:"name"`
	Construct int64      `yaml:"construct"`
	Override  bool       `yaml:"override"`
	Command   block.Axes `yaml:"command"`
	Mount     MountSpec  `yaml:"mount"`
}

// MountSpec orients a gyro relative to the vehicle, in degrees.
type MountSpec struct {
	YawDeg   float64 `yaml:"yaw_deg"`
	PitchDeg float64 `yaml:"pitch_deg"`
	RollDeg  float64 `yaml:"roll_deg"`
}

// Scenario is the validated, runtime representation.
type Scenario struct {
	script   ScenarioScript
	gravity  r3.Vector
	duration time.Duration
}

// VehicleState is the computed vehicle pose at a time.
type VehicleState struct {
	Orientation *mat.Dense
	Gravity     r3.Vector
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if len(script.Vehicle.Keyframes) == 0 {
		return nil, fmt.Errorf("vehicle.keyframes is required")
	}
	kfs := script.Vehicle.Keyframes
	for i := range kfs {
		if kfs[i].T < 0 {
			return nil, fmt.Errorf("vehicle.keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return nil, fmt.Errorf("vehicle.keyframes must be sorted by t (index %d)", i)
		}
	}

	ids := make(map[int64]string)
	for i, c := range script.Controllers {
		if c.ID == 0 {
			return nil, fmt.Errorf("controllers[%d].id is required", i)
		}
		if prev, ok := ids[c.ID]; ok {
			return nil, fmt.Errorf("controllers[%d].id %d already used by %s", i, c.ID, prev)
		}
		ids[c.ID] = fmt.Sprintf("controllers[%d]", i)
	}
	for i, g := range script.Gyros {
		if g.ID == 0 {
			return nil, fmt.Errorf("gyros[%d].id is required", i)
		}
		if prev, ok := ids[g.ID]; ok {
			return nil, fmt.Errorf("gyros[%d].id %d already used by %s", i, g.ID, prev)
		}
		ids[g.ID] = fmt.Sprintf("gyros[%d]", i)
	}

	gravity := r3.Vector{Y: -9.81}
	if script.Gravity != nil {
		gravity = r3.Vector{X: script.Gravity.X, Y: script.Gravity.Y, Z: script.Gravity.Z}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = kfs[len(kfs)-1].T
	}
	return &Scenario{script: script, gravity: gravity, duration: dur}, nil
}

// Duration returns the effective scenario duration. A single-keyframe
// scenario has zero duration and holds its pose forever.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// VehicleAt computes the vehicle pose at elapsed.
//
// If loop is true, elapsed wraps around Duration(). Otherwise elapsed is clamped
// to [0, Duration()].
func (s *Scenario) VehicleAt(elapsed time.Duration, loop bool) VehicleState {
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}

	k0, k1, alpha := selectSegment(s.script.Vehicle.Keyframes, elapsed)
	yaw := lerpAngleDeg(k0.YawDeg, k1.YawDeg, alpha)
	pitch := lerp(k0.PitchDeg, k1.PitchDeg, alpha)
	roll := lerp(k0.RollDeg, k1.RollDeg, alpha)
	scale := lerp(gravityScale(k0), gravityScale(k1), alpha)

	return VehicleState{
		Orientation: frame.FromEuler(rad(yaw), rad(pitch), rad(roll)),
		Gravity:     s.gravity.Mul(scale),
	}
}

func gravityScale(k VehicleKeyframe) float64 {
	if k.GravityScale == nil {
		return 1
	}
	return *k.GravityScale
}

func selectSegment(kfs []VehicleKeyframe, t time.Duration) (VehicleKeyframe, VehicleKeyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	// Shortest-path interpolation across wraparound, result in [0, 360).
	a0 = math.Mod(math.Mod(a0, 360)+360, 360)
	a1 = math.Mod(math.Mod(a1, 360)+360, 360)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return math.Mod(a0+delta*t+360, 360)
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}
