// Package trajectory provides the trajectory generators consumed by the
// manipulation states: straight-line and constant pose generators and
// quintic joint-space splines.
//
// Generators are time-parameterized. Initialize records the start time and
// Compute evaluates the trajectory at an absolute time, so a generator can
// be restarted by re-initializing it.
package trajectory

import (
	"errors"
	"math"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNonPositiveDuration = errors.New("trajectory duration must be positive")
	ErrFrameMismatch       = errors.New("trajectory endpoints are expressed in different frames")
)

// PoseGenerator produces a desired pose over time.
type PoseGenerator interface {
	Initialize(now float64)
	Compute(now float64)
	Pose() frames.Pose
	IsDone() bool
	Frame() *frames.Frame
}

// SmoothStep maps normalized time τ in [0, 1] onto a minimum-jerk profile
// with zero velocity and acceleration at both ends.
func SmoothStep(tau float64) float64 {
	switch {
	case tau <= 0:
		return 0
	case tau >= 1:
		return 1
	}
	t3 := tau * tau * tau
	return t3 * (10 - 15*tau + 6*tau*tau)
}

// Slerp interpolates between two unit quaternions along the shortest arc.
func Slerp(q0, q1 quat.Number, s float64) quat.Number {
	dot := q0.Real*q1.Real + q0.Imag*q1.Imag + q0.Jmag*q1.Jmag + q0.Kmag*q1.Kmag
	if dot < 0 {
		q1 = quat.Scale(-1, q1)
		dot = -dot
	}
	if dot > 0.9995 {
		return frames.Normalize(quat.Add(q0, quat.Scale(s, quat.Sub(q1, q0))))
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	a := math.Sin((1-s)*theta) / sinTheta
	b := math.Sin(s*theta) / sinTheta
	return frames.Normalize(quat.Add(quat.Scale(a, q0), quat.Scale(b, q1)))
}

// StraightLine moves a pose along a straight line in its frame while
// slerping the orientation, both on a minimum-jerk profile.
type StraightLine struct {
	frame    *frames.Frame
	start    frames.Pose
	goal     frames.Pose
	duration float64

	t0      float64
	current frames.Pose
	done    bool
}

var _ PoseGenerator = (*StraightLine)(nil)

// NewStraightLine returns a generator in frame. It holds the frame origin
// until SetEndpoints is called.
func NewStraightLine(frame *frames.Frame) *StraightLine {
	origin := frames.OriginOf(frame)
	return &StraightLine{frame: frame, start: origin, goal: origin, duration: 1, current: origin}
}

// SetEndpoints re-targets the generator. Both poses are re-expressed in the
// generator's frame.
func (g *StraightLine) SetEndpoints(start, goal frames.Pose, duration float64) error {
	if duration <= 0 || math.IsNaN(duration) {
		return ErrNonPositiveDuration
	}
	g.start = start.ChangeFrame(g.frame)
	g.goal = goal.ChangeFrame(g.frame)
	g.duration = duration
	return nil
}

func (g *StraightLine) Initialize(now float64) {
	g.t0 = now
	g.current = g.start
	g.done = false
}

func (g *StraightLine) Compute(now float64) {
	tau := (now - g.t0) / g.duration
	s := SmoothStep(tau)
	g.current = frames.Pose{
		Frame:       g.frame,
		Position:    r3.Add(g.start.Position, r3.Scale(s, r3.Sub(g.goal.Position, g.start.Position))),
		Orientation: Slerp(g.start.Orientation, g.goal.Orientation, s),
	}
	g.done = tau >= 1
}

func (g *StraightLine) Pose() frames.Pose {
	return g.current
}

func (g *StraightLine) IsDone() bool {
	return g.done
}

func (g *StraightLine) Frame() *frames.Frame {
	return g.frame
}

func (g *StraightLine) Goal() frames.Pose {
	return g.goal
}

func (g *StraightLine) Duration() float64 {
	return g.duration
}

// Constant holds a single pose forever. It is done as soon as it starts.
type Constant struct {
	frame *frames.Frame
	pose  frames.Pose
}

var _ PoseGenerator = (*Constant)(nil)

func NewConstant(frame *frames.Frame) *Constant {
	return &Constant{frame: frame, pose: frames.OriginOf(frame)}
}

// Set re-expresses pose in the generator's frame and holds it.
func (g *Constant) Set(pose frames.Pose) {
	g.pose = pose.ChangeFrame(g.frame)
}

func (g *Constant) Initialize(float64) {}

func (g *Constant) Compute(float64) {}

func (g *Constant) Pose() frames.Pose {
	return g.pose
}

func (g *Constant) IsDone() bool {
	return true
}

func (g *Constant) Frame() *frames.Frame {
	return g.frame
}

// PositionOnly wraps a generator and replaces its orientation with a fixed
// one.
type PositionOnly struct {
	PoseGenerator
	hold quat.Number
}

func NewPositionOnly(inner PoseGenerator, hold quat.Number) *PositionOnly {
	return &PositionOnly{PoseGenerator: inner, hold: frames.Normalize(hold)}
}

func (g *PositionOnly) Pose() frames.Pose {
	p := g.PoseGenerator.Pose()
	p.Orientation = g.hold
	return p
}
