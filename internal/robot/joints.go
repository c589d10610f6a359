package robot

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrUnknownJoint = errors.New("unknown joint")
	ErrJointLimits  = errors.New("joint lower limit exceeds upper limit")
)

// Joint is the measured and desired state of one actuated joint.
type Joint struct {
	Name    string
	Q       float64
	QD      float64
	Desired float64
	Min     float64
	Max     float64
}

// Clamp limits q to the joint range.
func (j *Joint) Clamp(q float64) float64 {
	return math.Min(math.Max(q, j.Min), j.Max)
}

// JointState holds every joint of the robot by name.
type JointState struct {
	names  []string
	joints map[string]*Joint
}

func NewJointState() *JointState {
	return &JointState{joints: make(map[string]*Joint)}
}

// Add registers a joint at position q.
func (s *JointState) Add(name string, q, lower, upper float64) error {
	if lower > upper {
		return fmt.Errorf("%w: %s [%g, %g]", ErrJointLimits, name, lower, upper)
	}
	if _, ok := s.joints[name]; ok {
		return fmt.Errorf("joint %s already registered", name)
	}
	s.joints[name] = &Joint{Name: name, Q: q, Desired: q, Min: lower, Max: upper}
	s.names = append(s.names, name)
	slices.Sort(s.names)
	return nil
}

// Get returns the joint called name.
func (s *JointState) Get(name string) (*Joint, error) {
	j, ok := s.joints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJoint, name)
	}
	return j, nil
}

// Names returns the joint names in sorted order.
func (s *JointState) Names() []string {
	return s.names
}

// Positions copies the measured positions of names into out. With no names
// every joint is copied.
func (s *JointState) Positions(out map[string]float64, names ...string) {
	if len(names) == 0 {
		names = s.names
	}
	for _, n := range names {
		if j, ok := s.joints[n]; ok {
			out[n] = j.Q
		}
	}
}

// SetDesired records the commanded position of a joint, clamped to its
// range. Unknown joints are ignored.
func (s *JointState) SetDesired(name string, q float64) {
	if j, ok := s.joints[name]; ok {
		j.Desired = j.Clamp(q)
	}
}

// SetDesiredFrom applies every entry of desired.
func (s *JointState) SetDesiredFrom(desired map[string]float64) {
	for n, q := range desired {
		s.SetDesired(n, q)
	}
}

// Measure overwrites the measured positions, typically from hardware.
func (s *JointState) Measure(positions map[string]float64) {
	for n, q := range positions {
		if j, ok := s.joints[n]; ok {
			j.QD = 0
			j.Q = q
		}
	}
}

// Desired copies every commanded position into out.
func (s *JointState) Desired(out map[string]float64) {
	for _, n := range s.names {
		out[n] = s.joints[n].Desired
	}
}

// Track moves each measured position toward its desired value with a first
// order lag of time constant tau.
func (s *JointState) Track(dt, tau float64) {
	alpha := 1.0
	if tau > 0 {
		alpha = 1 - math.Exp(-dt/tau)
	}
	for _, n := range s.names {
		j := s.joints[n]
		prev := j.Q
		j.Q += alpha * (j.Desired - j.Q)
		if dt > 0 {
			j.QD = (j.Q - prev) / dt
		}
	}
}
