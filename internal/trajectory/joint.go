package trajectory

import (
	"fmt"
	"math"
	"slices"
)

// Quintic is a fifth-order polynomial from q0 to qf over duration with zero
// velocity and acceleration at both ends.
type Quintic struct {
	q0, qf   float64
	duration float64

	t0    float64
	q, qd float64
	done  bool
}

// NewQuintic returns a quintic spline. A non-positive duration yields a step
// to qf.
func NewQuintic(q0, qf, duration float64) *Quintic {
	return &Quintic{q0: q0, qf: qf, duration: duration, q: q0}
}

func (j *Quintic) Initialize(now float64) {
	j.t0 = now
	j.q, j.qd = j.q0, 0
	j.done = false
}

func (j *Quintic) Compute(now float64) {
	if j.duration <= 0 {
		j.q, j.qd, j.done = j.qf, 0, true
		return
	}
	tau := (now - j.t0) / j.duration
	if tau >= 1 {
		j.q, j.qd, j.done = j.qf, 0, true
		return
	}
	if tau < 0 {
		tau = 0
	}
	delta := j.qf - j.q0
	j.q = j.q0 + delta*SmoothStep(tau)
	// d/dt of 10τ³-15τ⁴+6τ⁵
	j.qd = delta * 30 * tau * tau * (1 - 2*tau + tau*tau) / j.duration
	j.done = false
}

func (j *Quintic) Position() float64 { return j.q }
func (j *Quintic) Velocity() float64 { return j.qd }
func (j *Quintic) IsDone() bool      { return j.done }
func (j *Quintic) Goal() float64     { return j.qf }

// JointSet drives several named joints together.
type JointSet struct {
	names   []string
	splines map[string]*Quintic
}

// NewJointSet builds one spline per joint from start to goal. Every joint
// in goal must have a start value.
func NewJointSet(start, goal map[string]float64, duration float64) (*JointSet, error) {
	set := &JointSet{splines: make(map[string]*Quintic, len(goal))}
	for name, qf := range goal {
		q0, ok := start[name]
		if !ok {
			return nil, fmt.Errorf("no start position for joint %s", name)
		}
		if math.IsNaN(qf) {
			return nil, fmt.Errorf("goal for joint %s is NaN", name)
		}
		set.splines[name] = NewQuintic(q0, qf, duration)
		set.names = append(set.names, name)
	}
	slices.Sort(set.names)
	return set, nil
}

// Hold returns a set that keeps every joint at its current position.
func Hold(current map[string]float64) *JointSet {
	set, _ := NewJointSet(current, current, 0)
	return set
}

func (s *JointSet) Initialize(now float64) {
	for _, sp := range s.splines {
		sp.Initialize(now)
	}
}

func (s *JointSet) Compute(now float64) {
	for _, sp := range s.splines {
		sp.Compute(now)
	}
}

// IsDone reports whether every spline reached its goal.
func (s *JointSet) IsDone() bool {
	for _, sp := range s.splines {
		if !sp.IsDone() {
			return false
		}
	}
	return true
}

// Names returns the joint names in sorted order.
func (s *JointSet) Names() []string {
	return s.names
}

// Desired writes the current desired position of every joint into out.
func (s *JointSet) Desired(out map[string]float64) {
	for name, sp := range s.splines {
		out[name] = sp.Position()
	}
}

// Spline returns the spline of one joint.
func (s *JointSet) Spline(name string) (*Quintic, bool) {
	sp, ok := s.splines[name]
	return sp, ok
}
