package locomotion

import (
	"fmt"
	"math"

	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/atlanticdynamic/modectl/internal/trajectory"
	"github.com/atlanticdynamic/modectl/internal/wbc"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ statemachine.State = (*jointInitState)(nil)
	_ statemachine.State = (*postureState)(nil)
	_ statemachine.State = (*freezeState)(nil)
	_ statemachine.State = (*standState)(nil)
	_ statemachine.State = (*stepState)(nil)
	_ statemachine.State = (*soleWaypointState)(nil)
)

// contactReporter is implemented by states that decide which feet are on
// the ground.
type contactReporter interface {
	inContact(q timing.Quadrant) bool
}

// shared is what every locomotion state reads during a tick.
type shared struct {
	env      robot.Environment
	core     wbc.Core
	settings *Settings
	// previous is what the core achieved on the last tick.
	previous *wbc.Output
}

func (c *shared) weight() float64 {
	return c.settings.Mass * c.settings.Gravity
}

// support submits a contact force carrying an equal share of the weight for
// every foot in contact.
func (c *shared) support(inContact func(timing.Quadrant) bool) int {
	n := 0
	for _, q := range timing.Quadrants {
		if inContact(q) {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	share := r3.Vec{Z: c.weight() / float64(n)}
	for _, q := range timing.Quadrants {
		if inContact(q) {
			c.core.Submit(wbc.ContactForce{Quadrant: q, Force: share})
		}
	}
	return n
}

func (c *shared) footFeedback(q timing.Quadrant, p r3.Vec) {
	c.core.Submit(wbc.FootFeedback{Quadrant: q, Position: p, Gain: c.settings.Gains.Foot})
}

// jointInitState holds the measured joint positions and is done at once.
type jointInitState struct {
	*shared
	scratch map[string]float64
}

func (s *jointInitState) OnEntry() {
	clear(s.scratch)
	s.env.Joints().Positions(s.scratch)
	s.env.Joints().SetDesiredFrom(s.scratch)
}

func (s *jointInitState) Process() (statemachine.Event, error) {
	return statemachine.EventDone, nil
}

func (s *jointInitState) OnExit() {}

// postureState interpolates every joint of a posture from where it was on
// entry, and is done when the posture is reached. Stand prep and fall use
// it with different postures.
type postureState struct {
	*shared
	posture  map[string]float64
	duration float64

	set     *trajectory.JointSet
	err     error
	scratch map[string]float64
}

func newPostureState(c *shared, posture map[string]float64, duration float64) *postureState {
	return &postureState{
		shared:   c,
		posture:  posture,
		duration: duration,
		scratch:  make(map[string]float64, len(posture)),
	}
}

func (s *postureState) OnEntry() {
	clear(s.scratch)
	for name := range s.posture {
		s.env.Joints().Positions(s.scratch, name)
	}
	s.set, s.err = trajectory.NewJointSet(s.scratch, s.posture, s.duration)
	if s.err == nil {
		s.set.Initialize(s.env.Timestamp())
	}
}

func (s *postureState) Process() (statemachine.Event, error) {
	if s.err != nil {
		return statemachine.EventNone, s.err
	}
	s.set.Compute(s.env.Timestamp())
	clear(s.scratch)
	s.set.Desired(s.scratch)
	s.env.Joints().SetDesiredFrom(s.scratch)
	for _, name := range s.set.Names() {
		sp, _ := s.set.Spline(name)
		s.core.Submit(wbc.JointFeedback{
			Joint:     name,
			Position:  sp.Position(),
			Velocity:  sp.Velocity(),
			Stiffness: s.settings.Gains.JointStiffness,
			Damping:   s.settings.Gains.JointDamping,
		})
	}
	if s.set.IsDone() {
		return statemachine.EventDone, nil
	}
	return statemachine.EventNone, nil
}

func (s *postureState) OnExit() {}

// freezeState holds every foot where it was on entry and never completes.
// It backs both STAND_READY and FREEZE.
type freezeState struct {
	*shared
	soles [len(timing.Quadrants)]r3.Vec
}

func (s *freezeState) OnEntry() {
	for _, q := range timing.Quadrants {
		s.soles[q] = s.env.SolePosition(q)
	}
}

func (s *freezeState) Process() (statemachine.Event, error) {
	for _, q := range timing.Quadrants {
		s.footFeedback(q, s.soles[q])
	}
	s.support(s.inContact)
	return statemachine.EventNone, nil
}

func (s *freezeState) OnExit() {}

func (s *freezeState) inContact(timing.Quadrant) bool {
	return true
}

// standState balances on the feet the switches report in contact and fails
// when too few remain.
type standState struct {
	*shared
}

func (s *standState) OnEntry() {}

func (s *standState) Process() (statemachine.Event, error) {
	n := s.support(func(q timing.Quadrant) bool { return s.env.FootSwitch(q).InContact() })
	s.core.Submit(wbc.MomentumRate{})
	if n < s.settings.MinimumSupport {
		return statemachine.EventFail, nil
	}
	return statemachine.EventNone, nil
}

func (s *standState) OnExit() {}

func (s *standState) inContact(timing.Quadrant) bool {
	return true
}

// stepState follows the steps of the active stream. It backs both STEP and
// XGAIT; the stream behind it is chosen by the transition callbacks. It is
// done when the stream runs dry and fails when the core could not keep the
// momentum rate within tolerance.
type stepState struct {
	*shared
	steps stream.Stream

	swinging [len(timing.Quadrants)]bool
	liftoff  [len(timing.Quadrants)]r3.Vec
}

func (s *stepState) OnEntry() {
	s.swinging = [len(timing.Quadrants)]bool{}
	s.steps.OnEntry(s.env.Timestamp())
}

func (s *stepState) Process() (statemachine.Event, error) {
	now := s.env.Timestamp()
	s.steps.Process(now)

	if rate := r3.Norm(s.previous.LinearMomentumRate); rate > s.settings.MomentumTolerance {
		return statemachine.EventFail, nil
	}

	planned := s.steps.Steps()
	if len(planned) == 0 {
		return statemachine.EventDone, nil
	}

	var swing [len(timing.Quadrants)]*timing.TimedStep
	for i := range planned {
		step := &planned[i]
		if !step.Quadrant.Valid() || !step.InSwing(now) {
			continue
		}
		if swing[step.Quadrant] == nil {
			swing[step.Quadrant] = step
		}
	}

	for _, q := range timing.Quadrants {
		step := swing[q]
		if step == nil {
			s.swinging[q] = false
			continue
		}
		if !s.swinging[q] {
			s.swinging[q] = true
			s.liftoff[q] = s.env.SolePosition(q)
		}
		target, err := swingPosition(s.liftoff[q], step, now)
		if err != nil {
			return statemachine.EventNone, err
		}
		s.footFeedback(q, target)
	}
	s.support(s.inContact)
	return statemachine.EventNone, nil
}

func (s *stepState) OnExit() {
	s.steps.OnExit()
}

func (s *stepState) inContact(q timing.Quadrant) bool {
	return !s.swinging[q]
}

// swingPosition moves the foot from start to the step goal along a straight
// line lifted by a half sine of height GroundClearance.
func swingPosition(start r3.Vec, step *timing.TimedStep, now float64) (r3.Vec, error) {
	d := step.Interval.Duration()
	if d <= 0 {
		return step.Goal, nil
	}
	s := math.Min(math.Max((now-step.Interval.Start)/d, 0), 1)
	p := r3.Add(start, r3.Scale(s, r3.Sub(step.Goal, start)))
	p.Z += step.GroundClearance * math.Sin(math.Pi*s)
	if !finite(p.X, p.Y, p.Z) {
		return r3.Vec{}, fmt.Errorf("step %d of %s has no finite swing position", step.SequenceID, step.Quadrant)
	}
	return p, nil
}

// soleWaypointState moves the feet through a waypoint plan loaded before
// entry. It fails at once without a plan.
type soleWaypointState struct {
	*shared
	loaded SoleWaypointPlan
	active SoleWaypointPlan

	t0    float64
	start [len(timing.Quadrants)]r3.Vec
}

func (s *soleWaypointState) load(plan SoleWaypointPlan) {
	s.loaded = plan
}

func (s *soleWaypointState) OnEntry() {
	s.active = s.loaded
	s.loaded = SoleWaypointPlan{}
	s.t0 = s.env.Timestamp()
	for _, q := range timing.Quadrants {
		s.start[q] = s.env.SolePosition(q)
	}
}

func (s *soleWaypointState) Process() (statemachine.Event, error) {
	if s.active.Empty() {
		return statemachine.EventFail, nil
	}
	t := s.env.Timestamp() - s.t0
	for _, q := range timing.Quadrants {
		s.footFeedback(q, at(s.start[q], s.active.Waypoints[q], t))
	}
	s.support(s.inContact)
	if t >= s.active.Duration() {
		return statemachine.EventDone, nil
	}
	return statemachine.EventNone, nil
}

func (s *soleWaypointState) OnExit() {
	s.active = SoleWaypointPlan{}
}

func (s *soleWaypointState) inContact(q timing.Quadrant) bool {
	return len(s.active.Waypoints[q]) == 0
}
