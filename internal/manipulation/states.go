package manipulation

import (
	"fmt"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/trajectory"
	"github.com/atlanticdynamic/modectl/internal/wbc"
)

var (
	_ statemachine.State = (*jointSpaceState)(nil)
	_ statemachine.State = (*taskSpaceState)(nil)
	_ statemachine.State = (*pointPositionState)(nil)
	_ statemachine.State = (*loadBearingState)(nil)
)

// Gains are the joint-space feedback gains submitted to the whole-body core.
type Gains struct {
	Stiffness float64
	Damping   float64
}

// jointSpaceState follows a quintic spline per arm joint. Without a
// trajectory it holds the joints where they were on entry.
type jointSpaceState struct {
	env     robot.Environment
	core    wbc.Core
	gains   Gains
	joints  []string
	set     *trajectory.JointSet
	scratch map[string]float64
}

func newJointSpaceState(env robot.Environment, core wbc.Core, gains Gains, joints []string) *jointSpaceState {
	return &jointSpaceState{
		env:     env,
		core:    core,
		gains:   gains,
		joints:  joints,
		scratch: make(map[string]float64, len(joints)),
	}
}

func (s *jointSpaceState) setTrajectory(set *trajectory.JointSet) {
	s.set = set
}

func (s *jointSpaceState) OnEntry() {
	if s.set == nil {
		clear(s.scratch)
		s.env.Joints().Positions(s.scratch, s.joints...)
		s.set = trajectory.Hold(s.scratch)
	}
	s.set.Initialize(s.env.Timestamp())
}

func (s *jointSpaceState) Process() (statemachine.Event, error) {
	s.set.Compute(s.env.Timestamp())
	clear(s.scratch)
	s.set.Desired(s.scratch)
	s.env.Joints().SetDesiredFrom(s.scratch)

	if s.core != nil {
		for _, name := range s.set.Names() {
			sp, _ := s.set.Spline(name)
			s.core.Submit(wbc.JointFeedback{
				Joint:     name,
				Position:  sp.Position(),
				Velocity:  sp.Velocity(),
				Stiffness: s.gains.Stiffness,
				Damping:   s.gains.Damping,
			})
		}
	}
	return statemachine.EventNone, nil
}

func (s *jointSpaceState) OnExit() {}

func (s *jointSpaceState) isDone() bool {
	return s.set != nil && s.set.IsDone()
}

// taskSpaceState tracks a pose trajectory with one frame rigidly attached to
// the hand. Object manipulation is the same behavior with mass estimation
// switched on.
type taskSpaceState struct {
	env          robot.Environment
	mode         Mode
	estimateMass bool
	hand         *frames.Frame

	gen     trajectory.PoseGenerator
	control *frames.Frame
	desired frames.Pose
}

func newTaskSpaceState(env robot.Environment, mode Mode, hand *frames.Frame, estimateMass bool) *taskSpaceState {
	return &taskSpaceState{env: env, mode: mode, hand: hand, estimateMass: estimateMass}
}

func (s *taskSpaceState) setTrajectory(gen trajectory.PoseGenerator, control *frames.Frame) {
	s.gen = gen
	s.control = control
}

func (s *taskSpaceState) OnEntry() {
	if s.gen == nil {
		world := s.env.Frames().World()
		hold := trajectory.NewConstant(world)
		hold.Set(frames.OriginOf(s.hand))
		s.gen, s.control = hold, s.hand
	}
	now := s.env.Timestamp()
	s.gen.Initialize(now)
	s.gen.Compute(now)
	s.desired = s.gen.Pose()
}

func (s *taskSpaceState) Process() (statemachine.Event, error) {
	s.gen.Compute(s.env.Timestamp())
	p := s.gen.Pose()
	if !finite(p.Position.X, p.Position.Y, p.Position.Z) {
		return statemachine.EventNone, fmt.Errorf("desired pose of %s is not finite", s.control)
	}
	s.desired = p
	return statemachine.EventNone, nil
}

func (s *taskSpaceState) OnExit() {}

func (s *taskSpaceState) isDone() bool {
	return s.gen != nil && s.gen.IsDone()
}

// trajectoryFrame is the frame the trajectory is expressed in.
func (s *taskSpaceState) trajectoryFrame() *frames.Frame {
	if s.gen == nil {
		return nil
	}
	return s.gen.Frame()
}

// pointPositionState moves the origin of a hand-fixed frame along a
// position trajectory. Orientation is left free.
type pointPositionState struct {
	env   robot.Environment
	hand  *frames.Frame
	gen   trajectory.PoseGenerator
	point *frames.Frame

	desired frames.Pose
}

func newPointPositionState(env robot.Environment, hand *frames.Frame) *pointPositionState {
	return &pointPositionState{env: env, hand: hand}
}

func (s *pointPositionState) setTrajectory(gen trajectory.PoseGenerator, point *frames.Frame) {
	s.gen = gen
	s.point = point
}

func (s *pointPositionState) OnEntry() {
	if s.gen == nil {
		hold := trajectory.NewConstant(s.env.Frames().World())
		hold.Set(frames.OriginOf(s.hand))
		s.gen, s.point = hold, s.hand
	}
	now := s.env.Timestamp()
	s.gen.Initialize(now)
	s.gen.Compute(now)
	s.desired = s.gen.Pose()
}

func (s *pointPositionState) Process() (statemachine.Event, error) {
	s.gen.Compute(s.env.Timestamp())
	p := s.gen.Pose()
	if !finite(p.Position.X, p.Position.Y, p.Position.Z) {
		return statemachine.EventNone, fmt.Errorf("desired position of %s is not finite", s.point)
	}
	s.desired = p
	return statemachine.EventNone, nil
}

func (s *pointPositionState) OnExit() {}

func (s *pointPositionState) isDone() bool {
	return s.gen != nil && s.gen.IsDone()
}

// loadBearingState keeps the hand pressed where it made contact.
type loadBearingState struct {
	env     robot.Environment
	hand    *frames.Frame
	contact frames.Pose
}

func newLoadBearingState(env robot.Environment, hand *frames.Frame) *loadBearingState {
	return &loadBearingState{env: env, hand: hand}
}

func (s *loadBearingState) OnEntry() {
	s.contact = frames.OriginOf(s.hand).ChangeFrame(s.env.Frames().World())
}

func (s *loadBearingState) Process() (statemachine.Event, error) {
	return statemachine.EventNone, nil
}

func (s *loadBearingState) OnExit() {}
