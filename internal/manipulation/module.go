// Package manipulation is the control module of one hand. It wraps a state
// machine over the hand modes, the intake of hand requests, and the caches
// of trajectory generators and desired configurations.
package manipulation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/trajectory"
	"github.com/atlanticdynamic/modectl/internal/wbc"
)

// HoldEpsilon is the spline duration used to hold the arm in joint space.
const HoldEpsilon = 1e-2

// Frames are the reference frames a hand module works with.
type Frames struct {
	// Base is the body the arm is mounted on.
	Base *frames.Frame
	// Chest is pre-cached as a trajectory frame. Defaults to Base.
	Chest *frames.Frame
	// Hand is the default frame whose pose is controlled.
	Hand *frames.Frame
}

// Module is the control module of one hand.
type Module struct {
	name   string
	env    robot.Environment
	logger *slog.Logger

	joints         []string
	frames         Frames
	core           wbc.Core
	gains          Gains
	ableToBearLoad func() bool
	observers      []statemachine.Observer
	initial        Mode

	machine *statemachine.Machine[Mode]
	inbox   mailbox.Mailbox[Request]

	jointSpace         *jointSpaceState
	taskSpace          *taskSpaceState
	objectManipulation *taskSpaceState
	pointPosition      *pointPositionState
	loadBearing        *loadBearingState

	// Generator caches grow with the number of distinct trajectory frames
	// used and are never evicted.
	straightLines map[*frames.Frame]*trajectory.StraightLine
	constants     map[*frames.Frame]*trajectory.Constant

	tracked []*frames.Frame
	desired map[*frames.Frame]frames.Pose

	scratch map[string]float64
}

// NewModule builds the hand module called name, controlling joints. Every
// joint must exist in env.
func NewModule(name string, env robot.Environment, joints []string, fr Frames, opts ...Option) (*Module, error) {
	if name == "" {
		return nil, errors.New("hand module name is empty")
	}
	if env == nil {
		return nil, errors.New("environment is nil")
	}
	if fr.Base == nil || fr.Hand == nil {
		return nil, fmt.Errorf("hand %s: base and hand frames are required", name)
	}
	if fr.Chest == nil {
		fr.Chest = fr.Base
	}
	for _, j := range joints {
		if _, err := env.Joints().Get(j); err != nil {
			return nil, fmt.Errorf("hand %s: %w", name, err)
		}
	}

	m := &Module{
		name:           name,
		env:            env,
		logger:         slog.Default().WithGroup("manipulation.Module"),
		joints:         joints,
		frames:         fr,
		gains:          Gains{Stiffness: 100, Damping: 20},
		ableToBearLoad: func() bool { return true },
		initial:        ModeJointSpace,
		straightLines:  make(map[*frames.Frame]*trajectory.StraightLine),
		constants:      make(map[*frames.Frame]*trajectory.Constant),
		desired:        make(map[*frames.Frame]frames.Pose),
		scratch:        make(map[string]float64, len(joints)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("hand", name)

	if m.initial != ModeJointSpace && m.initial != ModeTaskSpacePosition {
		return nil, fmt.Errorf("hand %s: initial mode %s needs a trajectory", name, m.initial)
	}

	m.jointSpace = newJointSpaceState(env, m.core, m.gains, joints)
	m.taskSpace = newTaskSpaceState(env, ModeTaskSpacePosition, fr.Hand, false)
	m.objectManipulation = newTaskSpaceState(env, ModeObjectManipulation, fr.Hand, true)
	m.pointPosition = newPointPositionState(env, fr.Hand)
	m.loadBearing = newLoadBearingState(env, fr.Hand)

	if err := m.setupStateMachine(); err != nil {
		return nil, err
	}

	m.getOrCreateStraightLine(env.Frames().World())
	m.getOrCreateStraightLine(fr.Chest)
	m.getOrCreateStraightLine(fr.Hand)
	env.RegisterController(name)
	return m, nil
}

func (m *Module) setupStateMachine() error {
	opts := []statemachine.Option{
		statemachine.WithName("hand." + m.name),
		statemachine.WithLogger(m.logger),
	}
	for _, obs := range m.observers {
		opts = append(opts, statemachine.WithObserver(obs))
	}
	m.machine = statemachine.New[Mode](opts...)

	var errz []error
	add := func(err error) {
		if err != nil {
			errz = append(errz, err)
		}
	}

	add(m.machine.AddState(ModeJointSpace, m.jointSpace))
	add(m.machine.AddState(ModeTaskSpacePosition, m.taskSpace))
	add(m.machine.AddState(ModeObjectManipulation, m.objectManipulation))
	add(m.machine.AddState(ModePointPosition, m.pointPosition))
	add(m.machine.AddState(ModeLoadBearing, m.loadBearing))

	moving := []Mode{ModeJointSpace, ModeTaskSpacePosition, ModeObjectManipulation, ModePointPosition}
	for _, from := range moving {
		for _, to := range moving {
			add(m.machine.AddTransition(to.Event(), from, to, nil))
		}
	}
	add(m.machine.AddTransition(EventRequestLoadBearing, ModeTaskSpacePosition, ModeLoadBearing, m.ableToBearLoad))
	add(m.machine.AddTransition(EventRequestTaskSpace, ModeLoadBearing, ModeTaskSpacePosition, nil))
	add(m.machine.AddTransition(EventRequestLoadBearing, ModeJointSpace, ModeLoadBearing, nil))
	add(m.machine.AddTransition(EventRequestJointSpace, ModeLoadBearing, ModeJointSpace, nil))

	if len(errz) > 0 {
		return errors.Join(errz...)
	}
	return m.machine.Build(m.initial)
}

// Name returns the hand name used to address requests.
func (m *Module) Name() string {
	return m.name
}

func (m *Module) String() string {
	return "hand." + m.name
}

// Machine exposes the hand state machine for introspection.
func (m *Module) Machine() *statemachine.Machine[Mode] {
	return m.machine
}

// Mode returns the current hand mode.
func (m *Module) Mode() Mode {
	return m.machine.Current()
}

// Joints returns the arm joints controlled by the module.
func (m *Module) Joints() []string {
	return m.joints
}

// Validate checks req without changing anything. It is safe to call from any
// goroutine.
func (m *Module) Validate(req Request) error {
	return validate(req, m.joints)
}

// Post hands req to the control goroutine, which applies it on its next
// tick. It may be called from any goroutine; only the latest request is
// kept.
func (m *Module) Post(req Request) {
	m.inbox.Put(req)
}

// RequestMode validates req, prepares the target state and switches to it
// at once. An invalid request returns a ValidationError and leaves the
// module untouched; a request the machine does not take returns
// ErrRequestDiscarded.
func (m *Module) RequestMode(req Request) error {
	if err := m.Validate(req); err != nil {
		return err
	}

	switch req.Mode {
	case ModeJointSpace:
		switch {
		case req.Hold:
			return m.HoldPositionInJointSpace()
		case len(req.Min) > 0 || len(req.Max) > 0:
			return m.MoveJointsInRange(req.Min, req.Max, req.Duration)
		default:
			return m.MoveUsingQuinticSplines(req.Joints, req.Duration)
		}
	case ModeTaskSpacePosition, ModeObjectManipulation:
		holdObject := req.Mode == ModeObjectManipulation
		if req.Hold {
			frame := req.Goal.Frame
			if frame == nil {
				frame = m.frames.Base
			}
			return m.holdPositionInFrame(frame, holdObject)
		}
		return m.MoveInStraightLine(req.Goal, req.Duration, req.ControlFrame, holdObject)
	case ModePointPosition:
		point := req.ControlFrame
		if point == nil {
			point = m.frames.Hand
		}
		if req.Hold {
			hold := m.getOrCreateConstant(m.env.Frames().World())
			hold.Set(frames.OriginOf(point))
			return m.ExecutePointPositionTrajectory(hold, point)
		}
		gen := m.getOrCreateStraightLine(req.Goal.Frame)
		start := m.computeDesiredPose(point, req.Goal.Frame)
		goal := start
		goal.Position = req.Goal.Position
		if err := gen.SetEndpoints(start, goal, req.Duration); err != nil {
			return invalid("duration", "%v", err)
		}
		return m.ExecutePointPositionTrajectory(gen, point)
	case ModeLoadBearing:
		m.RequestLoadBearing()
		return m.checkTransitions()
	}
	return nil
}

func (m *Module) checkTransitions() error {
	event, fired, err := m.machine.CheckTransitions()
	if err != nil {
		return err
	}
	if !fired {
		return fmt.Errorf("%w: %s in %s", ErrRequestDiscarded, event, m.machine.Current())
	}
	return nil
}

// ExecuteTaskSpaceTrajectory makes gen drive control, a frame rigidly
// attached to the hand. With estimateMass the hand switches to object
// manipulation.
func (m *Module) ExecuteTaskSpaceTrajectory(gen trajectory.PoseGenerator, control *frames.Frame, estimateMass bool) error {
	if control == nil {
		control = m.frames.Hand
	}
	state := m.taskSpace
	if estimateMass {
		state = m.objectManipulation
	}
	state.setTrajectory(gen, control)
	m.machine.Trigger(state.mode.Event())
	return m.checkTransitions()
}

// MoveInStraightLine moves control from its current desired pose to goal in
// duration seconds. The line is drawn in goal's frame.
func (m *Module) MoveInStraightLine(goal frames.Pose, duration float64, control *frames.Frame, holdObject bool) error {
	if goal.Frame == nil {
		return invalid("goal.frame", "required")
	}
	if duration <= 0 || !finite(duration) {
		return invalid("duration", "must be a positive number of seconds, got %g", duration)
	}
	if control == nil {
		control = m.frames.Hand
	}
	start := m.computeDesiredPose(control, goal.Frame)
	gen := m.getOrCreateStraightLine(goal.Frame)
	if err := gen.SetEndpoints(start, goal, duration); err != nil {
		return invalid("duration", "%v", err)
	}
	return m.ExecuteTaskSpaceTrajectory(gen, control, holdObject)
}

// ExecutePointPositionTrajectory moves the origin of point along gen.
func (m *Module) ExecutePointPositionTrajectory(gen trajectory.PoseGenerator, point *frames.Frame) error {
	if point == nil {
		point = m.frames.Hand
	}
	m.pointPosition.setTrajectory(gen, point)
	m.machine.Trigger(EventRequestPointPosition)
	return m.checkTransitions()
}

// ExecuteJointSpaceTrajectory hands set to the joint-space state.
func (m *Module) ExecuteJointSpaceTrajectory(set *trajectory.JointSet) error {
	m.jointSpace.setTrajectory(set)
	m.machine.Trigger(EventRequestJointSpace)
	return m.checkTransitions()
}

// MoveUsingQuinticSplines moves every arm joint to its goal in duration
// seconds, starting from the measured positions. A goal is required for
// every joint.
func (m *Module) MoveUsingQuinticSplines(goals map[string]float64, duration float64) error {
	for _, name := range m.joints {
		if _, ok := goals[name]; !ok {
			return invalid("joints", "not all joint positions specified: missing %s", name)
		}
	}
	clear(m.scratch)
	m.env.Joints().Positions(m.scratch, m.joints...)
	set, err := trajectory.NewJointSet(m.scratch, goals, duration)
	if err != nil {
		return invalid("joints", "%v", err)
	}
	return m.ExecuteJointSpaceTrajectory(set)
}

// MoveJointsInRange pushes each joint that is outside [lower, upper] onto
// the nearest bound. Joints already in range, or without bounds, stay put.
func (m *Module) MoveJointsInRange(lower, upper map[string]float64, duration float64) error {
	if errz := checkRange(lower, upper, m.joints); len(errz) > 0 {
		return errors.Join(errz...)
	}

	current := make(map[string]float64, len(m.joints))
	m.env.Joints().Positions(current, m.joints...)
	goals := make(map[string]float64, len(m.joints))
	for _, name := range m.joints {
		q := current[name]
		final := q
		if lo, ok := lower[name]; ok && q < lo {
			final = lo
		}
		if hi, ok := upper[name]; ok && q > hi {
			final = hi
		}
		goals[name] = final
	}
	return m.MoveUsingQuinticSplines(goals, duration)
}

// HoldPositionInBase holds the hand where it is, expressed in the arm base.
func (m *Module) HoldPositionInBase() error {
	return m.HoldPositionInFrame(m.frames.Base)
}

// HoldPositionInFrame holds the hand where it is, expressed in frame. An
// object being manipulated stays held.
func (m *Module) HoldPositionInFrame(frame *frames.Frame) error {
	return m.holdPositionInFrame(frame, m.IsHoldingObject())
}

func (m *Module) holdPositionInFrame(frame *frames.Frame, holdObject bool) error {
	gen := m.getOrCreateConstant(frame)
	gen.Set(frames.OriginOf(m.frames.Hand))
	return m.ExecuteTaskSpaceTrajectory(gen, m.frames.Hand, holdObject)
}

// HoldPositionInJointSpace holds every arm joint at its measured position.
func (m *Module) HoldPositionInJointSpace() error {
	goals := make(map[string]float64, len(m.joints))
	m.env.Joints().Positions(goals, m.joints...)
	return m.MoveUsingQuinticSplines(goals, HoldEpsilon)
}

// RequestLoadBearing asks for LOAD_BEARING on the next tick.
func (m *Module) RequestLoadBearing() {
	m.machine.Trigger(EventRequestLoadBearing)
}

// DoControl runs one tick: apply the pending request, run the state machine
// and refresh every tracked desired configuration. A RuntimeOperationError
// from the active state is returned and the hand stays in its mode.
func (m *Module) DoControl() error {
	if req, ok := m.nextRequest(); ok {
		if err := m.RequestMode(req); err != nil {
			m.logger.Warn("Hand request rejected", "mode", req.Mode, "error", err)
		}
	}

	if err := m.machine.Process(); err != nil {
		return err
	}
	m.updateDesiredConfigurations()
	return nil
}

// nextRequest picks the one request applied this tick. A mode request from
// the environment wins over a posted hand request, which is dropped.
func (m *Module) nextRequest() (Request, bool) {
	posted, ok := m.inbox.Drain()
	envReq, fromEnv := m.env.TryReceiveModeRequest(m.name)
	if !fromEnv {
		return posted, ok
	}
	mode, err := ParseMode(envReq.Mode)
	if err != nil {
		m.logger.Warn("Mode request rejected", "id", envReq.ID, "error", err)
		return posted, ok
	}
	if ok {
		m.logger.Warn("Hand request superseded by mode request",
			"id", envReq.ID, "mode", mode, "dropped", posted.Mode)
	}
	return Request{Mode: mode, Hold: true}, true
}

// IsDone reports whether the active state finished its trajectory.
func (m *Module) IsDone() bool {
	switch s := m.machine.Active().(type) {
	case *jointSpaceState:
		return s.isDone()
	case *taskSpaceState:
		return s.isDone()
	case *pointPositionState:
		return s.isDone()
	default:
		return false
	}
}

func (m *Module) IsHoldingObject() bool {
	return m.machine.Current() == ModeObjectManipulation
}

func (m *Module) IsLoadBearing() bool {
	return m.machine.Current() == ModeLoadBearing
}

// IsControllingPoseInWorld reports whether a task-space state is tracking a
// trajectory expressed in the world frame.
func (m *Module) IsControllingPoseInWorld() bool {
	s, ok := m.machine.Active().(*taskSpaceState)
	return ok && s.trajectoryFrame() == m.env.Frames().World()
}

// ContactPose returns where the hand made contact when it entered
// LOAD_BEARING.
func (m *Module) ContactPose() (frames.Pose, bool) {
	if !m.IsLoadBearing() {
		return frames.Pose{}, false
	}
	return m.loadBearing.contact, true
}

// DesiredConfiguration returns the desired world pose of control. The first
// call starts tracking control; from then on it is refreshed every tick.
func (m *Module) DesiredConfiguration(control *frames.Frame) frames.Pose {
	if _, ok := m.desired[control]; !ok {
		m.tracked = append(m.tracked, control)
		m.desired[control] = frames.Pose{}
		m.updateDesiredConfigurations()
	}
	return m.desired[control]
}

func (m *Module) updateDesiredConfigurations() {
	world := m.env.Frames().World()
	for _, f := range m.tracked {
		m.desired[f] = m.computeDesiredPose(f, world)
	}
}

// computeDesiredPose returns the desired pose of control expressed in
// target. It starts from the active state's own desired pose and moves it
// onto control through the current transform between the two hand-fixed
// frames, so switching the tracked frame does not jump.
func (m *Module) computeDesiredPose(control, target *frames.Frame) frames.Pose {
	switch s := m.machine.Active().(type) {
	case *taskSpaceState:
		if s.control != nil {
			pose := s.desired.ChangeFrame(target)
			return pose.ChangeTrackingFrame(control.TransformTo(s.control))
		}
	case *pointPositionState:
		if s.point != nil {
			// desired position, actual orientation
			pose := frames.OriginOf(s.point).ChangeFrame(target)
			pose.Position = s.desired.ChangeFrame(target).Position
			return pose.ChangeTrackingFrame(control.TransformTo(s.point))
		}
	}
	return frames.OriginOf(control).ChangeFrame(target)
}

func (m *Module) getOrCreateStraightLine(frame *frames.Frame) *trajectory.StraightLine {
	gen, ok := m.straightLines[frame]
	if !ok {
		gen = trajectory.NewStraightLine(frame)
		m.straightLines[frame] = gen
	}
	return gen
}

func (m *Module) getOrCreateConstant(frame *frames.Frame) *trajectory.Constant {
	gen, ok := m.constants[frame]
	if !ok {
		gen = trajectory.NewConstant(frame)
		m.constants[frame] = gen
	}
	return gen
}

// CachedFrames returns how many trajectory frames have generators cached.
func (m *Module) CachedFrames() int {
	return len(m.straightLines) + len(m.constants)
}
