// Package locomotion is the control module of a quadruped. The Manager owns
// the locomotion state machine, the step streams feeding it and the
// whole-body core it commands.
package locomotion

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/atlanticdynamic/modectl/internal/wbc"
	"gonum.org/v1/gonum/spatial/r3"
)

// StreamKey names a step stream registered with the Manager.
type StreamKey string

const (
	StreamXGait      StreamKey = "xgait"
	StreamPreplanned StreamKey = "preplanned"
)

// Manager is the locomotion control module of one quadruped.
type Manager struct {
	name      string
	env       robot.Environment
	logger    *slog.Logger
	settings  Settings
	inner     wbc.Core
	observers []statemachine.Observer

	machine *statemachine.Machine[Mode]
	core    *wbc.TickGuard
	mux     *stream.Multiplexer[StreamKey]

	xgait      *stream.XGait
	preplanned *stream.Preplanned

	shared       *shared
	freeze       *freezeState
	stand        *standState
	step         *stepState
	soleWaypoint *soleWaypointState

	stepPlans mailbox.Mailbox[stream.Plan]
	waypoints mailbox.Mailbox[SoleWaypointPlan]

	previous  wbc.Output
	positions map[string]float64
}

// NewManager builds the locomotion manager called name. The machine starts
// in JOINT_INITIALIZATION.
func NewManager(name string, env robot.Environment, settings Settings, opts ...Option) (*Manager, error) {
	if name == "" {
		return nil, errors.New("locomotion manager name is empty")
	}
	if env == nil {
		return nil, errors.New("environment is nil")
	}
	if err := settings.Validate(env.Joints()); err != nil {
		return nil, fmt.Errorf("locomotion %s: %w", name, err)
	}

	m := &Manager{
		name:      name,
		env:       env,
		logger:    slog.Default().WithGroup("locomotion.Manager"),
		settings:  settings,
		positions: make(map[string]float64, len(env.Joints().Names())),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("robot", name)

	if m.inner == nil {
		m.inner = wbc.NewReferenceCore(settings.Mass, settings.Gravity, m.positions)
	}
	m.core = wbc.NewTickGuard(m.inner)

	xgait, err := stream.NewXGait(settings.XGait, env.SolePosition)
	if err != nil {
		return nil, fmt.Errorf("locomotion %s: %w", name, err)
	}
	m.xgait = xgait
	m.preplanned = stream.NewPreplanned(settings.StepPlanCapacity)

	m.mux = stream.NewMultiplexer[StreamKey](stream.WithLogger(m.logger))
	if err := errors.Join(
		m.mux.Register(StreamXGait, m.xgait),
		m.mux.Register(StreamPreplanned, m.preplanned),
		m.mux.Select(StreamXGait),
	); err != nil {
		return nil, err
	}

	m.shared = &shared{env: env, core: m.core, settings: &m.settings, previous: &m.previous}
	m.freeze = &freezeState{shared: m.shared}
	m.stand = &standState{shared: m.shared}
	m.step = &stepState{shared: m.shared, steps: m.mux}
	m.soleWaypoint = &soleWaypointState{shared: m.shared}

	if err := m.setupStateMachine(); err != nil {
		return nil, err
	}
	m.mux.RestrictSelection(m.machine.InTransition)
	env.RegisterController(name)
	return m, nil
}

func (m *Manager) setupStateMachine() error {
	opts := []statemachine.Option{
		statemachine.WithName("locomotion." + m.name),
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

	jointInit := &jointInitState{shared: m.shared, scratch: make(map[string]float64, len(m.positions))}
	add(m.machine.AddState(ModeJointInitialization, jointInit))
	add(m.machine.AddState(ModeDoNothing, &statemachine.StateFuncs{}))
	add(m.machine.AddState(ModeStandPrep, newPostureState(m.shared, m.settings.NominalPosture, m.settings.StandPrepDuration)))
	add(m.machine.AddState(ModeStandReady, m.freeze))
	add(m.machine.AddState(ModeFreeze, m.freeze))
	add(m.machine.AddState(ModeStand, m.stand))
	add(m.machine.AddState(ModeStep, m.step))
	add(m.machine.AddState(ModeXGait, m.step))
	add(m.machine.AddState(ModeFall, newPostureState(m.shared, m.settings.FoldPosture, m.settings.FallDuration)))
	add(m.machine.AddState(ModeSoleWaypoint, m.soleWaypoint))

	edge := func(event statemachine.Event, to Mode, from ...Mode) {
		for _, f := range from {
			add(m.machine.AddTransition(event, f, to, nil))
		}
	}

	if m.settings.BypassDoNothing {
		edge(statemachine.EventDone, ModeStandPrep, ModeJointInitialization)
	} else {
		edge(statemachine.EventDone, ModeDoNothing, ModeJointInitialization)
	}
	edge(statemachine.EventDone, ModeStandReady, ModeStandPrep)
	edge(statemachine.EventDone, ModeStand, ModeStep, ModeXGait)
	edge(statemachine.EventDone, ModeFreeze, ModeFall, ModeSoleWaypoint)
	edge(statemachine.EventFail, ModeFreeze, ModeStand, ModeSoleWaypoint, ModeStep, ModeXGait)

	edge(EventRequestStand, ModeStand, ModeStandReady, ModeFreeze, ModeSoleWaypoint, ModeStep, ModeXGait)
	edge(EventRequestStep, ModeStep, ModeStand)
	edge(EventRequestXGait, ModeXGait, ModeStand)
	edge(EventRequestStandPrep, ModeStandPrep, ModeStandReady, ModeFreeze, ModeFall, ModeDoNothing, ModeStand)
	edge(EventRequestFreeze, ModeFreeze, ModeDoNothing, ModeStand, ModeStandPrep, ModeStandReady, ModeSoleWaypoint)
	edge(EventRequestDoNothing, ModeDoNothing, Modes...)
	edge(EventRequestFall, ModeFall, ModeStand, ModeStep, ModeXGait, ModeFreeze)
	edge(EventRequestSoleWaypoint, ModeSoleWaypoint, ModeStandReady, ModeFreeze, ModeStand, ModeDoNothing)

	add(m.machine.AddCallback(EventRequestXGait, ModeStand, func() { m.selectStream(StreamXGait) }))
	add(m.machine.AddCallback(EventRequestStep, ModeStand, func() { m.selectStream(StreamPreplanned) }))
	add(m.machine.AddCallback(EventRequestStand, ModeStep, m.mux.Halt))
	add(m.machine.AddCallback(EventRequestStand, ModeXGait, m.mux.Halt))
	add(m.machine.AddCallback(statemachine.EventFail, ModeStep, m.mux.Halt))
	add(m.machine.AddCallback(statemachine.EventFail, ModeXGait, m.mux.Halt))

	if len(errz) > 0 {
		return errors.Join(errz...)
	}
	return m.machine.Build(ModeJointInitialization)
}

func (m *Manager) selectStream(key StreamKey) {
	if err := m.mux.Select(key); err != nil {
		m.logger.Error("Step stream not selected", "stream", key, "error", err)
	}
}

// Name returns the robot name used to address requests.
func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) String() string {
	return "locomotion." + m.name
}

// Machine exposes the locomotion state machine for introspection.
func (m *Manager) Machine() *statemachine.Machine[Mode] {
	return m.machine
}

// Mode returns the current locomotion mode.
func (m *Manager) Mode() Mode {
	return m.machine.Current()
}

// ActiveStream returns the key of the selected step stream.
func (m *Manager) ActiveStream() StreamKey {
	key, _ := m.mux.ActiveKey()
	return key
}

// Steps returns the steps the active stream has planned or in progress.
func (m *Manager) Steps() []timing.TimedStep {
	return m.mux.Steps()
}

// Output returns what the whole-body core achieved on the last tick.
func (m *Manager) Output() wbc.Output {
	return m.core.Output()
}

// RequestMode asks for mode on the next tick. It may be called from any
// goroutine; only the latest request is kept.
func (m *Manager) RequestMode(mode Mode) error {
	if !mode.Requestable() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	m.machine.Trigger(mode.Event())
	return nil
}

// SubmitStepPlan hands plan to the preplanned stream. When the robot is
// standing and no other request is pending, it starts stepping on the next
// tick. It may be called from any goroutine.
func (m *Manager) SubmitStepPlan(plan stream.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	m.stepPlans.Put(plan)
	return nil
}

// SubmitSoleWaypoints loads plan for the next entry into SOLE_WAYPOINT. It
// may be called from any goroutine.
func (m *Manager) SubmitSoleWaypoints(plan SoleWaypointPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	m.waypoints.Put(plan)
	return nil
}

// SetXGaitVelocity sets the planar velocity of the x-gait. It may be called
// from any goroutine.
func (m *Manager) SetXGaitVelocity(v stream.PlanarVelocity) {
	m.xgait.SetVelocity(v)
}

// SetXGaitSettings replaces the x-gait settings. It may be called from any
// goroutine.
func (m *Manager) SetXGaitSettings(s stream.XGaitSettings) error {
	return m.xgait.SetSettings(s)
}

// DoControl runs one tick: apply pending requests and plans, run the state
// machine, compute the whole-body core once and update the foot switches.
// A RuntimeOperationError from the active state is returned and the robot
// stays in its mode.
func (m *Manager) DoControl() error {
	if req, ok := m.env.TryReceiveModeRequest(m.name); ok {
		m.applyModeRequest(req)
	}
	if plan, ok := m.stepPlans.Drain(); ok {
		m.preplanned.Load(plan)
		if m.machine.Current() == ModeStand {
			m.machine.TriggerIfIdle(EventRequestStep)
		}
	}
	if plan, ok := m.waypoints.Drain(); ok {
		m.soleWaypoint.load(plan)
	}

	m.previous = m.core.Output()
	clear(m.positions)
	m.env.Joints().Positions(m.positions)
	m.core.BeginTick()

	procErr := m.machine.Process()
	computeErr := m.core.Compute()
	if computeErr == nil {
		computeErr = m.core.Err()
	}
	m.updateFootSwitches()

	if computeErr != nil {
		return errors.Join(procErr, fmt.Errorf("%s: whole-body core: %w", m, computeErr))
	}
	return procErr
}

func (m *Manager) applyModeRequest(req robot.ModeRequest) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		m.logger.Warn("Mode request rejected", "id", req.ID, "error", err)
		return
	}
	m.machine.Trigger(mode.Event())
}

// untrustedContact is the contact state assumed while the switches are not
// trusted.
var untrustedContact = [len(timing.Quadrants)]bool{
	timing.FrontLeft:  false,
	timing.FrontRight: false,
	timing.HindLeft:   false,
	timing.HindRight:  true,
}

func (m *Manager) updateFootSwitches() {
	switch m.machine.Current() {
	case ModeDoNothing, ModeStandPrep, ModeStandReady:
		for _, q := range timing.Quadrants {
			fs := m.env.FootSwitch(q)
			fs.Trust(false)
			fs.SetContactState(untrustedContact[q])
		}
		return
	}

	reporter, _ := m.machine.Active().(contactReporter)
	for _, q := range timing.Quadrants {
		fs := m.env.FootSwitch(q)
		fs.Trust(true)
		fs.SetContactState(reporter == nil || reporter.inContact(q))
	}
}

// SolePositions returns the estimated position of every foot.
func (m *Manager) SolePositions() [len(timing.Quadrants)]r3.Vec {
	var out [len(timing.Quadrants)]r3.Vec
	for _, q := range timing.Quadrants {
		out[q] = m.env.SolePosition(q)
	}
	return out
}
