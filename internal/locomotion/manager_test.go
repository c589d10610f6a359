package locomotion

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/atlanticdynamic/modectl/internal/wbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var legJoints = []string{"fl_hip", "fr_hip", "hl_hip", "hr_hip"}

func testSettings() Settings {
	s := DefaultSettings()
	s.NominalPosture = make(map[string]float64, len(legJoints))
	s.FoldPosture = make(map[string]float64, len(legJoints))
	for _, j := range legJoints {
		s.NominalPosture[j] = 0.5
		s.FoldPosture[j] = -0.5
	}
	s.StandPrepDuration = 0.05
	s.FallDuration = 0.05
	return s
}

// recordingCore remembers the last foot feedback per leg and can report a
// forced momentum rate.
type recordingCore struct {
	*wbc.ReferenceCore

	mu       sync.Mutex
	feet     map[timing.Quadrant]r3.Vec
	momentum *r3.Vec
}

func (c *recordingCore) Submit(cmd wbc.Command) {
	if ff, ok := cmd.(wbc.FootFeedback); ok {
		c.mu.Lock()
		c.feet[ff.Quadrant] = ff.Position
		c.mu.Unlock()
	}
	c.ReferenceCore.Submit(cmd)
}

func (c *recordingCore) Output() wbc.Output {
	out := c.ReferenceCore.Output()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.momentum != nil {
		out.LinearMomentumRate = *c.momentum
	}
	return out
}

func (c *recordingCore) foot(q timing.Quadrant) (r3.Vec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.feet[q]
	return p, ok
}

func (c *recordingCore) forceMomentum(v r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.momentum = &v
}

type rig struct {
	sim     *robot.Sim
	manager *Manager
	core    *recordingCore
	reports []statemachine.Report
}

func newRig(t *testing.T, settings Settings) *rig {
	t.Helper()

	js := robot.NewJointState()
	for _, j := range legJoints {
		require.NoError(t, js.Add(j, 0, -2, 2))
	}
	soles := [4]r3.Vec{
		timing.FrontLeft:  {X: 0.3, Y: 0.2},
		timing.FrontRight: {X: 0.3, Y: -0.2},
		timing.HindRight:  {X: -0.3, Y: -0.2},
		timing.HindLeft:   {X: -0.3, Y: 0.2},
	}
	sim := robot.NewSim(10*time.Millisecond, js, nil, robot.WithJointLag(0), robot.WithSolePositions(soles))

	r := &rig{sim: sim}
	r.core = &recordingCore{
		ReferenceCore: wbc.NewReferenceCore(settings.Mass, settings.Gravity, nil),
		feet:          make(map[timing.Quadrant]r3.Vec),
	}
	m, err := NewManager("rover", sim, settings,
		WithCore(r.core),
		WithObserver(func(rep statemachine.Report) { r.reports = append(r.reports, rep) }),
	)
	require.NoError(t, err)
	r.manager = m
	return r
}

func (r *rig) tick(t *testing.T, n int) {
	t.Helper()
	for range n {
		r.sim.BeginTick()
		require.NoError(t, r.manager.DoControl())
		r.sim.EndTick()
	}
}

// runUntil ticks until the manager reaches mode, failing after limit ticks.
func (r *rig) runUntil(t *testing.T, mode Mode, limit int) {
	t.Helper()
	for range limit {
		if r.manager.Mode() == mode {
			return
		}
		r.tick(t, 1)
	}
	require.Equal(t, mode, r.manager.Mode(), "not reached after %d ticks", limit)
}

func (r *rig) request(t *testing.T, mode Mode) {
	t.Helper()
	require.NoError(t, r.manager.RequestMode(mode))
	r.tick(t, 1)
	require.Equal(t, mode, r.manager.Mode())
}

func (r *rig) standing(t *testing.T) {
	t.Helper()
	r.runUntil(t, ModeStandReady, 20)
	r.request(t, ModeStand)
}

func (r *rig) lastReport() statemachine.Report {
	return r.reports[len(r.reports)-1]
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	sim := robot.NewSim(time.Millisecond, nil, nil)

	_, err := NewManager("", sim, DefaultSettings())
	require.Error(t, err)

	_, err = NewManager("rover", nil, DefaultSettings())
	require.Error(t, err)

	bad := DefaultSettings()
	bad.Mass = 0
	bad.NominalPosture = map[string]float64{"knee": 1}
	_, err = NewManager("rover", sim, bad)
	require.ErrorIs(t, err, ErrInvalidSettings)
	require.ErrorIs(t, err, robot.ErrUnknownJoint)

	m, err := NewManager("rover", sim, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, ModeJointInitialization, m.Mode())
	assert.Equal(t, StreamXGait, m.ActiveStream())
	assert.Equal(t, "locomotion.rover", m.String())
	assert.ElementsMatch(t, Modes, m.Machine().States())
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{in: "stand", want: ModeStand},
		{in: " XGAIT ", want: ModeXGait},
		{in: "sole_waypoint", want: ModeSoleWaypoint},
		{in: "JOINT_INITIALIZATION", err: true},
		{in: "STAND_READY", err: true},
		{in: "gallop", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tc.in)
			if tc.err {
				require.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestManager_Startup(t *testing.T) {
	t.Parallel()

	t.Run("bypass do nothing", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())

		r.tick(t, 1)
		assert.Equal(t, ModeStandPrep, r.manager.Mode())

		r.runUntil(t, ModeStandReady, 20)
		desired := make(map[string]float64)
		r.sim.Joints().Desired(desired)
		for _, j := range legJoints {
			assert.InDelta(t, 0.5, desired[j], 1e-9, j)
		}
	})

	t.Run("through do nothing", func(t *testing.T) {
		t.Parallel()
		settings := testSettings()
		settings.BypassDoNothing = false
		r := newRig(t, settings)

		r.tick(t, 1)
		assert.Equal(t, ModeDoNothing, r.manager.Mode())
		r.tick(t, 5)
		assert.Equal(t, ModeDoNothing, r.manager.Mode(), "do nothing never completes")

		r.request(t, ModeStandPrep)
	})
}

func TestManager_FootSwitchTrust(t *testing.T) {
	t.Parallel()
	r := newRig(t, testSettings())

	r.runUntil(t, ModeStandReady, 20)
	for _, q := range timing.Quadrants {
		fs := r.sim.FootSwitch(q)
		assert.False(t, fs.Trusted(), q.String())
		assert.Equal(t, q == timing.HindRight, fs.ControllerContact(), q.String())
	}

	r.request(t, ModeFreeze)
	for _, q := range timing.Quadrants {
		fs := r.sim.FootSwitch(q)
		assert.True(t, fs.Trusted(), q.String())
		assert.True(t, fs.ControllerContact(), q.String())
	}
}

func TestManager_StandFailsWithoutSupport(t *testing.T) {
	t.Parallel()
	r := newRig(t, testSettings())
	r.standing(t)

	r.tick(t, 3)
	assert.Equal(t, ModeStand, r.manager.Mode())
	out := r.manager.Output()
	assert.InDelta(t, 0, r3.Norm(out.LinearMomentumRate), 1e-9, "weight carried by the feet")

	r.sim.FootSwitch(timing.FrontLeft).Sense(false)
	r.sim.FootSwitch(timing.FrontRight).Sense(false)
	r.tick(t, 1)
	assert.Equal(t, ModeFreeze, r.manager.Mode())
	assert.Equal(t, statemachine.EventFail, r.lastReport().Fired)
}

func TestManager_StepPlan(t *testing.T) {
	t.Parallel()

	plan := stream.Plan{Steps: []timing.TimedStep{{
		SequenceID:      7,
		Interval:        timing.TimeInterval{Start: 0, End: 0.03},
		Quadrant:        timing.FrontLeft,
		Goal:            r3.Vec{X: 0.4, Y: 0.2},
		GroundClearance: 0.05,
	}}}

	t.Run("standing robot starts stepping", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		require.NoError(t, r.manager.SubmitStepPlan(plan))
		r.tick(t, 1)
		assert.Equal(t, ModeStep, r.manager.Mode())
		assert.Equal(t, StreamPreplanned, r.manager.ActiveStream())
		require.Len(t, r.manager.Steps(), 1)
		assert.False(t, r.sim.FootSwitch(timing.FrontLeft).ControllerContact(), "swing leg")
		assert.True(t, r.sim.FootSwitch(timing.HindLeft).ControllerContact())

		r.runUntil(t, ModeStand, 10)
		assert.Equal(t, statemachine.EventDone, r.lastReport().Fired)
		foot, ok := r.core.foot(timing.FrontLeft)
		require.True(t, ok)
		assert.InDelta(t, 0.4, foot.X, 0.05)
	})

	t.Run("done wins over an unrelated request", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		require.NoError(t, r.manager.SubmitStepPlan(plan))
		r.tick(t, 1)
		require.Equal(t, ModeStep, r.manager.Mode())

		for range 10 {
			if r.manager.Mode() != ModeStep {
				break
			}
			require.NoError(t, r.manager.RequestMode(ModeSoleWaypoint))
			r.tick(t, 1)
		}
		assert.Equal(t, ModeStand, r.manager.Mode())
		last := r.lastReport()
		assert.Equal(t, EventRequestSoleWaypoint, last.Requested)
		assert.Equal(t, statemachine.EventDone, last.Fired)
	})

	t.Run("pending request wins over the plan", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		require.NoError(t, r.manager.RequestMode(ModeFall))
		require.NoError(t, r.manager.SubmitStepPlan(plan))
		r.tick(t, 1)
		assert.Equal(t, ModeFall, r.manager.Mode())
	})

	t.Run("concurrent request is never overwritten by the plan", func(t *testing.T) {
		t.Parallel()
		for range 20 {
			r := newRig(t, testSettings())
			r.standing(t)
			require.NoError(t, r.manager.SubmitStepPlan(plan))

			requested := make(chan struct{})
			go func() {
				defer close(requested)
				assert.NoError(t, r.manager.RequestMode(ModeFall))
			}()
			r.tick(t, 1)
			<-requested
			r.tick(t, 1)
			require.Equal(t, ModeFall, r.manager.Mode())
		}
	})

	t.Run("plan waits for stand", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.runUntil(t, ModeStandReady, 20)

		require.NoError(t, r.manager.SubmitStepPlan(plan))
		r.tick(t, 1)
		assert.Equal(t, ModeStandReady, r.manager.Mode())

		r.request(t, ModeStand)
		r.request(t, ModeStep)
		assert.Len(t, r.manager.Steps(), 1)
	})

	t.Run("invalid plan rejected", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())

		bad := stream.Plan{Steps: []timing.TimedStep{{Interval: timing.TimeInterval{Start: 1, End: 0}}}}
		require.ErrorIs(t, r.manager.SubmitStepPlan(bad), timing.ErrInvalidInterval)
	})

	t.Run("broken goal holds the mode", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		broken := stream.Plan{Steps: []timing.TimedStep{{
			Interval: timing.TimeInterval{Start: 0, End: 1},
			Quadrant: timing.HindLeft,
			Goal:     r3.Vec{X: math.NaN()},
		}}}
		require.NoError(t, r.manager.SubmitStepPlan(broken))

		r.sim.BeginTick()
		err := r.manager.DoControl()
		r.sim.EndTick()
		require.Error(t, err)
		assert.True(t, statemachine.IsRuntimeOperationError(err))
		assert.Equal(t, ModeStep, r.manager.Mode())
	})
}

func TestManager_MomentumViolation(t *testing.T) {
	t.Parallel()

	long := stream.Plan{Steps: []timing.TimedStep{{
		Interval: timing.TimeInterval{Start: 0, End: 10},
		Quadrant: timing.FrontRight,
		Goal:     r3.Vec{X: 0.4, Y: -0.2},
	}}}

	t.Run("step freezes and halts the plan", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		require.NoError(t, r.manager.SubmitStepPlan(long))
		r.tick(t, 2)
		require.Equal(t, ModeStep, r.manager.Mode())
		require.NotEmpty(t, r.manager.Steps())
		assert.Equal(t, statemachine.EventNone, r.lastReport().Automatic)

		r.core.forceMomentum(r3.Vec{Z: -1000})
		r.tick(t, 1)
		rep := r.lastReport()
		assert.Equal(t, statemachine.EventFail, rep.Automatic)
		assert.Equal(t, statemachine.EventFail, rep.Fired)
		assert.Equal(t, ModeFreeze, r.manager.Mode())
		assert.Empty(t, r.manager.Steps(), "the plan is halted on the way out")

		r.tick(t, 5)
		assert.Equal(t, ModeFreeze, r.manager.Mode())

		for _, tr := range r.manager.Machine().Transitions() {
			if tr.Event == statemachine.EventFail && (tr.From == ModeStep || tr.From == ModeXGait) {
				assert.Equal(t, 1, tr.Callbacks, "halt on %s", tr.From)
			}
		}
	})

	t.Run("x-gait freezes and halts the gait", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		r.manager.SetXGaitVelocity(stream.PlanarVelocity{X: 0.2})
		r.request(t, ModeXGait)
		require.NotEmpty(t, r.manager.Steps())

		r.core.forceMomentum(r3.Vec{X: 1000})
		r.tick(t, 1)
		assert.Equal(t, statemachine.EventFail, r.lastReport().Automatic)
		assert.Equal(t, ModeFreeze, r.manager.Mode())
		assert.Empty(t, r.manager.Steps())
	})
}

func TestManager_XGait(t *testing.T) {
	t.Parallel()
	r := newRig(t, testSettings())
	r.standing(t)

	r.manager.SetXGaitVelocity(stream.PlanarVelocity{X: 0.2})
	r.request(t, ModeXGait)
	assert.Equal(t, StreamXGait, r.manager.ActiveStream())
	assert.Len(t, r.manager.Steps(), len(timing.Quadrants))
	r.tick(t, 5)
	assert.Equal(t, ModeXGait, r.manager.Mode(), "x-gait runs until superseded")

	require.Error(t, r.manager.SetXGaitSettings(stream.XGaitSettings{}))

	r.request(t, ModeStand)
	assert.Empty(t, r.manager.Steps())

	require.ErrorIs(t, r.manager.mux.Select(StreamPreplanned), stream.ErrSelectionOutsideTransition)
}

func TestManager_Fall(t *testing.T) {
	t.Parallel()
	r := newRig(t, testSettings())
	r.standing(t)

	r.request(t, ModeFall)
	r.runUntil(t, ModeFreeze, 20)

	desired := make(map[string]float64)
	r.sim.Joints().Desired(desired)
	for _, j := range legJoints {
		assert.InDelta(t, -0.5, desired[j], 1e-9, j)
	}

	r.request(t, ModeStandPrep)
}

func TestManager_SoleWaypoint(t *testing.T) {
	t.Parallel()

	t.Run("empty plan fails to freeze", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.runUntil(t, ModeStandReady, 20)

		r.request(t, ModeSoleWaypoint)
		r.tick(t, 1)
		assert.Equal(t, ModeFreeze, r.manager.Mode())
		assert.Equal(t, statemachine.EventFail, r.lastReport().Fired)
	})

	t.Run("plan finishes in freeze", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())
		r.standing(t)

		target := r3.Vec{X: 0.35, Y: 0.25, Z: 0.1}
		require.NoError(t, r.manager.SubmitSoleWaypoints(SoleWaypointPlan{
			Waypoints: map[timing.Quadrant][]SoleWaypoint{
				timing.FrontLeft: {{Time: 0.02, Position: target}},
			},
		}))
		r.request(t, ModeSoleWaypoint)
		assert.False(t, r.sim.FootSwitch(timing.FrontLeft).ControllerContact())

		r.runUntil(t, ModeFreeze, 10)
		foot, ok := r.core.foot(timing.FrontLeft)
		require.True(t, ok)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(target, foot)), 1e-9)
	})

	t.Run("out of order waypoints rejected", func(t *testing.T) {
		t.Parallel()
		r := newRig(t, testSettings())

		err := r.manager.SubmitSoleWaypoints(SoleWaypointPlan{
			Waypoints: map[timing.Quadrant][]SoleWaypoint{
				timing.HindLeft: {{Time: 1}, {Time: 0.5}},
			},
		})
		require.ErrorIs(t, err, ErrInvalidWaypoints)
	})
}

func TestManager_EnvironmentRequests(t *testing.T) {
	t.Parallel()
	r := newRig(t, testSettings())
	r.runUntil(t, ModeStandReady, 20)

	r.sim.PostModeRequest(robot.ModeRequest{Controller: "rover", Mode: "freeze"})
	r.tick(t, 1)
	assert.Equal(t, ModeFreeze, r.manager.Mode())

	r.sim.PostModeRequest(robot.ModeRequest{Controller: "rover", Mode: "moonwalk"})
	r.tick(t, 1)
	assert.Equal(t, ModeFreeze, r.manager.Mode())

	require.ErrorIs(t, r.manager.RequestMode(ModeStandReady), ErrUnknownMode)
}

func TestManager_TransitionTable(t *testing.T) {
	t.Parallel()
	r := newRig(t, testSettings())

	has := func(from Mode, event statemachine.Event, to Mode) bool {
		for _, tr := range r.manager.Machine().Transitions() {
			if tr.From == from && tr.Event == event && tr.To == to {
				return true
			}
		}
		return false
	}

	assert.True(t, has(ModeJointInitialization, statemachine.EventDone, ModeStandPrep))
	assert.False(t, has(ModeJointInitialization, statemachine.EventDone, ModeDoNothing))
	assert.True(t, has(ModeStep, EventRequestStand, ModeStand))
	assert.True(t, has(ModeXGait, EventRequestStand, ModeStand))
	assert.False(t, has(ModeStep, EventRequestXGait, ModeXGait))
	assert.True(t, has(ModeStep, statemachine.EventFail, ModeFreeze))
	assert.True(t, has(ModeXGait, statemachine.EventFail, ModeFreeze))
	for _, from := range Modes {
		assert.True(t, has(from, EventRequestDoNothing, ModeDoNothing), from)
	}
}
