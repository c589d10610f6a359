package recovery

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlanticdynamic/modectl/internal/controlloop"
	"github.com/atlanticdynamic/modectl/internal/finitestate"
	"github.com/atlanticdynamic/modectl/internal/locomotion"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/atlanticdynamic/modectl/internal/testutil"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type chanPoster struct {
	requests chan robot.ModeRequest
}

func newChanPoster() *chanPoster {
	return &chanPoster{requests: make(chan robot.ModeRequest, 8)}
}

func (p *chanPoster) PostModeRequest(req robot.ModeRequest) {
	p.requests <- req
}

func fault(controller string) controlloop.Fault {
	return faultIn(controller, "STEP")
}

func faultIn(controller, state string) controlloop.Fault {
	return controlloop.Fault{
		ID:         "0190c8a4-0000-6000-8000-000000000001",
		Controller: controller,
		Machine:    controller,
		State:      state,
		Err:        "swing trajectory diverged",
		Time:       time.Unix(100, 0),
	}
}

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	t.Run("default script compiles", func(t *testing.T) {
		p, err := NewPolicy(newChanPoster())
		require.NoError(t, err)
		assert.Equal(t, "recovery.Policy", p.String())
		assert.Equal(t, finitestate.StatusNew, p.GetState())
	})

	t.Run("nil poster", func(t *testing.T) {
		_, err := NewPolicy(nil)
		require.Error(t, err)
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := NewPolicy(newChanPoster(), WithScript("def broken(:\n"))
		require.ErrorIs(t, err, ErrCompile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPolicy(newChanPoster(), WithScriptFile(filepath.Join(t.TempDir(), "nope.star")))
		require.ErrorIs(t, err, ErrCompile)
	})

	t.Run("bad timeout", func(t *testing.T) {
		_, err := NewPolicy(newChanPoster(), WithTimeout(0))
		require.Error(t, err)
	})
}

func TestPolicy_Decide(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	p, err := NewPolicy(newChanPoster())
	require.NoError(t, err)

	t.Run("locomotion fault picks a reachable mode", func(t *testing.T) {
		tests := []struct {
			state string
			want  string
		}{
			{"STEP", "STAND"},
			{"XGAIT", "STAND"},
			{"FALL", "STAND_PREP"},
			{"STAND", "FREEZE"},
			{"STAND_PREP", "FREEZE"},
			{"SOLE_WAYPOINT", "FREEZE"},
			{"", "FREEZE"},
		}
		for _, tt := range tests {
			t.Run(tt.state, func(t *testing.T) {
				req, ok, err := p.Decide(ctx, faultIn("locomotion.rover", tt.state))
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, robot.ModeRequest{
					ID:         "0190c8a4-0000-6000-8000-000000000001",
					Controller: "rover",
					Mode:       tt.want,
				}, req)
			})
		}
	})

	t.Run("hand fault holds joints", func(t *testing.T) {
		req, ok, err := p.Decide(ctx, fault("hand.left"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "left", req.Controller)
		assert.Equal(t, "JOINT_SPACE", req.Mode)
	})

	t.Run("unknown controller is ignored", func(t *testing.T) {
		_, ok, err := p.Decide(ctx, fault("arm.right"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPolicy_CustomScripts(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	t.Run("static data reaches the script", func(t *testing.T) {
		script := `
def decide(fault, cfg):
    return {"controller": cfg.get("target", ""), "mode": cfg.get("mode", "")}

_ = decide(ctx.get("fault", {}), ctx.get("data", {}))
`
		p, err := NewPolicy(newChanPoster(),
			WithScript(script),
			WithStaticData(map[string]any{"target": "rover", "mode": "FALL"}),
		)
		require.NoError(t, err)

		req, ok, err := p.Decide(ctx, fault("locomotion.rover"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "FALL", req.Mode)
	})

	t.Run("script from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.star")
		require.NoError(t, os.WriteFile(path, []byte(DefaultScript), 0o600))

		p, err := NewPolicy(newChanPoster(), WithScriptFile(path))
		require.NoError(t, err)

		req, ok, err := p.Decide(ctx, fault("hand.right"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "right", req.Controller)
	})

	t.Run("wrong result type", func(t *testing.T) {
		p, err := NewPolicy(newChanPoster(), WithScript(`_ = "freeze everything"`))
		require.NoError(t, err)

		_, _, err = p.Decide(ctx, fault("locomotion.rover"))
		require.ErrorIs(t, err, ErrBadDecision)
	})

	t.Run("incomplete decision", func(t *testing.T) {
		p, err := NewPolicy(newChanPoster(), WithScript(`_ = {"controller": "rover"}`))
		require.NoError(t, err)

		_, _, err = p.Decide(ctx, fault("locomotion.rover"))
		require.ErrorIs(t, err, ErrBadDecision)
	})
}

func TestPolicy_Run(t *testing.T) {
	t.Parallel()

	poster := newChanPoster()
	logs := &testutil.ThreadSafeBuffer{}
	p, err := NewPolicy(poster, WithLogHandler(slog.NewTextHandler(logs, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	p.Report(faultIn("locomotion.rover", "STAND"))
	select {
	case req := <-poster.requests:
		assert.Equal(t, "rover", req.Controller)
		assert.Equal(t, "FREEZE", req.Mode)
	case <-time.After(2 * time.Second):
		t.Fatal("no recovery request posted")
	}
	assert.Eventually(t, func() bool { return p.Handled() == 1 }, time.Second, time.Millisecond)

	p.Report(fault("arm.right"))
	assert.Eventually(t, func() bool { return p.Handled() == 2 }, time.Second, time.Millisecond)
	assert.Empty(t, poster.requests)
	assert.Contains(t, logs.String(), "Recovering from fault")
	assert.Contains(t, logs.String(), "No recovery for fault")

	p.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("policy did not stop")
	}
	assert.Equal(t, finitestate.StatusStopped, p.GetState())
}

func TestPolicy_RecoversFaultedGait(t *testing.T) {
	t.Parallel()

	joints := robot.NewJointState()
	settings := locomotion.DefaultSettings()
	settings.NominalPosture = make(map[string]float64)
	settings.FoldPosture = make(map[string]float64)
	for _, j := range []string{"fl_hip", "fr_hip", "hl_hip", "hr_hip"} {
		require.NoError(t, joints.Add(j, 0, -2, 2))
		settings.NominalPosture[j] = 0.5
		settings.FoldPosture[j] = -0.5
	}
	settings.StandPrepDuration = 0.05
	soles := [4]r3.Vec{
		timing.FrontLeft:  {X: 0.3, Y: 0.2},
		timing.FrontRight: {X: 0.3, Y: -0.2},
		timing.HindRight:  {X: -0.3, Y: -0.2},
		timing.HindLeft:   {X: -0.3, Y: 0.2},
	}
	sim := robot.NewSim(10*time.Millisecond, joints, nil, robot.WithJointLag(0), robot.WithSolePositions(soles))

	manager, err := locomotion.NewManager("rover", sim, settings)
	require.NoError(t, err)
	p, err := NewPolicy(sim, WithLogHandler(slog.NewTextHandler(&testutil.ThreadSafeBuffer{}, nil)))
	require.NoError(t, err)
	loop, err := controlloop.NewRunner(
		[]controlloop.Controller{manager},
		controlloop.WithEnvironment(sim),
		controlloop.WithFaultSink(p),
	)
	require.NoError(t, err)

	for range 20 {
		if manager.Mode() == locomotion.ModeStandReady {
			break
		}
		require.NoError(t, loop.Tick())
	}
	require.Equal(t, locomotion.ModeStandReady, manager.Mode())
	require.NoError(t, manager.RequestMode(locomotion.ModeStand))
	require.NoError(t, loop.Tick())
	require.Equal(t, locomotion.ModeStand, manager.Mode())

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)

	broken := stream.Plan{Steps: []timing.TimedStep{{
		Interval: timing.TimeInterval{Start: 0, End: 1},
		Quadrant: timing.HindLeft,
		Goal:     r3.Vec{X: math.NaN()},
	}}}
	require.NoError(t, manager.SubmitStepPlan(broken))
	require.NoError(t, loop.Tick())
	require.Equal(t, locomotion.ModeStep, manager.Mode())
	require.Positive(t, loop.Faults())

	// The loop keeps ticking on this goroutine until the decision lands.
	deadline := time.Now().Add(2 * time.Second)
	for manager.Mode() == locomotion.ModeStep && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		require.NoError(t, loop.Tick())
	}
	assert.Equal(t, locomotion.ModeStand, manager.Mode())
	assert.Positive(t, p.Handled())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("policy did not stop")
	}
}
