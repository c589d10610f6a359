package robot

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/testutil"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func testJoints(t *testing.T) *JointState {
	t.Helper()
	js := NewJointState()
	require.NoError(t, js.Add("knee", 0, -1, 1))
	require.NoError(t, js.Add("hip", 0.5, -2, 2))
	return js
}

func TestJointState(t *testing.T) {
	t.Parallel()

	t.Run("names sorted", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"hip", "knee"}, testJoints(t).Names())
	})

	t.Run("add rejects bad limits and duplicates", func(t *testing.T) {
		t.Parallel()
		js := testJoints(t)
		assert.ErrorIs(t, js.Add("ankle", 0, 1, -1), ErrJointLimits)
		assert.Error(t, js.Add("knee", 0, -1, 1))
	})

	t.Run("get unknown", func(t *testing.T) {
		t.Parallel()
		_, err := testJoints(t).Get("elbow")
		assert.ErrorIs(t, err, ErrUnknownJoint)
	})

	t.Run("desired is clamped", func(t *testing.T) {
		t.Parallel()
		js := testJoints(t)
		js.SetDesiredFrom(map[string]float64{"knee": 5, "hip": -0.5, "elbow": 1})
		out := map[string]float64{}
		js.Desired(out)
		assert.Equal(t, map[string]float64{"knee": 1, "hip": -0.5}, out)
	})

	t.Run("positions subset", func(t *testing.T) {
		t.Parallel()
		out := map[string]float64{}
		testJoints(t).Positions(out, "hip")
		assert.Equal(t, map[string]float64{"hip": 0.5}, out)
	})

	t.Run("track without lag snaps", func(t *testing.T) {
		t.Parallel()
		js := testJoints(t)
		js.SetDesired("knee", 0.8)
		js.Track(0.01, 0)
		j, err := js.Get("knee")
		require.NoError(t, err)
		assert.InDelta(t, 0.8, j.Q, 1e-12)
		assert.InDelta(t, 80, j.QD, 1e-9)
	})

	t.Run("track with lag approaches", func(t *testing.T) {
		t.Parallel()
		js := testJoints(t)
		js.SetDesired("knee", 1)
		for range 100 {
			js.Track(0.01, 0.05)
		}
		j, err := js.Get("knee")
		require.NoError(t, err)
		assert.InDelta(t, 1, j.Q, 1e-6)
	})
}

func TestFootSwitch(t *testing.T) {
	t.Parallel()

	var fs FootSwitch
	fs.Sense(true)
	fs.SetContactState(false)

	assert.False(t, fs.InContact())
	fs.Trust(true)
	assert.True(t, fs.Trusted())
	assert.True(t, fs.InContact())
	assert.False(t, fs.ControllerContact())
}

func TestSim(t *testing.T) {
	t.Parallel()

	t.Run("time advances per tick", func(t *testing.T) {
		t.Parallel()
		s := NewSim(10*time.Millisecond, testJoints(t), nil)
		assert.Equal(t, 10*time.Millisecond, s.ControlDT())
		s.BeginTick()
		s.EndTick()
		s.EndTick()
		assert.Equal(t, uint64(2), s.Ticks())
		assert.InDelta(t, 0.02, s.Timestamp(), 1e-12)
		assert.NotNil(t, s.Frames().World())
	})

	t.Run("feet start in contact", func(t *testing.T) {
		t.Parallel()
		s := NewSim(time.Millisecond, nil, nil)
		for _, q := range timing.Quadrants {
			assert.True(t, s.FootSwitch(q).InContact(), q.String())
		}
	})

	t.Run("sole positions", func(t *testing.T) {
		t.Parallel()
		soles := [4]r3.Vec{{X: 1}, {X: 2}, {X: 3}, {X: 4}}
		s := NewSim(time.Millisecond, nil, nil, WithSolePositions(soles))
		assert.Equal(t, r3.Vec{X: 3}, s.SolePosition(timing.HindRight))
		s.SetSolePosition(timing.HindRight, r3.Vec{Z: 1})
		assert.Equal(t, r3.Vec{Z: 1}, s.SolePosition(timing.HindRight))
	})

	t.Run("mode requests are per controller and latest wins", func(t *testing.T) {
		t.Parallel()
		s := NewSim(time.Millisecond, nil, nil)
		s.RegisterController("hand")
		s.RegisterController("legs")
		s.PostModeRequest(ModeRequest{Controller: "hand", Mode: "JOINT_SPACE"})
		s.PostModeRequest(ModeRequest{Controller: "hand", Mode: "LOAD_BEARING"})

		_, ok := s.TryReceiveModeRequest("legs")
		assert.False(t, ok)

		req, ok := s.TryReceiveModeRequest("hand")
		require.True(t, ok)
		assert.Equal(t, "LOAD_BEARING", req.Mode)

		_, ok = s.TryReceiveModeRequest("hand")
		assert.False(t, ok)
	})

	t.Run("requests for unregistered controllers are dropped", func(t *testing.T) {
		t.Parallel()
		logs := &testutil.ThreadSafeBuffer{}
		s := NewSim(time.Millisecond, nil, nil, WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

		s.PostModeRequest(ModeRequest{Controller: "tail", Mode: "FREEZE"})
		_, ok := s.TryReceiveModeRequest("tail")
		assert.False(t, ok)
		assert.Contains(t, logs.String(), "unregistered controller")

		s.RegisterController("tail")
		s.RegisterController("tail")
		s.PostModeRequest(ModeRequest{Controller: "tail", Mode: "FREEZE"})
		req, ok := s.TryReceiveModeRequest("tail")
		require.True(t, ok)
		assert.Equal(t, "FREEZE", req.Mode)
	})

	t.Run("posting races with receiving and registration", func(t *testing.T) {
		t.Parallel()
		s := NewSim(time.Millisecond, nil, nil)
		s.RegisterController("hand")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.PostModeRequest(ModeRequest{Controller: "hand", Mode: "JOINT_SPACE"})
				if i == 100 {
					s.RegisterController("legs")
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 200 {
				s.TryReceiveModeRequest("hand")
				s.TryReceiveModeRequest("legs")
			}
		}()
		wg.Wait()
	})

	t.Run("joint bridge", func(t *testing.T) {
		t.Parallel()
		measured := &mailbox.Mailbox[map[string]float64]{}
		commands := &mailbox.Mailbox[map[string]float64]{}
		js := testJoints(t)
		s := NewSim(time.Millisecond, js, nil, WithJointBridge(measured, commands))

		measured.Put(map[string]float64{"knee": 0.3})
		s.BeginTick()
		j, err := js.Get("knee")
		require.NoError(t, err)
		assert.InDelta(t, 0.3, j.Q, 1e-12)

		js.SetDesired("hip", 1.5)
		s.EndTick()
		out, ok := commands.Drain()
		require.True(t, ok)
		assert.Equal(t, 1.5, out["hip"])
		// measured positions are left to the hardware
		assert.InDelta(t, 0.3, j.Q, 1e-12)
	})
}

// Not parallel: AllocsPerRun counts allocations of every goroutine.
func TestSim_ReceiveDoesNotAllocate(t *testing.T) {
	s := NewSim(time.Millisecond, nil, nil)
	s.RegisterController("hand")
	s.PostModeRequest(ModeRequest{Controller: "hand", Mode: "JOINT_SPACE"})

	allocs := testing.AllocsPerRun(100, func() {
		s.TryReceiveModeRequest("hand")
		s.TryReceiveModeRequest("legs")
	})
	assert.Zero(t, allocs)
}
