package wbc

import (
	"errors"
	"testing"

	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type MockCore struct {
	mock.Mock
}

func (m *MockCore) Submit(cmd Command) {
	m.Called(cmd)
}

func (m *MockCore) Compute() error {
	return m.Called().Error(0)
}

func (m *MockCore) Output() Output {
	return m.Called().Get(0).(Output)
}

func TestCommandList(t *testing.T) {
	t.Parallel()

	l := NewCommandList(4)
	l.Add(MomentumRate{})
	l.Add(ContactForce{Quadrant: timing.FrontLeft})
	l.Add(ContactForce{Quadrant: timing.HindLeft})
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 2, l.Count(KindContactForce))
	assert.Equal(t, 1, l.Count(KindMomentumRate))

	l.Reset()
	assert.Zero(t, l.Len())
	assert.Equal(t, 4, cap(l.Commands()))
}

func TestKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "joint_feedback", JointFeedback{}.Kind().String())
	assert.Equal(t, "contact_force", ContactForce{}.Kind().String())
	assert.Equal(t, "momentum_rate", MomentumRate{}.Kind().String())
	assert.Equal(t, "foot_feedback", FootFeedback{}.Kind().String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestTickGuard(t *testing.T) {
	t.Parallel()

	t.Run("submit then compute once", func(t *testing.T) {
		core := &MockCore{}
		cmd := MomentumRate{Linear: r3.Vec{Z: 1}}
		core.On("Submit", cmd).Once()
		core.On("Compute").Return(nil).Once()

		g := NewTickGuard(core)
		assert.ErrorIs(t, g.Compute(), ErrTickNotStarted)

		g.BeginTick()
		g.Submit(cmd)
		require.NoError(t, g.Compute())
		assert.ErrorIs(t, g.Compute(), ErrAlreadyComputed)

		g.Submit(cmd)
		assert.ErrorIs(t, g.Err(), ErrSubmitAfterCompute)

		g.BeginTick()
		assert.NoError(t, g.Err())
		core.AssertExpectations(t)
	})

	t.Run("core error is returned", func(t *testing.T) {
		boom := errors.New("solver diverged")
		core := &MockCore{}
		core.On("Compute").Return(boom)

		g := NewTickGuard(core)
		g.BeginTick()
		assert.ErrorIs(t, g.Compute(), boom)
	})

	t.Run("output passes through", func(t *testing.T) {
		core := &MockCore{}
		want := Output{LinearMomentumRate: r3.Vec{X: 2}}
		core.On("Output").Return(want)
		assert.Equal(t, want, NewTickGuard(core).Output())
	})
}

func TestReferenceCore(t *testing.T) {
	t.Parallel()

	positions := map[string]float64{"knee": 0.5}
	core := NewReferenceCore(10, 9.81, positions)
	assert.InDelta(t, 98.1, core.Weight(), 1e-9)

	core.Submit(ContactForce{Quadrant: timing.FrontLeft, Force: r3.Vec{Z: 50}})
	core.Submit(ContactForce{Quadrant: timing.HindRight, Force: r3.Vec{Z: 48.1}})
	core.Submit(JointFeedback{Joint: "knee", Position: 1, Stiffness: 10, Damping: 1, Velocity: 0.2})
	require.NoError(t, core.Compute())

	out := core.Output()
	assert.InDelta(t, 0, out.LinearMomentumRate.Z, 1e-9)
	assert.InDelta(t, 50, out.ContactForces[timing.FrontLeft].Z, 1e-9)
	assert.InDelta(t, 5.2, out.JointTorques["knee"], 1e-9)

	require.NoError(t, core.Compute())
	assert.InDelta(t, -98.1, core.Output().LinearMomentumRate.Z, 1e-9, "pending commands are consumed")
}
