package stream

import (
	"testing"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	name    string
	halts   int
	entries int
	ticks   int
	steps   []timing.TimedStep
}

func (f *fakeStream) OnEntry(float64)           { f.entries++ }
func (f *fakeStream) Process(float64)           { f.ticks++ }
func (f *fakeStream) OnExit()                   {}
func (f *fakeStream) Halt()                     { f.halts++ }
func (f *fakeStream) Steps() []timing.TimedStep { return f.steps }

func TestMultiplexer_DefaultsToNop(t *testing.T) {
	t.Parallel()

	m := NewMultiplexer[string]()
	assert.Equal(t, NopStream{}, m.Active())
	assert.Empty(t, m.Steps())
	_, ok := m.ActiveKey()
	assert.False(t, ok)

	m.OnEntry(0)
	m.Process(0)
	m.Halt()
	m.OnExit()
}

func TestMultiplexer_Register(t *testing.T) {
	t.Parallel()

	m := NewMultiplexer[string]()
	require.NoError(t, m.Register("a", &fakeStream{}))
	assert.ErrorIs(t, m.Register("a", &fakeStream{}), ErrDuplicateStream)
	assert.ErrorIs(t, m.Register("b", nil), ErrUnknownStream)
	assert.ErrorIs(t, m.Select("missing"), ErrUnknownStream)
}

func TestMultiplexer_SelectHaltsPrevious(t *testing.T) {
	t.Parallel()

	a := &fakeStream{name: "a", steps: []timing.TimedStep{{SequenceID: 1}}}
	b := &fakeStream{name: "b", steps: []timing.TimedStep{{SequenceID: 2}}}
	m := NewMultiplexer[string]()
	require.NoError(t, m.Register("a", a))
	require.NoError(t, m.Register("b", b))

	require.NoError(t, m.Select("a"))
	assert.Zero(t, a.halts)

	require.NoError(t, m.Select("a"))
	assert.Zero(t, a.halts, "re-selecting the active stream is a no-op")

	require.NoError(t, m.Select("b"))
	assert.Equal(t, 1, a.halts)
	assert.Zero(t, b.halts)
	assert.Same(t, b, m.Active())
	key, ok := m.ActiveKey()
	require.True(t, ok)
	assert.Equal(t, "b", key)

	m.Process(0)
	assert.Equal(t, 1, b.ticks)
	assert.Zero(t, a.ticks)
	assert.Equal(t, uint64(2), m.Steps()[0].SequenceID)
}

func TestMultiplexer_GatedByTransition(t *testing.T) {
	t.Parallel()

	type mode string
	const (
		stand mode = "STAND"
		step  mode = "STEP"
	)
	const requestStep statemachine.Event = "REQUEST_STEP"

	a := &fakeStream{name: "gait"}
	b := &fakeStream{name: "planned"}
	m := NewMultiplexer[string]()
	require.NoError(t, m.Register("gait", a))
	require.NoError(t, m.Register("planned", b))
	require.NoError(t, m.Select("gait"), "initial selection happens before the gate is installed")

	machine := statemachine.New[mode]()
	require.NoError(t, machine.AddState(stand, &statemachine.StateFuncs{}))
	require.NoError(t, machine.AddState(step, &statemachine.StateFuncs{Step: func() (statemachine.Event, error) {
		assert.Same(t, b, m.Active())
		return statemachine.EventNone, nil
	}}))
	require.NoError(t, machine.AddTransition(requestStep, stand, step, nil))
	var selectErr error
	require.NoError(t, machine.AddCallback(requestStep, stand, func() {
		selectErr = m.Select("planned")
	}))
	require.NoError(t, machine.Build(stand))
	m.RestrictSelection(machine.InTransition)

	assert.ErrorIs(t, m.Select("planned"), ErrSelectionOutsideTransition)
	assert.Same(t, a, m.Active())

	machine.Trigger(requestStep)
	require.NoError(t, machine.Process())
	require.NoError(t, selectErr)
	assert.Equal(t, 1, a.halts, "prior producer halted exactly once")

	for range 5 {
		require.NoError(t, machine.Process())
		assert.Same(t, b, m.Active())
	}
	assert.Equal(t, 1, a.halts)
}
