package finitestate

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("typical path", func(t *testing.T) {
		t.Parallel()
		m, err := New(slog.Default().Handler())
		require.NoError(t, err)
		assert.Equal(t, StatusNew, m.GetState())

		require.NoError(t, m.Transition(StatusBooting))
		require.NoError(t, m.Transition(StatusRunning))
		require.NoError(t, Shutdown(m))
		assert.Equal(t, StatusStopped, m.GetState())
	})

	t.Run("shutdown from stopping", func(t *testing.T) {
		t.Parallel()
		m, err := New(slog.Default().Handler())
		require.NoError(t, err)
		require.NoError(t, m.Transition(StatusBooting))
		require.NoError(t, m.Transition(StatusRunning))
		require.NoError(t, m.Transition(StatusStopping))
		require.NoError(t, Shutdown(m))
		assert.Equal(t, StatusStopped, m.GetState())
	})

	t.Run("fail", func(t *testing.T) {
		t.Parallel()
		m, err := New(slog.Default().Handler())
		require.NoError(t, err)
		require.NoError(t, m.Transition(StatusBooting))
		Fail(m, slog.Default())
		assert.Equal(t, StatusError, m.GetState())
	})

	t.Run("invalid transition", func(t *testing.T) {
		t.Parallel()
		m, err := New(slog.Default().Handler())
		require.NoError(t, err)
		assert.Error(t, m.Transition(StatusRunning))
		assert.False(t, m.TransitionBool(StatusStopped))
	})
}
