package servo

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/atlanticdynamic/modectl/internal/finitestate"
	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGroup struct {
	mu       sync.Mutex
	raw      feetech.PositionMap
	written  []feetech.PositionMap
	enabled  bool
	readErr  error
	closed   bool
	disabled bool
}

func (g *fakeGroup) Positions(context.Context) (feetech.PositionMap, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readErr != nil {
		return nil, g.readErr
	}
	out := make(feetech.PositionMap, len(g.raw))
	for id, pos := range g.raw {
		out[id] = pos
	}
	return out, nil
}

func (g *fakeGroup) SetPositions(_ context.Context, positions feetech.PositionMap) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.written = append(g.written, positions)
	return nil
}

func (g *fakeGroup) EnableAll(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = true
	return nil
}

func (g *fakeGroup) DisableAll(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disabled = true
	return nil
}

func (g *fakeGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *fakeGroup) writes() []feetech.PositionMap {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]feetech.PositionMap(nil), g.written...)
}

func testCalibration() Calibration {
	return Calibration{
		{Joint: "shoulder", ID: 1, RawMin: 0, RawMax: 4096, Lower: -math.Pi, Upper: math.Pi},
		{Joint: "elbow", ID: 2, RawMin: 1024, RawMax: 3072, Lower: 0, Upper: math.Pi},
	}
}

func TestChannel(t *testing.T) {
	t.Parallel()

	ch := testCalibration()[0]

	t.Run("midpoint is zero", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0, ch.ToRadians(2048), 1e-9)
		assert.Equal(t, 2048, ch.ToRaw(0))
	})

	t.Run("out of range clamps", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 4096, ch.ToRaw(10))
		assert.Equal(t, 0, ch.ToRaw(-10))
	})

	t.Run("round trip within one count", func(t *testing.T) {
		t.Parallel()
		q := ch.ToRadians(ch.ToRaw(1.0))
		assert.InDelta(t, 1.0, q, 2*math.Pi/4096)
	})
}

func TestCalibrationValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, testCalibration().Validate())
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, Calibration{}.Validate(), ErrNoChannels)
	})

	t.Run("duplicates and empty range", func(t *testing.T) {
		t.Parallel()
		cal := Calibration{
			{Joint: "a", ID: 1, RawMin: 0, RawMax: 10},
			{Joint: "a", ID: 1, RawMin: 5, RawMax: 5},
		}
		err := cal.Validate()
		assert.ErrorIs(t, err, ErrDuplicateID)
		assert.ErrorIs(t, err, ErrDuplicateJoint)
		assert.ErrorIs(t, err, ErrEmptyRawRange)
	})
}

func TestBridge(t *testing.T) {
	t.Parallel()

	t.Run("requires a bus", func(t *testing.T) {
		t.Parallel()
		_, err := NewBridge(testCalibration(), &mailbox.Mailbox[map[string]float64]{}, &mailbox.Mailbox[map[string]float64]{})
		require.Error(t, err)
	})

	t.Run("polls and writes", func(t *testing.T) {
		t.Parallel()
		group := &fakeGroup{raw: feetech.PositionMap{1: 2048, 2: 1024}}
		measured := &mailbox.Mailbox[map[string]float64]{}
		commands := &mailbox.Mailbox[map[string]float64]{}

		var openedIDs []int
		b, err := NewBridge(testCalibration(), measured, commands,
			WithPeriod(time.Millisecond),
			WithOpener(func(ids []int) (Group, io.Closer, error) {
				openedIDs = ids
				return group, group, nil
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, "servo.Bridge", b.String())

		done := make(chan error, 1)
		go func() { done <- b.Run(t.Context()) }()

		require.Eventually(t, b.IsRunning, time.Second, time.Millisecond)
		assert.Equal(t, []int{1, 2}, openedIDs)

		var got map[string]float64
		require.Eventually(t, func() bool {
			m, ok := measured.Drain()
			got = m
			return ok
		}, time.Second, time.Millisecond)
		assert.InDelta(t, 0, got["shoulder"], 1e-9)
		assert.InDelta(t, 0, got["elbow"], 1e-9)

		commands.Put(map[string]float64{"elbow": math.Pi, "unknown": 1})
		require.Eventually(t, func() bool {
			return len(group.writes()) > 0
		}, time.Second, time.Millisecond)
		assert.Equal(t, feetech.PositionMap{2: 3072}, group.writes()[0])

		b.Stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("bridge did not stop")
		}
		assert.Equal(t, finitestate.StatusStopped, b.GetState())
		assert.True(t, group.enabled)
		assert.True(t, group.disabled)
		assert.True(t, group.closed)
	})

	t.Run("open failure", func(t *testing.T) {
		t.Parallel()
		b, err := NewBridge(testCalibration(),
			&mailbox.Mailbox[map[string]float64]{}, &mailbox.Mailbox[map[string]float64]{},
			WithOpener(func([]int) (Group, io.Closer, error) {
				return nil, nil, errors.New("no such port")
			}),
		)
		require.NoError(t, err)
		require.Error(t, b.Run(t.Context()))
		assert.Equal(t, finitestate.StatusError, b.GetState())
	})

	t.Run("read errors keep polling", func(t *testing.T) {
		t.Parallel()
		group := &fakeGroup{readErr: errors.New("timeout")}
		measured := &mailbox.Mailbox[map[string]float64]{}
		b, err := NewBridge(testCalibration(), measured, &mailbox.Mailbox[map[string]float64]{},
			WithPeriod(time.Millisecond),
			WithOpener(func([]int) (Group, io.Closer, error) { return group, group, nil }),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() { done <- b.Run(ctx) }()
		require.Eventually(t, b.IsRunning, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		assert.False(t, measured.Pending())

		cancel()
		require.NoError(t, <-done)
	})
}
