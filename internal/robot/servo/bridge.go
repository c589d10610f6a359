// Package servo connects the joint state to Feetech STS servos over a serial
// bus. The Bridge polls positions into a mailbox the control loop drains, and
// writes whatever desired positions the control loop last posted.
package servo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/atlanticdynamic/modectl/internal/finitestate"
	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable  = (*Bridge)(nil)
	_ supervisor.Stateable = (*Bridge)(nil)
)

const (
	DefaultBaudRate = 1_000_000
	DefaultPeriod   = 10 * time.Millisecond
)

// Group is the subset of a feetech servo group the bridge drives.
type Group interface {
	Positions(ctx context.Context) (feetech.PositionMap, error)
	SetPositions(ctx context.Context, positions feetech.PositionMap) error
	EnableAll(ctx context.Context) error
	DisableAll(ctx context.Context) error
}

// Opener connects to the servos. The returned Closer releases the bus.
type Opener func(ids []int) (Group, io.Closer, error)

// BusOpener opens a serial bus on port using the STS protocol.
func BusOpener(port string, baud int) Opener {
	return func(ids []int) (Group, io.Closer, error) {
		bus, err := feetech.NewBus(feetech.BusConfig{
			Port:     port,
			BaudRate: baud,
			Protocol: feetech.ProtocolSTS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open bus %s: %w", port, err)
		}
		return feetech.NewServoGroupByIDs(bus, ids...), bus, nil
	}
}

// Bridge is a supervised runnable that shuttles joint positions between the
// servo bus and the control loop mailboxes.
type Bridge struct {
	calibration Calibration
	open        Opener
	period      time.Duration

	measured *mailbox.Mailbox[map[string]float64]
	commands *mailbox.Mailbox[map[string]float64]

	logger *slog.Logger
	fsm    finitestate.Machine

	mu        sync.Mutex
	runCancel context.CancelFunc
}

// NewBridge creates a bridge for cal. Measured positions, in radians, are put
// on measured; desired positions are drained from commands.
func NewBridge(
	cal Calibration,
	measured, commands *mailbox.Mailbox[map[string]float64],
	opts ...Option,
) (*Bridge, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	b := &Bridge{
		calibration: cal,
		period:      DefaultPeriod,
		measured:    measured,
		commands:    commands,
		logger:      slog.Default().WithGroup("servo.Bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.open == nil {
		return nil, fmt.Errorf("no servo bus configured")
	}

	machine, err := finitestate.New(b.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	b.fsm = machine
	return b, nil
}

func (b *Bridge) String() string {
	return "servo.Bridge"
}

// Run opens the bus, enables torque and polls until ctx is canceled or Stop is
// called. Torque is disabled again on the way out.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.runCancel = cancel
	b.mu.Unlock()
	defer cancel()

	group, closer, err := b.open(b.calibration.IDs())
	if err != nil {
		finitestate.Fail(b.fsm, b.logger)
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			b.logger.Warn("Failed to close servo bus", "error", err)
		}
	}()

	if err := group.EnableAll(runCtx); err != nil {
		finitestate.Fail(b.fsm, b.logger)
		return fmt.Errorf("enable torque: %w", err)
	}

	if err := b.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	b.logger.Info("Servo bridge running", "servos", len(b.calibration), "period", b.period)

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			b.logger.Debug("Run context canceled")
			// runCtx is already done; torque off needs a live context.
			if err := group.DisableAll(context.Background()); err != nil {
				b.logger.Warn("Failed to disable torque", "error", err)
			}
			return finitestate.Shutdown(b.fsm)
		case <-ticker.C:
			b.poll(runCtx, group)
		}
	}
}

func (b *Bridge) poll(ctx context.Context, group Group) {
	raw, err := group.Positions(ctx)
	if err != nil {
		b.logger.Warn("Failed to read positions", "error", err)
	} else {
		b.measured.Put(b.toJoints(raw))
	}

	desired, ok := b.commands.Drain()
	if !ok {
		return
	}
	if err := group.SetPositions(ctx, b.toRaw(desired)); err != nil {
		b.logger.Warn("Failed to write positions", "error", err)
	}
}

func (b *Bridge) toJoints(raw feetech.PositionMap) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for id, pos := range raw {
		ch, ok := b.calibration.ByID(id)
		if !ok {
			continue
		}
		out[ch.Joint] = ch.ToRadians(pos)
	}
	return out
}

func (b *Bridge) toRaw(desired map[string]float64) feetech.PositionMap {
	out := make(feetech.PositionMap, len(desired))
	for joint, q := range desired {
		ch, ok := b.calibration.ByJoint(joint)
		if !ok {
			continue
		}
		out[ch.ID] = ch.ToRaw(q)
	}
	return out
}

// Stop cancels a running bridge.
func (b *Bridge) Stop() {
	b.logger.Debug("Stopping servo bridge")
	b.mu.Lock()
	cancel := b.runCancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Bridge) GetState() string {
	return b.fsm.GetState()
}

func (b *Bridge) GetStateChan(ctx context.Context) <-chan string {
	return b.fsm.GetStateChan(ctx)
}

func (b *Bridge) IsRunning() bool {
	return b.fsm.GetState() == finitestate.StatusRunning
}
