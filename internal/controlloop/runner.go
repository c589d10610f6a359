// Package controlloop runs the control modules at a fixed period on a single
// goroutine, as a supervised runnable.
package controlloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/modectl/internal/finitestate"
	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-supervisor/supervisor"
)

var _ supervisor.Runnable = (*Runner)(nil)

const DefaultPeriod = 10 * time.Millisecond

var ErrNoControllers = errors.New("no controllers to run")

// Controller is one control module ticked by the Runner.
type Controller interface {
	String() string
	// DoControl runs one tick. It must not block.
	DoControl() error
}

// TickEnvironment is the part of the robot environment the Runner drives
// around each tick.
type TickEnvironment interface {
	BeginTick()
	EndTick()
}

// Fault describes a tick on which a controller's active state failed. The
// controller keeps running in its mode.
type Fault struct {
	ID         string    `json:"id"`
	Controller string    `json:"controller"`
	Machine    string    `json:"machine"`
	State      string    `json:"state"`
	Err        string    `json:"error"`
	Time       time.Time `json:"time"`
}

// FaultSink receives faults on the control goroutine. Report must not block.
type FaultSink interface {
	Report(f Fault)
}

// Runner ticks its controllers in order, once per period.
type Runner struct {
	controllers []Controller
	env         TickEnvironment
	period      time.Duration
	history     *History
	sinks       []FaultSink

	logger *slog.Logger
	fsm    finitestate.Machine

	mu        sync.Mutex
	runCancel context.CancelFunc

	ticks  atomic.Uint64
	faults atomic.Uint64
}

// NewRunner creates a Runner for controllers.
func NewRunner(controllers []Controller, opts ...Option) (*Runner, error) {
	if len(controllers) == 0 {
		return nil, ErrNoControllers
	}
	r := &Runner{
		controllers: controllers,
		period:      DefaultPeriod,
		logger:      slog.Default().WithGroup("controlloop.Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.period <= 0 {
		return nil, fmt.Errorf("control period must be positive, got %s", r.period)
	}

	machine, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = machine
	return r, nil
}

func (r *Runner) String() string {
	return "controlloop.Runner"
}

// Run ticks the controllers until ctx is canceled or Stop is called. A
// RuntimeOperationError is recorded as a fault and the loop goes on; any
// other controller error stops the loop in the Error state.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.runCancel = cancel
	r.mu.Unlock()
	defer cancel()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Info("Control loop running", "controllers", len(r.controllers), "period", r.period)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			r.logger.Debug("Run context canceled", "ticks", r.ticks.Load())
			return finitestate.Shutdown(r.fsm)
		case <-ticker.C:
			if err := r.Tick(); err != nil {
				r.logger.Error("Control loop stopped", "error", err)
				finitestate.Fail(r.fsm, r.logger)
				return err
			}
		}
	}
}

// Tick runs every controller once. It returns the errors that are not
// RuntimeOperationErrors.
func (r *Runner) Tick() error {
	if r.env != nil {
		r.env.BeginTick()
	}

	var errz []error
	for _, c := range r.controllers {
		err := c.DoControl()
		switch {
		case err == nil:
		case statemachine.IsRuntimeOperationError(err):
			r.fault(c, err)
		default:
			errz = append(errz, fmt.Errorf("%s: %w", c, err))
		}
	}

	if r.env != nil {
		r.env.EndTick()
	}
	r.ticks.Add(1)
	return errors.Join(errz...)
}

func (r *Runner) fault(c Controller, err error) {
	f := Fault{
		Controller: c.String(),
		Err:        err.Error(),
		Time:       time.Now(),
	}
	if id, idErr := uuid.NewV6(); idErr == nil {
		f.ID = id.String()
	}
	var rerr *statemachine.RuntimeOperationError
	if errors.As(err, &rerr) {
		f.Machine = rerr.Machine
		f.State = rerr.State
		f.Err = rerr.Err.Error()
	}

	r.faults.Add(1)
	r.logger.Warn("Controller fault", "id", f.ID, "controller", f.Controller, "state", f.State, "error", f.Err)
	if r.history != nil {
		r.history.Fault(f)
	}
	for _, sink := range r.sinks {
		sink.Report(f)
	}
}

// Stop cancels a running loop.
func (r *Runner) Stop() {
	r.logger.Debug("Stopping control loop")
	r.mu.Lock()
	cancel := r.runCancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Ticks returns how many ticks have completed.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// Faults returns how many faults have been reported.
func (r *Runner) Faults() uint64 {
	return r.faults.Load()
}
