// Package recovery decides, off the control goroutine, how to react to
// controller faults. The decision is a Starlark script evaluated with
// go-polyscript; its answer is posted back as a mode request.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/modectl/internal/controlloop"
	"github.com/atlanticdynamic/modectl/internal/finitestate"
	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/robbyt/go-polyscript/engines/starlark"
	"github.com/robbyt/go-polyscript/platform"
	"github.com/robbyt/go-polyscript/platform/constants"
	"github.com/robbyt/go-polyscript/platform/data"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable   = (*Policy)(nil)
	_ supervisor.Stateable  = (*Policy)(nil)
	_ controlloop.FaultSink = (*Policy)(nil)
)

const DefaultTimeout = 100 * time.Millisecond

var (
	ErrCompile     = errors.New("recovery script compilation failed")
	ErrBadDecision = errors.New("recovery script returned an unusable decision")
)

// DefaultScript picks, for a faulted quadruped, a mode the faulted state has
// an edge to: a gait falls back to STAND, a fall restarts with STAND_PREP and
// anything else freezes. A faulted hand is held in joint space.
const DefaultScript = `
LOCOMOTION_FALLBACK = {
    "STEP": "STAND",
    "XGAIT": "STAND",
    "FALL": "STAND_PREP",
}

def decide(fault):
    controller = fault.get("controller", "")
    if controller.startswith("locomotion."):
        mode = LOCOMOTION_FALLBACK.get(fault.get("state", ""), "FREEZE")
        return {"controller": controller[len("locomotion."):], "mode": mode}
    if controller.startswith("hand."):
        return {"controller": controller[len("hand."):], "mode": "JOINT_SPACE"}
    return None

_ = decide(ctx.get("fault", {}))
`

// Poster delivers mode requests to the controllers.
type Poster interface {
	PostModeRequest(req robot.ModeRequest)
}

// Policy is a supervised runnable that turns faults into mode requests.
type Policy struct {
	poster    Poster
	code      string
	path      string
	timeout   time.Duration
	static    map[string]any
	evaluator platform.Evaluator

	faults mailbox.Mailbox[controlloop.Fault]
	wake   chan struct{}

	logger *slog.Logger
	fsm    finitestate.Machine

	mu        sync.Mutex
	runCancel context.CancelFunc

	handled atomic.Uint64
}

// NewPolicy compiles the recovery script. Decisions are delivered to poster.
func NewPolicy(poster Poster, opts ...Option) (*Policy, error) {
	if poster == nil {
		return nil, errors.New("recovery policy needs a request poster")
	}
	p := &Policy{
		poster:  poster,
		code:    DefaultScript,
		timeout: DefaultTimeout,
		wake:    make(chan struct{}, 1),
		logger:  slog.Default().WithGroup("recovery.Policy"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.timeout <= 0 {
		return nil, fmt.Errorf("recovery timeout must be positive, got %s", p.timeout)
	}

	scriptLoader, err := newLoader(p.code, p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	p.evaluator, err = starlark.FromStarlarkLoader(p.logger.Handler(), scriptLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	machine, err := finitestate.New(p.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	p.fsm = machine
	return p, nil
}

func (p *Policy) String() string {
	return "recovery.Policy"
}

// Report hands f to the policy goroutine. It never blocks; when faults
// arrive faster than they are handled only the latest is kept.
func (p *Policy) Report(f controlloop.Fault) {
	p.faults.Put(f)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run handles reported faults until ctx is canceled or Stop is called.
func (p *Policy) Run(ctx context.Context) error {
	if err := p.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.runCancel = cancel
	p.mu.Unlock()
	defer cancel()

	if err := p.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	for {
		select {
		case <-runCtx.Done():
			p.logger.Debug("Run context canceled", "handled", p.handled.Load())
			return finitestate.Shutdown(p.fsm)
		case <-p.wake:
			f, ok := p.faults.Drain()
			if !ok {
				continue
			}
			p.handle(runCtx, f)
		}
	}
}

func (p *Policy) handle(ctx context.Context, f controlloop.Fault) {
	req, ok, err := p.Decide(ctx, f)
	p.handled.Add(1)
	switch {
	case err != nil:
		p.logger.Error("Recovery decision failed", "fault", f.ID, "error", err)
	case !ok:
		p.logger.Info("No recovery for fault", "fault", f.ID, "controller", f.Controller)
	default:
		p.logger.Warn("Recovering from fault",
			"fault", f.ID, "controller", req.Controller, "mode", req.Mode)
		p.poster.PostModeRequest(req)
	}
}

// Decide evaluates the script for f. It reports false when the script
// chose not to act.
func (p *Policy) Decide(ctx context.Context, f controlloop.Fault) (robot.ModeRequest, bool, error) {
	evalCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	scriptData := map[string]any{
		"data": maps.Clone(p.static),
		"fault": map[string]any{
			"id":         f.ID,
			"controller": f.Controller,
			"machine":    f.Machine,
			"state":      f.State,
			"error":      f.Err,
		},
	}
	provider := data.NewContextProvider(constants.EvalData)
	enrichedCtx, err := provider.AddDataToContext(evalCtx, scriptData)
	if err != nil {
		return robot.ModeRequest{}, false, fmt.Errorf("failed to add fault data: %w", err)
	}

	result, err := p.evaluator.Eval(enrichedCtx)
	if err != nil {
		return robot.ModeRequest{}, false, fmt.Errorf("recovery script: %w", err)
	}
	return decision(result.Interface(), f.ID)
}

func decision(v any, faultID string) (robot.ModeRequest, bool, error) {
	if v == nil {
		return robot.ModeRequest{}, false, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return robot.ModeRequest{}, false, fmt.Errorf("%w: %T", ErrBadDecision, v)
	}
	controller, _ := m["controller"].(string)
	mode, _ := m["mode"].(string)
	if controller == "" || mode == "" {
		return robot.ModeRequest{}, false, fmt.Errorf("%w: controller and mode are required", ErrBadDecision)
	}
	return robot.ModeRequest{ID: faultID, Controller: controller, Mode: mode}, true, nil
}

// Stop cancels a running policy.
func (p *Policy) Stop() {
	p.mu.Lock()
	cancel := p.runCancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Handled returns how many faults have been evaluated.
func (p *Policy) Handled() uint64 {
	return p.handled.Load()
}

func (p *Policy) GetState() string {
	return p.fsm.GetState()
}

func (p *Policy) GetStateChan(ctx context.Context) <-chan string {
	return p.fsm.GetStateChan(ctx)
}

func (p *Policy) IsRunning() bool {
	return p.fsm.GetState() == finitestate.StatusRunning
}
