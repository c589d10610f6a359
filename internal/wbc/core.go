// Package wbc defines the boundary to the whole-body controller core: the
// solver that turns per-tick feedback and virtual-model commands into joint
// actuation.
//
// The solver itself lives outside this repository. Core is the contract,
// TickGuard enforces the submit-then-compute-once rhythm, and ReferenceCore
// is a minimal aggregating implementation used for simulation and tests.
package wbc

import (
	"errors"

	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrAlreadyComputed    = errors.New("whole-body core already computed this tick")
	ErrSubmitAfterCompute = errors.New("command submitted after compute")
	ErrTickNotStarted     = errors.New("whole-body tick not started")
)

// Output is what the core achieved on its last Compute.
type Output struct {
	LinearMomentumRate r3.Vec
	ContactForces      [len(timing.Quadrants)]r3.Vec
	JointTorques       map[string]float64
}

// Core is the whole-body controller core. Submit is called any number of
// times during a tick, then Compute exactly once. Output is readable until
// the next Compute. A Core is never used concurrently.
type Core interface {
	Submit(cmd Command)
	Compute() error
	Output() Output
}

// TickGuard wraps a Core and rejects calls that break the per-tick
// contract.
type TickGuard struct {
	core     Core
	started  bool
	computed bool
	err      error
}

var _ Core = (*TickGuard)(nil)

func NewTickGuard(core Core) *TickGuard {
	return &TickGuard{core: core}
}

// BeginTick opens a new tick.
func (g *TickGuard) BeginTick() {
	g.started = true
	g.computed = false
	g.err = nil
}

// Submit forwards cmd unless the tick has already been computed. The
// violation is reported by the next Compute.
func (g *TickGuard) Submit(cmd Command) {
	if g.computed {
		g.err = ErrSubmitAfterCompute
		return
	}
	g.core.Submit(cmd)
}

func (g *TickGuard) Compute() error {
	switch {
	case !g.started:
		return ErrTickNotStarted
	case g.computed:
		return ErrAlreadyComputed
	}
	g.computed = true
	return g.core.Compute()
}

// Err returns a contract violation recorded since BeginTick.
func (g *TickGuard) Err() error {
	return g.err
}

func (g *TickGuard) Output() Output {
	return g.core.Output()
}
