package stream

import (
	"github.com/atlanticdynamic/modectl/internal/timing"
)

// Plan is a batch of timed steps. Unless AbsoluteTime is set, step intervals
// are relative to the moment the consuming state starts the plan.
type Plan struct {
	Steps        []timing.TimedStep `json:"steps"`
	AbsoluteTime bool               `json:"absolute_time,omitempty"`
}

// Validate checks every step of the plan.
func (p Plan) Validate() error {
	for _, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Preplanned replays a loaded Plan. Finished steps are dropped as time
// passes, and the stream runs dry after its last touchdown.
type Preplanned struct {
	pending Plan
	loaded  bool
	steps   []timing.TimedStep
	now     float64
	halted  bool
}

var _ Stream = (*Preplanned)(nil)

// NewPreplanned returns an empty stream with room for capacity steps.
func NewPreplanned(capacity int) *Preplanned {
	return &Preplanned{steps: make([]timing.TimedStep, 0, capacity)}
}

// Load queues plan for the next OnEntry. It replaces any plan not yet
// started.
func (p *Preplanned) Load(plan Plan) {
	p.pending = plan
	p.loaded = true
}

// Loaded reports whether a plan is waiting for OnEntry.
func (p *Preplanned) Loaded() bool {
	return p.loaded
}

func (p *Preplanned) OnEntry(now float64) {
	p.now = now
	p.halted = false
	p.steps = p.steps[:0]
	if !p.loaded {
		return
	}
	for _, s := range p.pending.Steps {
		if !p.pending.AbsoluteTime {
			s.Interval = s.Interval.Shift(now)
		}
		p.steps = append(p.steps, s)
	}
	p.pending = Plan{}
	p.loaded = false
	timing.SortByStartTime(p.steps)
	p.steps = timing.RemoveAllEndingBefore(p.steps, now)
}

func (p *Preplanned) Process(now float64) {
	p.now = now
	p.steps = timing.RemoveAllEndingBefore(p.steps, now)
	if p.halted {
		p.steps = timing.RemoveAllStartingAfter(p.steps, now)
	}
}

func (p *Preplanned) OnExit() {
	p.steps = p.steps[:0]
}

// Halt keeps the steps already in swing and drops the rest.
func (p *Preplanned) Halt() {
	p.halted = true
	p.steps = timing.RemoveAllStartingAfter(p.steps, p.now)
}

func (p *Preplanned) Steps() []timing.TimedStep {
	return p.steps
}
