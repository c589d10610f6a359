package statemachine

// Event is either an automatic event reported by the active state or a
// requested event issued from outside the machine.
type Event string

const (
	// EventNone is returned by a state that has nothing to report this tick.
	EventNone Event = ""
	// EventDone is reported by a state that reached its goal.
	EventDone Event = "DONE"
	// EventFail is reported by a state that cannot continue.
	EventFail Event = "FAIL"
)

func (e Event) String() string {
	if e == EventNone {
		return "NONE"
	}
	return string(e)
}

// IsAutomatic reports whether e is one of the self-reported events.
func (e Event) IsAutomatic() bool {
	return e == EventDone || e == EventFail
}

// State is the behavior bound to one or more keys of a Machine.
//
// Instances are reused across activations, so all per-activation state
// (timers, progress counters, captured setpoints) must be reset in OnEntry.
// Process runs on the control goroutine and must return in bounded time
// without blocking.
type State interface {
	OnEntry()
	Process() (Event, error)
	OnExit()
}

// Guard is evaluated when a transition is being resolved.
type Guard func() bool

// Callback runs when its transition fires, after the old state exits and
// before the new state enters.
type Callback func()

// StateFuncs adapts plain functions to the State interface. Nil fields are
// treated as no-ops.
type StateFuncs struct {
	Entry func()
	Step  func() (Event, error)
	Exit  func()
}

var _ State = (*StateFuncs)(nil)

func (s *StateFuncs) OnEntry() {
	if s.Entry != nil {
		s.Entry()
	}
}

func (s *StateFuncs) Process() (Event, error) {
	if s.Step == nil {
		return EventNone, nil
	}
	return s.Step()
}

func (s *StateFuncs) OnExit() {
	if s.Exit != nil {
		s.Exit()
	}
}
