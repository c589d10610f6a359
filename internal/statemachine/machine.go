// Package statemachine is the event-driven engine that sequences the control
// modes of one robot subsystem.
//
// A Machine owns an immutable transition table, a registry of key to State,
// and the single current key. It is driven once per control tick by Process
// and is not safe for concurrent use, except for Trigger which may be called
// from any goroutine.
package statemachine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/mailbox"
)

type edge[K ~string] struct {
	to    K
	guard Guard
}

type trigger[K ~string] struct {
	from  K
	event Event
}

// Machine is a finite state machine over keys of type K.
type Machine[K ~string] struct {
	name   string
	logger *slog.Logger

	states    map[K]State
	order     []K
	edges     map[trigger[K]][]edge[K]
	edgeOrder []trigger[K]
	callbacks map[trigger[K]][]Callback

	pending mailbox.Mailbox[Event]

	current      K
	built        bool
	inTransition bool
	observers    []Observer
}

// New creates an empty Machine. States and transitions are added with
// AddState and AddTransition, then the table is sealed by Build.
func New[K ~string](opts ...Option) *Machine[K] {
	s := &settings{name: "statemachine"}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().WithGroup("statemachine.Machine")
	}

	return &Machine[K]{
		name:      s.name,
		logger:    s.logger.With("machine", s.name),
		states:    make(map[K]State),
		edges:     make(map[trigger[K]][]edge[K]),
		callbacks: make(map[trigger[K]][]Callback),
		observers: s.observers,
	}
}

// String returns the machine name.
func (m *Machine[K]) String() string {
	return m.name
}

// AddState binds state to key. The same instance may back several keys.
// Binding the same instance to the same key twice is a no-op.
func (m *Machine[K]) AddState(key K, state State) error {
	if m.built {
		return configError(ErrSealed, "add state %s", key)
	}
	if state == nil {
		return configError(ErrNilState, "key %s", key)
	}
	if existing, ok := m.states[key]; ok {
		if existing == state {
			return nil
		}
		return configError(ErrStateRebound, "key %s", key)
	}
	m.states[key] = state
	m.order = append(m.order, key)
	return nil
}

// AddTransition registers the edge from --event--> to. A nil guard always
// passes. Several edges may share (from, event) only if every one of them
// is guarded; the first edge whose guard passes wins.
func (m *Machine[K]) AddTransition(event Event, from, to K, guard Guard) error {
	if m.built {
		return configError(ErrSealed, "add transition %s --%s--> %s", from, event, to)
	}
	if event == EventNone {
		return configError(ErrEmptyEvent, "transition %s --> %s", from, to)
	}
	if _, ok := m.states[from]; !ok {
		return configError(ErrUnregisteredState, "from %s", from)
	}
	if _, ok := m.states[to]; !ok {
		return configError(ErrUnregisteredState, "to %s", to)
	}

	key := trigger[K]{from: from, event: event}
	existing, seen := m.edges[key]
	for _, e := range existing {
		if e.to == to && e.guard == nil && guard == nil {
			// identical unguarded edge
			return nil
		}
		if e.to != to && (e.guard == nil || guard == nil) {
			return configError(ErrAmbiguousEdge, "%s --%s--> %s conflicts with %s", from, event, to, e.to)
		}
	}
	if !seen {
		m.edgeOrder = append(m.edgeOrder, key)
	}
	m.edges[key] = append(existing, edge[K]{to: to, guard: guard})
	return nil
}

// AddCallback attaches fn to the (from, event) transition. The transition
// itself may be registered later; it is checked by Build.
func (m *Machine[K]) AddCallback(event Event, from K, fn Callback) error {
	if m.built {
		return configError(ErrSealed, "add callback %s --%s-->", from, event)
	}
	if fn == nil {
		return nil
	}
	if _, ok := m.states[from]; !ok {
		return configError(ErrUnregisteredState, "callback from %s", from)
	}
	key := trigger[K]{from: from, event: event}
	m.callbacks[key] = append(m.callbacks[key], fn)
	return nil
}

// Build validates and seals the table, makes initial current, and runs its
// OnEntry. All table problems are reported together.
func (m *Machine[K]) Build(initial K) error {
	if m.built {
		return configError(ErrAlreadyBuilt, "%s", m.name)
	}

	var errz []error
	if _, ok := m.states[initial]; !ok {
		errz = append(errz, configError(ErrUnregisteredState, "initial %s", initial))
	}
	for key := range m.callbacks {
		if _, ok := m.edges[key]; !ok {
			errz = append(errz, configError(ErrMissingEdge, "%s --%s-->", key.from, key.event))
		}
	}
	if len(errz) > 0 {
		return errors.Join(errz...)
	}

	m.built = true
	m.current = initial
	m.logger.Debug("Built state machine",
		"initial", initial, "states", len(m.states), "edges", len(m.edgeOrder))
	m.states[initial].OnEntry()
	return nil
}

// Built reports whether Build has succeeded.
func (m *Machine[K]) Built() bool {
	return m.built
}

// Current returns the current key. Before Build it is the zero value.
func (m *Machine[K]) Current() K {
	return m.current
}

// Active returns the state bound to the current key, or nil before Build.
func (m *Machine[K]) Active() State {
	if !m.built {
		return nil
	}
	return m.states[m.current]
}

// StateOf returns the state bound to key.
func (m *Machine[K]) StateOf(key K) (State, bool) {
	s, ok := m.states[key]
	return s, ok
}

// InTransition reports whether a transition callback is running.
func (m *Machine[K]) InTransition() bool {
	return m.inTransition
}

// Trigger records event as the pending request for the next transition
// check. Only the latest request is kept.
func (m *Machine[K]) Trigger(event Event) {
	m.pending.Put(event)
}

// TriggerIfIdle records event only when no request is pending. It reports
// whether event was recorded. A request made concurrently by another
// goroutine is never overwritten.
func (m *Machine[K]) TriggerIfIdle(event Event) bool {
	return m.pending.PutIfEmpty(event)
}

// Pending returns the request waiting for the next transition check.
func (m *Machine[K]) Pending() (Event, bool) {
	return m.pending.Peek()
}

// CheckTransitions drains the pending request and fires its transition if
// one matches the current key and its guard passes. It reports the drained
// request and whether a transition fired. A request without a match is
// discarded.
func (m *Machine[K]) CheckTransitions() (Event, bool, error) {
	if !m.built {
		return EventNone, false, ErrNotInitialized
	}
	event, ok := m.pending.Drain()
	if !ok || event == EventNone {
		return EventNone, false, nil
	}
	fired := m.fire(event)
	if !fired {
		m.logger.Debug("Request discarded", "state", m.current, "event", event)
	}
	return event, fired, nil
}

// Process runs one tick:
//  1. resolve the pending request, if any
//  2. run the current state's Process
//  3. resolve the automatic event, unless a transition already fired in 1
//
// A state error is returned as a RuntimeOperationError and leaves the
// machine where it is.
func (m *Machine[K]) Process() error {
	if !m.built {
		return ErrNotInitialized
	}

	report := Report{Machine: m.name, From: string(m.current)}

	requested, fired, _ := m.CheckTransitions()
	report.Requested = requested
	if fired {
		report.Fired = requested
	}

	auto, err := m.states[m.current].Process()
	report.Automatic = auto
	if err != nil {
		rerr := &RuntimeOperationError{Machine: m.name, State: string(m.current), Err: err}
		report.To = string(m.current)
		report.Err = rerr
		m.notify(report)
		return rerr
	}

	switch {
	case auto == EventNone:
	case fired:
		m.logger.Debug("Automatic event dropped after requested transition",
			"state", m.current, "event", auto)
	case m.fire(auto):
		report.Fired = auto
	default:
		m.logger.Debug("Automatic event discarded", "state", m.current, "event", auto)
	}

	report.To = string(m.current)
	m.notify(report)
	return nil
}

// fire resolves event from the current key. The first edge whose guard
// passes is taken: exit, callbacks, update, entry.
func (m *Machine[K]) fire(event Event) bool {
	key := trigger[K]{from: m.current, event: event}
	for _, e := range m.edges[key] {
		if e.guard != nil && !e.guard() {
			continue
		}
		from := m.current
		m.states[from].OnExit()

		m.inTransition = true
		for _, cb := range m.callbacks[key] {
			cb()
		}
		m.inTransition = false

		m.current = e.to
		m.states[e.to].OnEntry()
		m.logger.Debug("Transition", "from", from, "event", event, "to", e.to)
		return true
	}
	return false
}

func (m *Machine[K]) notify(r Report) {
	for _, obs := range m.observers {
		obs(r)
	}
}

// Transition describes one registered edge.
type Transition[K ~string] struct {
	From      K
	Event     Event
	To        K
	Guarded   bool
	Callbacks int
}

func (t Transition[K]) String() string {
	return fmt.Sprintf("%s --%s--> %s", t.From, t.Event, t.To)
}

// Transitions lists the table in registration order.
func (m *Machine[K]) Transitions() []Transition[K] {
	out := make([]Transition[K], 0, len(m.edgeOrder))
	for _, key := range m.edgeOrder {
		for _, e := range m.edges[key] {
			out = append(out, Transition[K]{
				From:      key.from,
				Event:     key.event,
				To:        e.to,
				Guarded:   e.guard != nil,
				Callbacks: len(m.callbacks[key]),
			})
		}
	}
	return out
}

// States lists the registered keys in registration order.
func (m *Machine[K]) States() []K {
	out := make([]K, len(m.order))
	copy(out, m.order)
	return out
}

// Accepts reports whether event has at least one edge out of the current key.
func (m *Machine[K]) Accepts(event Event) bool {
	_, ok := m.edges[trigger[K]{from: m.current, event: event}]
	return ok
}
