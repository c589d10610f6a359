package statemachine

// Report summarizes one Process call. Observers receive it synchronously on
// the control goroutine, so they must not block.
type Report struct {
	Machine string
	// From is the state that was current when the tick started.
	From string
	// To is the state that is current after the tick.
	To string
	// Requested is the request drained this tick, or EventNone.
	Requested Event
	// Automatic is the event returned by the active state, or EventNone.
	Automatic Event
	// Fired is the event whose transition fired, or EventNone.
	Fired Event
	Err   error
}

// Transitioned reports whether a transition fired during the tick.
func (r Report) Transitioned() bool {
	return r.Fired != EventNone
}

// Observer receives a Report after each Process call.
type Observer func(Report)
