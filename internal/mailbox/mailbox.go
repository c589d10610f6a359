// Package mailbox provides a single-slot, latest-value hand-off between a
// producer goroutine and the control goroutine.
//
// A Mailbox never queues. A Put overwrites whatever is pending, and a Drain
// returns the pending value and empties the slot in one atomic step. Drain
// never blocks and never allocates, so it is safe to call at the top of a
// control tick.
package mailbox

import "sync/atomic"

// Mailbox holds at most one pending value of type T. The zero value is an
// empty mailbox ready for use.
type Mailbox[T any] struct {
	slot atomic.Pointer[T]
}

// Put stores v, replacing any value that has not been drained yet.
func (m *Mailbox[T]) Put(v T) {
	m.slot.Store(&v)
}

// PutIfEmpty stores v only when nothing is pending. It reports whether v
// was stored; a value already waiting is never overwritten.
func (m *Mailbox[T]) PutIfEmpty(v T) bool {
	return m.slot.CompareAndSwap(nil, &v)
}

// Drain returns the pending value and clears the slot. The boolean is false
// when nothing was pending.
func (m *Mailbox[T]) Drain() (T, bool) {
	p := m.slot.Swap(nil)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Peek returns the pending value without clearing the slot.
func (m *Mailbox[T]) Peek() (T, bool) {
	p := m.slot.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Pending reports whether a value is waiting to be drained.
func (m *Mailbox[T]) Pending() bool {
	return m.slot.Load() != nil
}

// Clear discards any pending value.
func (m *Mailbox[T]) Clear() {
	m.slot.Store(nil)
}
