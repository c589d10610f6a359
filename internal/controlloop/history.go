package controlloop

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
	"github.com/robbyt/go-loglater"
	"github.com/robbyt/go-loglater/storage"
)

// DefaultHistoryLimit is how many records a History keeps before it starts
// over.
const DefaultHistoryLimit = 1024

// History records mode transitions and faults so an operator can replay
// them. The control goroutine only queues entries; they are written to a
// loglater collector when the history is read. Once limit records have been
// collected the oldest batch is dropped.
type History struct {
	limit   int
	pending chan entry
	dropped atomic.Uint64

	mu        sync.Mutex
	count     int
	collector *loglater.LogCollector
	logger    *slog.Logger
	previous  []storage.Record
}

type entry struct {
	at      time.Time
	report  statemachine.Report
	fault   Fault
	isFault bool
}

// NewHistory returns an empty history holding up to limit records.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	h := &History{limit: limit, pending: make(chan entry, limit)}
	h.reset()
	return h
}

func (h *History) reset() {
	h.count = 0
	h.collector = loglater.NewLogCollector(nil)
	h.logger = slog.New(h.collector)
}

// queue hands e to the reader side without blocking. When nobody has read
// the history for limit entries the oldest one makes room.
func (h *History) queue(e entry) {
	select {
	case h.pending <- e:
		return
	default:
	}
	select {
	case <-h.pending:
		h.dropped.Add(1)
	default:
	}
	select {
	case h.pending <- e:
	default:
		h.dropped.Add(1)
	}
}

// Observe records r when it carries a transition or an error. It is meant to
// be installed as a state machine observer and never blocks.
func (h *History) Observe(r statemachine.Report) {
	if !r.Transitioned() && r.Err == nil {
		return
	}
	h.queue(entry{at: time.Now(), report: r})
}

// Fault records a fault reported by the control loop. It never blocks.
func (h *History) Fault(f Fault) {
	h.queue(entry{at: f.Time, fault: f, isFault: true})
}

// Dropped returns how many entries were discarded before anyone read them.
func (h *History) Dropped() uint64 {
	return h.dropped.Load()
}

// flush writes every queued entry to the collector. The caller holds h.mu.
func (h *History) flush() {
	for {
		select {
		case e := <-h.pending:
			h.write(e)
		default:
			return
		}
	}
}

func (h *History) write(e entry) {
	if h.count >= h.limit {
		h.previous = h.collector.GetLogs()
		h.reset()
	}
	h.count++

	at := e.at.Format(time.RFC3339Nano)
	switch r := e.report; {
	case e.isFault:
		h.logger.Error("Fault",
			"id", e.fault.ID,
			"controller", e.fault.Controller,
			"machine", e.fault.Machine,
			"state", e.fault.State,
			"error", e.fault.Err,
			"at", at,
		)
	case r.Err != nil:
		h.logger.Warn("Tick failed", "machine", r.Machine, "state", r.From, "error", r.Err, "at", at)
	default:
		h.logger.Info("Transition",
			"machine", r.Machine,
			"from", r.From,
			"event", r.Fired.String(),
			"to", r.To,
			"requested", r.Requested.String(),
			"at", at,
		)
	}
}

// Records returns up to the last limit records, oldest first.
func (h *History) Records() []storage.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flush()
	current := h.collector.GetLogs()
	keep := max(h.limit-len(current), 0)
	prev := h.previous
	if len(prev) > keep {
		prev = prev[len(prev)-keep:]
	}
	out := make([]storage.Record, 0, len(prev)+len(current))
	out = append(out, prev...)
	return append(out, current...)
}

// Replay writes the records collected since the last rotation to handler.
func (h *History) Replay(handler slog.Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flush()
	return h.collector.PlayLogs(handler)
}
