package stream

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/modectl/internal/timing"
)

var (
	ErrUnknownStream              = errors.New("stream not registered")
	ErrDuplicateStream            = errors.New("stream already registered")
	ErrSelectionOutsideTransition = errors.New("stream selection outside a transition callback")
)

// Multiplexer presents one logical Stream whose underlying producer can be
// swapped. It is driven from the control goroutine only.
type Multiplexer[K comparable] struct {
	logger  *slog.Logger
	streams map[K]Stream
	active  Stream
	key     K
	hasKey  bool
	gate    func() bool
}

var _ Stream = (*Multiplexer[string])(nil)

// Option configures a Multiplexer.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger for the Multiplexer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Multiplexer.
func WithLogHandler(handler slog.Handler) Option {
	return func(o *options) {
		o.logger = slog.New(handler)
	}
}

// NewMultiplexer returns a multiplexer with NopStream active.
func NewMultiplexer[K comparable](opts ...Option) *Multiplexer[K] {
	o := &options{logger: slog.Default().WithGroup("stream.Multiplexer")}
	for _, opt := range opts {
		opt(o)
	}
	return &Multiplexer[K]{
		logger:  o.logger,
		streams: make(map[K]Stream),
		active:  NopStream{},
	}
}

// Register binds s to key.
func (m *Multiplexer[K]) Register(key K, s Stream) error {
	if s == nil {
		return fmt.Errorf("%w: nil stream for %v", ErrUnknownStream, key)
	}
	if _, ok := m.streams[key]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateStream, key)
	}
	m.streams[key] = s
	return nil
}

// RestrictSelection installs a gate. Once installed, Select only succeeds
// while gate reports true. Pass the owning machine's InTransition so that
// swaps only happen inside transition callbacks.
func (m *Multiplexer[K]) RestrictSelection(gate func() bool) {
	m.gate = gate
}

// Select makes the producer bound to key active. The previously active
// producer is halted exactly once before the swap. Selecting the key that is
// already active does nothing.
func (m *Multiplexer[K]) Select(key K) error {
	if m.gate != nil && !m.gate() {
		return fmt.Errorf("%w: %v", ErrSelectionOutsideTransition, key)
	}
	next, ok := m.streams[key]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownStream, key)
	}
	if m.hasKey && m.key == key {
		return nil
	}

	m.active.Halt()
	m.logger.Debug("Stream selected", "stream", key)
	m.active = next
	m.key = key
	m.hasKey = true
	return nil
}

// Active returns the selected producer, or NopStream when nothing has been
// selected.
func (m *Multiplexer[K]) Active() Stream {
	return m.active
}

// ActiveKey returns the selected key.
func (m *Multiplexer[K]) ActiveKey() (K, bool) {
	return m.key, m.hasKey
}

func (m *Multiplexer[K]) OnEntry(now float64) {
	m.active.OnEntry(now)
}

func (m *Multiplexer[K]) Process(now float64) {
	m.active.Process(now)
}

func (m *Multiplexer[K]) OnExit() {
	m.active.OnExit()
}

func (m *Multiplexer[K]) Halt() {
	m.active.Halt()
}

func (m *Multiplexer[K]) Steps() []timing.TimedStep {
	return m.active.Steps()
}
