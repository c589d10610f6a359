package robot

import (
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/spatial/r3"
)

var _ Environment = (*Sim)(nil)

// Sim is an in-process Environment. Joints follow their desired positions
// with a first-order lag, or are read from and written to an attached joint
// bridge.
type Sim struct {
	logger *slog.Logger
	dt     time.Duration
	tau    float64
	ticks  uint64

	joints   *JointState
	switches [len(timing.Quadrants)]FootSwitch
	soles    [len(timing.Quadrants)]r3.Vec
	tree     *frames.Tree

	// requests is replaced, never mutated, so the tick reads it without
	// locking. requestsMu serializes registration.
	requestsMu sync.Mutex
	requests   atomic.Pointer[map[string]*mailbox.Mailbox[ModeRequest]]

	measured *mailbox.Mailbox[map[string]float64]
	commands *mailbox.Mailbox[map[string]float64]
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithLogger sets a custom logger for the Sim.
func WithLogger(logger *slog.Logger) SimOption {
	return func(s *Sim) {
		s.logger = logger
	}
}

// WithJointLag sets the time constant joints use to follow their desired
// position. Zero makes them follow instantly.
func WithJointLag(tau time.Duration) SimOption {
	return func(s *Sim) {
		s.tau = tau.Seconds()
	}
}

// WithSolePositions sets the initial estimated foot positions.
func WithSolePositions(soles [4]r3.Vec) SimOption {
	return func(s *Sim) {
		s.soles = soles
	}
}

// WithJointBridge connects the joints to hardware: measured positions are
// drained from measured at the start of a tick and desired positions are
// posted to commands at the end.
func WithJointBridge(measured, commands *mailbox.Mailbox[map[string]float64]) SimOption {
	return func(s *Sim) {
		s.measured = measured
		s.commands = commands
	}
}

// NewSim returns a simulated environment with period dt. All feet start in
// contact.
func NewSim(dt time.Duration, joints *JointState, tree *frames.Tree, opts ...SimOption) *Sim {
	if joints == nil {
		joints = NewJointState()
	}
	if tree == nil {
		tree = frames.NewTree()
	}
	s := &Sim{
		logger: slog.Default().WithGroup("robot.Sim"),
		dt:     dt,
		tau:    0.05,
		joints: joints,
		tree:   tree,
	}
	s.requests.Store(&map[string]*mailbox.Mailbox[ModeRequest]{})
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.switches {
		s.switches[i].Sense(true)
		s.switches[i].SetContactState(true)
	}
	return s
}

func (s *Sim) ControlDT() time.Duration {
	return s.dt
}

func (s *Sim) Timestamp() float64 {
	return float64(s.ticks) * s.dt.Seconds()
}

func (s *Sim) Joints() *JointState {
	return s.joints
}

func (s *Sim) FootSwitch(q timing.Quadrant) *FootSwitch {
	return &s.switches[q]
}

func (s *Sim) SolePosition(q timing.Quadrant) r3.Vec {
	return s.soles[q]
}

// SetSolePosition moves the estimated position of a foot.
func (s *Sim) SetSolePosition(q timing.Quadrant, p r3.Vec) {
	s.soles[q] = p
}

func (s *Sim) Frames() *frames.Tree {
	return s.tree
}

// RegisterController creates the request inbox of controller. Registering a
// name twice keeps the existing inbox.
func (s *Sim) RegisterController(controller string) {
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	current := *s.requests.Load()
	if _, ok := current[controller]; ok {
		return
	}
	next := maps.Clone(current)
	next[controller] = &mailbox.Mailbox[ModeRequest]{}
	s.requests.Store(&next)
}

func (s *Sim) inbox(controller string) (*mailbox.Mailbox[ModeRequest], bool) {
	mb, ok := (*s.requests.Load())[controller]
	return mb, ok
}

// PostModeRequest hands req to its controller. It may be called from any
// goroutine; only the latest request per controller survives. Requests for
// a controller that never registered are dropped.
func (s *Sim) PostModeRequest(req ModeRequest) {
	mb, ok := s.inbox(req.Controller)
	if !ok {
		s.logger.Warn("Mode request for unregistered controller dropped",
			"controller", req.Controller, "mode", req.Mode, "id", req.ID)
		return
	}
	s.logger.Debug("Mode request posted", "controller", req.Controller, "mode", req.Mode, "id", req.ID)
	mb.Put(req)
}

// TryReceiveModeRequest drains the inbox of controller. It takes no lock
// and does not allocate.
func (s *Sim) TryReceiveModeRequest(controller string) (ModeRequest, bool) {
	mb, ok := s.inbox(controller)
	if !ok {
		return ModeRequest{}, false
	}
	return mb.Drain()
}

// BeginTick pulls hardware measurements, if a bridge is attached.
func (s *Sim) BeginTick() {
	if s.measured == nil {
		return
	}
	if m, ok := s.measured.Drain(); ok {
		s.joints.Measure(m)
	}
}

// EndTick advances time and either integrates the joints or posts the
// desired positions to the bridge.
func (s *Sim) EndTick() {
	s.ticks++
	if s.commands == nil {
		s.joints.Track(s.dt.Seconds(), s.tau)
		return
	}
	out := make(map[string]float64, len(s.joints.Names()))
	s.joints.Desired(out)
	s.commands.Put(out)
}

// Ticks returns how many ticks have completed.
func (s *Sim) Ticks() uint64 {
	return s.ticks
}
