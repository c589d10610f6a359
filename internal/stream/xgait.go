package stream

import (
	"errors"
	"math"

	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidXGait = errors.New("invalid x-gait settings")

// XGaitSettings shape the periodic gait. EndPhaseShift is the phase, in
// degrees, between the front and hind pairs: 0 is a pace, 90 a walk and 180
// a trot.
type XGaitSettings struct {
	StepDuration             float64 `json:"step_duration" toml:"step_duration"`
	EndDoubleSupportDuration float64 `json:"end_double_support" toml:"end_double_support"`
	EndPhaseShift            float64 `json:"end_phase_shift" toml:"end_phase_shift"`
	GroundClearance          float64 `json:"ground_clearance" toml:"ground_clearance"`
}

// DefaultXGaitSettings is a slow trot.
var DefaultXGaitSettings = XGaitSettings{
	StepDuration:             0.5,
	EndDoubleSupportDuration: 0.1,
	EndPhaseShift:            180,
	GroundClearance:          0.1,
}

func (s XGaitSettings) Validate() error {
	var errz []error
	if s.StepDuration <= 0 {
		errz = append(errz, errors.New("step duration must be positive"))
	}
	if s.EndDoubleSupportDuration < 0 {
		errz = append(errz, errors.New("end double support duration is negative"))
	}
	if s.EndPhaseShift < 0 || s.EndPhaseShift > 360 {
		errz = append(errz, errors.New("end phase shift must be within [0, 360] degrees"))
	}
	if s.GroundClearance < 0 {
		errz = append(errz, timing.ErrNegativeClearance)
	}
	if len(errz) > 0 {
		return errors.Join(append([]error{ErrInvalidXGait}, errz...)...)
	}
	return nil
}

// period is the time for every leg to step once.
func (s XGaitSettings) period() float64 {
	return 2 * (s.StepDuration + s.EndDoubleSupportDuration)
}

// offset returns when, within a period, leg q lifts off.
func (s XGaitSettings) offset(q timing.Quadrant) float64 {
	half := s.StepDuration + s.EndDoubleSupportDuration
	hind := s.EndPhaseShift / 360 * s.period()
	switch q {
	case timing.FrontLeft:
		return 0
	case timing.FrontRight:
		return half
	case timing.HindLeft:
		return math.Mod(hind, s.period())
	default:
		return math.Mod(hind+half, s.period())
	}
}

// PlanarVelocity is the commanded body velocity in the horizontal plane.
type PlanarVelocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// XGait generates a periodic gait from the commanded planar velocity. New
// velocities and settings may be posted from any goroutine and are picked up
// on the next Process.
type XGait struct {
	soles func(timing.Quadrant) r3.Vec

	velocityIn mailbox.Mailbox[PlanarVelocity]
	settingsIn mailbox.Mailbox[XGaitSettings]

	settings XGaitSettings
	velocity PlanarVelocity

	t0     float64
	now    float64
	halted bool
	steps  []timing.TimedStep
}

var _ Stream = (*XGait)(nil)

// NewXGait returns an x-gait stream. soles gives the current position of
// each foot, from which step goals are projected.
func NewXGait(settings XGaitSettings, soles func(timing.Quadrant) r3.Vec) (*XGait, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &XGait{
		soles:    soles,
		settings: settings,
		steps:    make([]timing.TimedStep, 0, len(timing.Quadrants)),
	}, nil
}

// SetVelocity posts a new planar velocity.
func (x *XGait) SetVelocity(v PlanarVelocity) {
	x.velocityIn.Put(v)
}

// SetSettings posts new gait settings. Invalid settings are rejected.
func (x *XGait) SetSettings(s XGaitSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	x.settingsIn.Put(s)
	return nil
}

// Settings returns the settings in use.
func (x *XGait) Settings() XGaitSettings {
	return x.settings
}

func (x *XGait) OnEntry(now float64) {
	x.t0 = now
	x.now = now
	x.halted = false
	x.drainInputs()
	x.plan(now)
}

func (x *XGait) Process(now float64) {
	x.now = now
	x.drainInputs()
	if x.halted {
		x.steps = timing.RemoveAllEndingBefore(x.steps, now)
		return
	}
	x.plan(now)
}

func (x *XGait) OnExit() {
	x.steps = x.steps[:0]
}

// Halt stops planning. Steps already in swing finish.
func (x *XGait) Halt() {
	x.halted = true
	x.steps = timing.RemoveAllStartingAfter(x.steps, x.now)
}

func (x *XGait) Steps() []timing.TimedStep {
	return x.steps
}

func (x *XGait) drainInputs() {
	if v, ok := x.velocityIn.Drain(); ok {
		x.velocity = v
	}
	if s, ok := x.settingsIn.Drain(); ok {
		x.settings = s
	}
}

// plan lists, for every leg, the step in swing at now or the next one.
func (x *XGait) plan(now float64) {
	x.steps = x.steps[:0]
	period := x.settings.period()
	elapsed := now - x.t0
	stride := r3.Vec{X: x.velocity.X * period / 2, Y: x.velocity.Y * period / 2}

	for i, q := range timing.Quadrants {
		off := x.settings.offset(q)
		cycle := math.Floor((elapsed - off) / period)
		start := x.t0 + off + cycle*period
		if now > start+x.settings.StepDuration {
			cycle++
			start += period
		}
		seq := uint64(max(cycle, 0))*uint64(len(timing.Quadrants)) + uint64(i)
		x.steps = append(x.steps, timing.TimedStep{
			SequenceID:      seq,
			Interval:        timing.TimeInterval{Start: start, End: start + x.settings.StepDuration},
			Quadrant:        q,
			Goal:            r3.Add(x.soles(q), stride),
			GroundClearance: x.settings.GroundClearance,
		})
	}
	timing.SortByStartTime(x.steps)
}
