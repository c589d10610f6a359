package timing

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var ErrUnknownQuadrant = errors.New("unknown robot quadrant")

// Quadrant identifies one leg of a quadruped.
type Quadrant int8

const (
	FrontLeft Quadrant = iota
	FrontRight
	HindRight
	HindLeft
)

// Quadrants lists every leg in index order.
var Quadrants = [...]Quadrant{FrontLeft, FrontRight, HindRight, HindLeft}

var quadrantNames = [...]string{"FRONT_LEFT", "FRONT_RIGHT", "HIND_RIGHT", "HIND_LEFT"}

func (q Quadrant) String() string {
	if q < 0 || int(q) >= len(quadrantNames) {
		return fmt.Sprintf("Quadrant(%d)", int8(q))
	}
	return quadrantNames[q]
}

// Valid reports whether q names a leg.
func (q Quadrant) Valid() bool {
	return q >= FrontLeft && q <= HindLeft
}

// Diagonal returns the leg across the body from q.
func (q Quadrant) Diagonal() Quadrant {
	return (q + 2) % 4
}

// IsFront reports whether q is a front leg.
func (q Quadrant) IsFront() bool {
	return q == FrontLeft || q == FrontRight
}

// ParseQuadrant accepts the upper or lower case leg name.
func ParseQuadrant(s string) (Quadrant, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range quadrantNames {
		if name == up {
			return Quadrant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownQuadrant, s)
}

func (q Quadrant) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQuadrant, int8(q))
	}
	return []byte(q.String()), nil
}

func (q *Quadrant) UnmarshalText(b []byte) error {
	parsed, err := ParseQuadrant(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// TimedStep is one planned footstep: which leg, where it lands, and when it
// lifts off and touches down.
type TimedStep struct {
	SequenceID      uint64       `json:"sequence_id"`
	Interval        TimeInterval `json:"time_interval"`
	Quadrant        Quadrant     `json:"robot_quadrant"`
	Goal            r3.Vec       `json:"goal_position"`
	GroundClearance float64      `json:"ground_clearance"`
}

func (s TimedStep) GetTimeInterval() TimeInterval {
	return s.Interval
}

var ErrNegativeClearance = errors.New("ground clearance is negative")

// Validate checks the leg, the interval and the clearance.
func (s TimedStep) Validate() error {
	var errz []error
	if !s.Quadrant.Valid() {
		errz = append(errz, fmt.Errorf("%w: %d", ErrUnknownQuadrant, int8(s.Quadrant)))
	}
	if err := s.Interval.Validate(); err != nil {
		errz = append(errz, err)
	}
	if s.GroundClearance < 0 {
		errz = append(errz, ErrNegativeClearance)
	}
	if len(errz) > 0 {
		return fmt.Errorf("step %d: %w", s.SequenceID, errors.Join(errz...))
	}
	return nil
}

// InSwing reports whether the step's leg is airborne at time t.
func (s TimedStep) InSwing(t float64) bool {
	return s.Interval.Contains(t)
}
