package locomotion

import (
	"errors"
	"fmt"
	"math"

	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidWaypoints = errors.New("invalid sole waypoint plan")

// SoleWaypoint is where a foot should be Time seconds after the plan starts.
type SoleWaypoint struct {
	Time     float64 `json:"time"`
	Position r3.Vec  `json:"position"`
}

// SoleWaypointPlan lists the waypoints of each foot. Feet without waypoints
// hold their position.
type SoleWaypointPlan struct {
	Waypoints map[timing.Quadrant][]SoleWaypoint `json:"waypoints"`
}

// Empty reports whether no foot has a waypoint.
func (p SoleWaypointPlan) Empty() bool {
	for _, wps := range p.Waypoints {
		if len(wps) > 0 {
			return false
		}
	}
	return true
}

// Duration is the time of the last waypoint of any foot.
func (p SoleWaypointPlan) Duration() float64 {
	var d float64
	for _, wps := range p.Waypoints {
		if n := len(wps); n > 0 {
			d = math.Max(d, wps[n-1].Time)
		}
	}
	return d
}

// Validate checks that each foot's waypoints are finite and in time order.
func (p SoleWaypointPlan) Validate() error {
	var errz []error
	for q, wps := range p.Waypoints {
		if !q.Valid() {
			errz = append(errz, fmt.Errorf("%w: %d", timing.ErrUnknownQuadrant, int8(q)))
			continue
		}
		prev := 0.0
		for i, wp := range wps {
			switch {
			case !finite(wp.Time, wp.Position.X, wp.Position.Y, wp.Position.Z):
				errz = append(errz, fmt.Errorf("%s waypoint %d is not finite", q, i))
			case wp.Time < prev:
				errz = append(errz, fmt.Errorf("%s waypoint %d at %gs is before %gs", q, i, wp.Time, prev))
			default:
				prev = wp.Time
			}
		}
	}
	if len(errz) > 0 {
		return errors.Join(append([]error{ErrInvalidWaypoints}, errz...)...)
	}
	return nil
}

// at interpolates the waypoints linearly, starting from start at time zero.
// Past the last waypoint the foot holds it.
func at(start r3.Vec, wps []SoleWaypoint, t float64) r3.Vec {
	prevT, prevP := 0.0, start
	for _, wp := range wps {
		if t < wp.Time {
			s := (t - prevT) / (wp.Time - prevT)
			return r3.Add(prevP, r3.Scale(s, r3.Sub(wp.Position, prevP)))
		}
		prevT, prevP = wp.Time, wp.Position
	}
	return prevP
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
