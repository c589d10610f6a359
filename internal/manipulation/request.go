package manipulation

import (
	"errors"
	"math"
	"slices"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"gonum.org/v1/gonum/num/quat"
)

// Request is a decoded hand command. Which fields are read depends on Mode:
//
//   - JOINT_SPACE: Joints (a goal for every arm joint), or Min and Max (a
//     range the joints are pushed into), over Duration seconds.
//   - TASK_SPACE_POSITION and OBJECT_MANIPULATION: a straight line to Goal,
//     expressed in Goal.Frame, for ControlFrame (the hand frame when nil).
//   - POINT_POSITION: a straight line of the ControlFrame origin to
//     Goal.Position.
//   - LOAD_BEARING: nothing.
//
// Hold ignores the targets and keeps the hand where it is in that mode.
type Request struct {
	Mode         Mode
	Hold         bool
	Duration     float64
	Joints       map[string]float64
	Min          map[string]float64
	Max          map[string]float64
	Goal         frames.Pose
	ControlFrame *frames.Frame
}

// validate checks req against the arm joints without touching any state.
func validate(req Request, joints []string) error {
	if !req.Mode.Valid() {
		return invalid("mode", "unknown mode %q", req.Mode)
	}
	if req.Hold || req.Mode == ModeLoadBearing {
		return nil
	}

	var errz []error
	if req.Duration <= 0 || math.IsNaN(req.Duration) || math.IsInf(req.Duration, 0) {
		errz = append(errz, invalid("duration", "must be a positive number of seconds, got %g", req.Duration))
	}

	switch req.Mode {
	case ModeJointSpace:
		if len(req.Min) > 0 || len(req.Max) > 0 {
			errz = append(errz, checkRange(req.Min, req.Max, joints)...)
		} else {
			errz = append(errz, checkGoals(req.Joints, joints)...)
		}
	case ModeTaskSpacePosition, ModeObjectManipulation, ModePointPosition:
		if req.Goal.Frame == nil {
			errz = append(errz, invalid("goal.frame", "required"))
		}
		if !finite(req.Goal.Position.X, req.Goal.Position.Y, req.Goal.Position.Z) {
			errz = append(errz, invalid("goal.position", "not finite"))
		}
		if req.Mode != ModePointPosition && quat.Abs(req.Goal.Orientation) == 0 {
			errz = append(errz, invalid("goal.orientation", "zero quaternion"))
		}
	}
	return errors.Join(errz...)
}

func checkGoals(goals map[string]float64, joints []string) []error {
	var errz []error
	for _, name := range joints {
		q, ok := goals[name]
		switch {
		case !ok:
			errz = append(errz, invalid("joints", "no goal for joint %s", name))
		case !finite(q):
			errz = append(errz, invalid("joints", "goal for joint %s is not finite", name))
		}
	}
	for name := range goals {
		if !slices.Contains(joints, name) {
			errz = append(errz, invalid("joints", "unknown joint %s", name))
		}
	}
	return errz
}

func checkRange(lower, upper map[string]float64, joints []string) []error {
	var errz []error
	for name, lo := range lower {
		if !slices.Contains(joints, name) {
			errz = append(errz, invalid("min", "unknown joint %s", name))
			continue
		}
		if hi, ok := upper[name]; ok && lo > hi {
			errz = append(errz, invalid("min", "joint %s: min %g > max %g", name, lo, hi))
		}
	}
	for name := range upper {
		if !slices.Contains(joints, name) {
			errz = append(errz, invalid("max", "unknown joint %s", name))
		}
	}
	return errz
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
