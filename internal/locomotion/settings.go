package locomotion

import (
	"errors"
	"fmt"
	"math"

	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/stream"
)

var ErrInvalidSettings = errors.New("invalid locomotion settings")

// Gains are the feedback gains the locomotion states submit to the
// whole-body core.
type Gains struct {
	JointStiffness float64
	JointDamping   float64
	Foot           float64
}

// Settings parameterize a Manager.
type Settings struct {
	// BypassDoNothing goes straight from joint initialization to stand prep.
	BypassDoNothing bool

	Mass    float64
	Gravity float64

	// NominalPosture is the joint configuration stand prep drives to.
	NominalPosture    map[string]float64
	StandPrepDuration float64
	// FoldPosture is the joint configuration a fall settles in.
	FoldPosture  map[string]float64
	FallDuration float64

	XGait stream.XGaitSettings

	// MinimumSupport is how many feet must be in contact to keep standing.
	MinimumSupport int
	// MomentumTolerance bounds the achieved linear momentum rate, in N,
	// while stepping.
	MomentumTolerance float64

	Gains Gains

	// StepPlanCapacity preallocates room for a preplanned step batch.
	StepPlanCapacity int
}

// DefaultSettings returns settings for a 25 kg quadruped with no posture
// tables. The postures must be filled in for the robot's joints.
func DefaultSettings() Settings {
	return Settings{
		BypassDoNothing:   true,
		Mass:              25,
		Gravity:           9.81,
		StandPrepDuration: 1,
		FallDuration:      1,
		XGait:             stream.DefaultXGaitSettings,
		MinimumSupport:    3,
		MomentumTolerance: 50,
		Gains:             Gains{JointStiffness: 200, JointDamping: 10, Foot: 500},
		StepPlanCapacity:  64,
	}
}

// Validate checks the settings against the joints of the robot.
func (s Settings) Validate(joints *robot.JointState) error {
	var errz []error
	if s.Mass <= 0 || s.Gravity <= 0 {
		errz = append(errz, errors.New("mass and gravity must be positive"))
	}
	if s.StandPrepDuration <= 0 {
		errz = append(errz, errors.New("stand prep duration must be positive"))
	}
	if s.FallDuration <= 0 {
		errz = append(errz, errors.New("fall duration must be positive"))
	}
	if s.MinimumSupport < 1 || s.MinimumSupport > 4 {
		errz = append(errz, fmt.Errorf("minimum support %d is not between 1 and 4", s.MinimumSupport))
	}
	if s.MomentumTolerance <= 0 {
		errz = append(errz, errors.New("momentum tolerance must be positive"))
	}
	if s.StepPlanCapacity < 0 {
		errz = append(errz, errors.New("step plan capacity is negative"))
	}
	if err := s.XGait.Validate(); err != nil {
		errz = append(errz, err)
	}
	errz = append(errz, checkPosture("nominal posture", s.NominalPosture, joints)...)
	errz = append(errz, checkPosture("fold posture", s.FoldPosture, joints)...)

	if len(errz) > 0 {
		return errors.Join(append([]error{ErrInvalidSettings}, errz...)...)
	}
	return nil
}

func checkPosture(name string, posture map[string]float64, joints *robot.JointState) []error {
	var errz []error
	for joint, q := range posture {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			errz = append(errz, fmt.Errorf("%s: joint %s is not finite", name, joint))
			continue
		}
		if joints == nil {
			continue
		}
		if _, err := joints.Get(joint); err != nil {
			errz = append(errz, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errz
}
