package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/logging"
	"github.com/atlanticdynamic/modectl/internal/manipulation"
	"github.com/atlanticdynamic/modectl/internal/robot"
)

// JointState builds the robot joints.
func (r *Robot) JointState() (*robot.JointState, error) {
	joints := robot.NewJointState()
	var errz []error
	for _, j := range r.Joints {
		if j.Name == "" {
			errz = append(errz, errors.New("joint without a name"))
			continue
		}
		if err := joints.Add(j.Name, j.Initial, j.Lower, j.Upper); err != nil {
			errz = append(errz, err)
		}
	}
	return joints, errors.Join(errz...)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errz []error

	if _, err := logging.NewHandler(c.Logging.Format, c.Logging.Level, nil); err != nil {
		errz = append(errz, fmt.Errorf("logging: %w", err))
	}
	if c.Control.Period <= 0 {
		errz = append(errz, fmt.Errorf("control: period must be positive, got %s", c.Control.Period))
	}
	if c.Control.HistoryLimit < 0 {
		errz = append(errz, errors.New("control: history limit is negative"))
	}
	if c.Control.JointLag < 0 {
		errz = append(errz, errors.New("control: joint lag is negative"))
	}

	joints, err := c.Robot.JointState()
	if err != nil {
		errz = append(errz, fmt.Errorf("robot joints: %w", err))
	}
	tree := frames.NewTree()
	if err := c.Robot.BuildFrames(tree); err != nil {
		errz = append(errz, fmt.Errorf("robot frames: %w", err))
	}
	if c.Robot.Servo != nil {
		errz = append(errz, c.Robot.Servo.validate(joints)...)
	}

	if c.Locomotion == nil && len(c.Hands) == 0 {
		errz = append(errz, errors.New("no controllers: configure locomotion or at least one hand"))
	}
	names := make([]string, 0, len(c.Hands)+1)
	if c.Locomotion != nil {
		errz = append(errz, c.Locomotion.validate(joints)...)
		names = append(names, c.Locomotion.Name)
	}
	for i := range c.Hands {
		h := &c.Hands[i]
		if slices.Contains(names, h.Name) {
			errz = append(errz, fmt.Errorf("hand %s: controller name already used", h.Name))
		}
		names = append(names, h.Name)
		errz = append(errz, h.validate(joints, tree)...)
	}

	if c.Operator.Enabled && c.Operator.Address == "" {
		errz = append(errz, errors.New("operator: address is required when enabled"))
	}
	if c.Recovery.Script != "" && c.Recovery.ScriptFile != "" {
		errz = append(errz, errors.New("recovery: script and script_file are mutually exclusive"))
	}
	if c.Recovery.Timeout <= 0 {
		errz = append(errz, errors.New("recovery: timeout must be positive"))
	}

	if len(errz) > 0 {
		return errors.Join(append([]error{ErrValidate}, errz...)...)
	}
	return nil
}

func (s *Servo) validate(joints *robot.JointState) []error {
	var errz []error
	if s.Port == "" {
		errz = append(errz, errors.New("servo: port is required"))
	}
	if s.Baud < 0 || s.Period < 0 {
		errz = append(errz, errors.New("servo: baud and period must not be negative"))
	}
	if err := s.Calibration().Validate(); err != nil {
		errz = append(errz, fmt.Errorf("servo: %w", err))
	}
	for _, ch := range s.Channels {
		if _, err := joints.Get(ch.Joint); err != nil {
			errz = append(errz, fmt.Errorf("servo %d: %w", ch.ID, err))
		}
	}
	return errz
}

func (l *Locomotion) validate(joints *robot.JointState) []error {
	var errz []error
	if l.Name == "" {
		errz = append(errz, errors.New("locomotion: name is required"))
	}
	if err := l.Settings().Validate(joints); err != nil {
		errz = append(errz, fmt.Errorf("locomotion %s: %w", l.Name, err))
	}
	if _, err := l.SolePositions(); err != nil {
		errz = append(errz, fmt.Errorf("locomotion %s: %w", l.Name, err))
	}
	return errz
}

func (h *Hand) validate(joints *robot.JointState, tree *frames.Tree) []error {
	var errz []error
	if h.Name == "" {
		errz = append(errz, errors.New("hand: name is required"))
	}
	if len(h.Joints) == 0 {
		errz = append(errz, fmt.Errorf("hand %s: no joints", h.Name))
	}
	for _, j := range h.Joints {
		if _, err := joints.Get(j); err != nil {
			errz = append(errz, fmt.Errorf("hand %s: %w", h.Name, err))
		}
	}
	if h.Base == "" || h.Frame == "" {
		errz = append(errz, fmt.Errorf("hand %s: base and frame are required", h.Name))
	}
	for _, f := range []string{h.Base, h.Chest, h.Frame} {
		if f == "" || f == frames.WorldName {
			continue
		}
		if _, err := tree.Get(f); err != nil {
			errz = append(errz, fmt.Errorf("hand %s: %w", h.Name, err))
		}
	}
	mode, err := h.Mode()
	switch {
	case err != nil:
		errz = append(errz, fmt.Errorf("hand %s: %w", h.Name, err))
	case mode != manipulation.ModeJointSpace && mode != manipulation.ModeTaskSpacePosition:
		errz = append(errz, fmt.Errorf("hand %s: cannot start in %s", h.Name, mode))
	}
	return errz
}
