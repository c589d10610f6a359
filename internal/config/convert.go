package config

import (
	"fmt"
	"maps"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/locomotion"
	"github.com/atlanticdynamic/modectl/internal/manipulation"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Settings merges l over locomotion.DefaultSettings.
func (l *Locomotion) Settings() locomotion.Settings {
	s := locomotion.DefaultSettings()
	if l.BypassDoNothing != nil {
		s.BypassDoNothing = *l.BypassDoNothing
	}
	setIfNonZero(&s.Mass, l.Mass)
	setIfNonZero(&s.Gravity, l.Gravity)
	setIfNonZero(&s.StandPrepDuration, l.StandPrepDuration)
	setIfNonZero(&s.FallDuration, l.FallDuration)
	setIfNonZero(&s.MinimumSupport, l.MinimumSupport)
	setIfNonZero(&s.MomentumTolerance, l.MomentumTolerance)
	setIfNonZero(&s.StepPlanCapacity, l.StepPlanCapacity)
	setIfNonZero(&s.Gains.JointStiffness, l.Gains.JointStiffness)
	setIfNonZero(&s.Gains.JointDamping, l.Gains.JointDamping)
	setIfNonZero(&s.Gains.Foot, l.Gains.Foot)
	s.NominalPosture = maps.Clone(l.NominalPosture)
	s.FoldPosture = maps.Clone(l.FoldPosture)
	if l.XGait != (stream.XGaitSettings{}) {
		s.XGait = l.XGait
	}
	return s
}

func setIfNonZero[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// SolePositions returns the initial foot positions, keyed by quadrant name.
// Missing feet start at the origin.
func (l *Locomotion) SolePositions() ([len(timing.Quadrants)]r3.Vec, error) {
	var out [len(timing.Quadrants)]r3.Vec
	for name, p := range l.Soles {
		q, err := timing.ParseQuadrant(name)
		if err != nil {
			return out, err
		}
		v, err := vec3(p)
		if err != nil {
			return out, fmt.Errorf("sole %s: %w", name, err)
		}
		out[q] = v
	}
	return out, nil
}

// Mode parses the initial mode, JOINT_SPACE when unset.
func (h *Hand) Mode() (manipulation.Mode, error) {
	if h.InitialMode == "" {
		return manipulation.ModeJointSpace, nil
	}
	return manipulation.ParseMode(h.InitialMode)
}

// Gains returns the joint gains, or false when neither is set.
func (h *Hand) Gains() (manipulation.Gains, bool) {
	if h.Stiffness == 0 && h.Damping == 0 {
		return manipulation.Gains{}, false
	}
	return manipulation.Gains{Stiffness: h.Stiffness, Damping: h.Damping}, true
}

// Transform converts the frame offset.
func (f *Frame) Transform() (frames.Transform, error) {
	t := frames.IdentityTransform()
	if f.Translation != nil {
		v, err := vec3(f.Translation)
		if err != nil {
			return t, fmt.Errorf("frame %s translation: %w", f.Name, err)
		}
		t.Translation = v
	}
	if f.Rotation != nil {
		if len(f.Rotation) != 4 {
			return t, fmt.Errorf("frame %s rotation: want w x y z, got %d values", f.Name, len(f.Rotation))
		}
		r := f.Rotation
		q := quat.Number{Real: r[0], Imag: r[1], Jmag: r[2], Kmag: r[3]}
		if quat.Abs(q) == 0 {
			return t, fmt.Errorf("frame %s rotation: zero quaternion", f.Name)
		}
		t.Rotation = frames.Normalize(q)
	}
	return t, nil
}

// BuildFrames adds the configured frames to tree, parents first.
func (r *Robot) BuildFrames(tree *frames.Tree) error {
	for _, f := range r.Frames {
		parent := tree.World()
		if f.Parent != "" && f.Parent != frames.WorldName {
			p, err := tree.Get(f.Parent)
			if err != nil {
				return fmt.Errorf("frame %s: parent %w", f.Name, err)
			}
			parent = p
		}
		t, err := f.Transform()
		if err != nil {
			return err
		}
		if _, err := tree.Add(f.Name, parent, t); err != nil {
			return err
		}
	}
	return nil
}

func vec3(v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("want x y z, got %d values", len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
