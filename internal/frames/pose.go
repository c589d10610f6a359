package frames

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a position and orientation expressed in Frame.
type Pose struct {
	Frame       *Frame
	Position    r3.Vec
	Orientation quat.Number
}

// NewPose returns a pose with a normalized orientation.
func NewPose(frame *Frame, position r3.Vec, orientation quat.Number) Pose {
	return Pose{Frame: frame, Position: position, Orientation: Normalize(orientation)}
}

// OriginOf returns the pose of frame's origin expressed in frame.
func OriginOf(frame *Frame) Pose {
	return Pose{Frame: frame, Orientation: Identity}
}

// AsTransform returns the transform from the posed body into Frame.
func (p Pose) AsTransform() Transform {
	return Transform{Rotation: p.Orientation, Translation: p.Position}
}

// ChangeFrame re-expresses p in target using the current transforms
// between the two frames.
func (p Pose) ChangeFrame(target *Frame) Pose {
	if p.Frame == target {
		return p
	}
	t := p.Frame.TransformTo(target).Compose(p.AsTransform())
	return Pose{Frame: target, Position: t.Translation, Orientation: t.Rotation}
}

// ChangeTrackingFrame turns the desired pose of one body-fixed frame into
// the desired pose of another frame rigidly attached to the same body.
// bodyToBody maps coordinates in the new tracking frame into the old one.
func (p Pose) ChangeTrackingFrame(bodyToBody Transform) Pose {
	t := p.AsTransform().Compose(bodyToBody)
	return Pose{Frame: p.Frame, Position: t.Translation, Orientation: t.Rotation}
}

// ApproxEqual compares two poses expressed in the same frame.
func (p Pose) ApproxEqual(other Pose, tol float64) bool {
	return p.Frame == other.Frame && p.AsTransform().ApproxEqual(other.AsTransform(), tol)
}

func (p Pose) String() string {
	name := "<nil>"
	if p.Frame != nil {
		name = p.Frame.Name()
	}
	return fmt.Sprintf("%s in %s", p.AsTransform(), name)
}
