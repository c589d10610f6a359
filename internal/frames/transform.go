package frames

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity is the unit quaternion.
var Identity = quat.Number{Real: 1}

// Transform is a rigid-body transform: a rotation followed by a
// translation.
type Transform struct {
	Rotation    quat.Number
	Translation r3.Vec
}

// IdentityTransform maps every point onto itself.
func IdentityTransform() Transform {
	return Transform{Rotation: Identity}
}

// NewTransform builds a transform and normalizes its rotation.
func NewTransform(rotation quat.Number, translation r3.Vec) Transform {
	return Transform{Rotation: Normalize(rotation), Translation: translation}
}

// AxisAngle returns the unit quaternion rotating by angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, axis))
}

// Normalize scales q to unit length. The zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// Apply maps p through the transform.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(Rotate(t.Rotation, p), t.Translation)
}

// Compose returns t∘other, the transform that applies other first.
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		Rotation:    Normalize(quat.Mul(t.Rotation, other.Rotation)),
		Translation: t.Apply(other.Translation),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := quat.Conj(t.Rotation)
	return Transform{
		Rotation:    inv,
		Translation: r3.Scale(-1, Rotate(inv, t.Translation)),
	}
}

// ApproxEqual compares translations component-wise and rotations up to sign.
func (t Transform) ApproxEqual(other Transform, tol float64) bool {
	return vecClose(t.Translation, other.Translation, tol) &&
		OrientationClose(t.Rotation, other.Rotation, tol)
}

func (t Transform) String() string {
	q := t.Rotation
	return fmt.Sprintf("t=(%.4f, %.4f, %.4f) q=(%.4f, %.4f, %.4f, %.4f)",
		t.Translation.X, t.Translation.Y, t.Translation.Z, q.Real, q.Imag, q.Jmag, q.Kmag)
}

func vecClose(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

// OrientationClose reports whether a and b describe the same rotation. q and
// -q are the same rotation.
func OrientationClose(a, b quat.Number, tol float64) bool {
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return 1-math.Abs(dot) <= tol
}
