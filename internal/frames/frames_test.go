package frames

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func testTree(t *testing.T) (*Tree, *Frame, *Frame) {
	t.Helper()
	tree := NewTree()
	chest, err := tree.Add("chest", tree.World(), NewTransform(
		AxisAngle(r3.Vec{Z: 1}, math.Pi/3),
		r3.Vec{X: 0.1, Y: -0.2, Z: 1.1},
	))
	require.NoError(t, err)
	hand, err := tree.Add("left_hand", chest, NewTransform(
		AxisAngle(r3.Vec{X: 1, Y: 1}, 0.7),
		r3.Vec{X: 0.4, Y: 0.3, Z: -0.2},
	))
	require.NoError(t, err)
	return tree, chest, hand
}

func TestTransform_ComposeInverse(t *testing.T) {
	t.Parallel()

	a := NewTransform(AxisAngle(r3.Vec{Y: 1}, 0.4), r3.Vec{X: 1, Y: 2, Z: 3})
	assert.True(t, a.Compose(a.Inverse()).ApproxEqual(IdentityTransform(), tol))
	assert.True(t, a.Inverse().Compose(a).ApproxEqual(IdentityTransform(), tol))

	p := r3.Vec{X: -0.5, Y: 0.25, Z: 2}
	back := a.Inverse().Apply(a.Apply(p))
	assert.InDelta(t, p.X, back.X, tol)
	assert.InDelta(t, p.Y, back.Y, tol)
	assert.InDelta(t, p.Z, back.Z, tol)
}

func TestRotate_QuarterTurn(t *testing.T) {
	t.Parallel()

	v := Rotate(AxisAngle(r3.Vec{Z: 1}, math.Pi/2), r3.Vec{X: 1})
	assert.InDelta(t, 0, v.X, tol)
	assert.InDelta(t, 1, v.Y, tol)
	assert.InDelta(t, 0, v.Z, tol)
}

func TestFrame_TransformTo(t *testing.T) {
	t.Parallel()

	tree, chest, hand := testTree(t)
	world := tree.World()

	assert.True(t, hand.TransformTo(hand).ApproxEqual(IdentityTransform(), tol))
	assert.True(t, hand.TransformTo(chest).ApproxEqual(hand.TransformToParent(), tol))

	viaChest := chest.TransformTo(world).Compose(hand.TransformTo(chest))
	assert.True(t, viaChest.ApproxEqual(hand.TransformTo(world), tol))
	assert.True(t, world.TransformTo(hand).ApproxEqual(hand.TransformTo(world).Inverse(), tol))
}

func TestPose_ChangeFrameRoundTrip(t *testing.T) {
	t.Parallel()

	tree, chest, hand := testTree(t)
	original := NewPose(hand, r3.Vec{X: 0.05, Y: 0.01, Z: 0.12}, AxisAngle(r3.Vec{X: 0.2, Y: 1, Z: 0.3}, 1.1))

	for _, target := range []*Frame{tree.World(), chest, hand} {
		t.Run(target.Name(), func(t *testing.T) {
			projected := original.ChangeFrame(target)
			assert.Same(t, target, projected.Frame)
			back := projected.ChangeFrame(hand)
			assert.True(t, back.ApproxEqual(original, 1e-9), "got %s want %s", back, original)
		})
	}
}

func TestPose_ChangeFrameFollowsMovingFrames(t *testing.T) {
	t.Parallel()

	tree, chest, _ := testTree(t)
	desired := NewPose(chest, r3.Vec{X: 0.5}, Identity)

	before := desired.ChangeFrame(tree.World())
	chest.SetTransformToParent(NewTransform(Identity, r3.Vec{Z: 2}))
	after := desired.ChangeFrame(tree.World())

	assert.False(t, before.ApproxEqual(after, 1e-6))
	assert.InDelta(t, 0.5, after.Position.X, tol)
	assert.InDelta(t, 2.0, after.Position.Z, tol)
}

func TestPose_ChangeTrackingFrame(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	offset := NewTransform(AxisAngle(r3.Vec{Z: 1}, 0.3), r3.Vec{X: 0.1})
	desired := NewPose(tree.World(), r3.Vec{X: 1, Y: 1}, AxisAngle(r3.Vec{X: 1}, 0.2))

	moved := desired.ChangeTrackingFrame(offset)
	restored := moved.ChangeTrackingFrame(offset.Inverse())
	assert.True(t, restored.ApproxEqual(desired, tol))
}

func TestTree(t *testing.T) {
	t.Parallel()

	tree, chest, _ := testTree(t)
	assert.Equal(t, 3, tree.Len())

	got, err := tree.Get("chest")
	require.NoError(t, err)
	assert.Same(t, chest, got)
	assert.Same(t, tree.World(), chest.Parent())

	_, err = tree.Get("right_hand")
	assert.ErrorIs(t, err, ErrFrameNotFound)

	_, err = tree.Add("chest", nil, IdentityTransform())
	assert.ErrorIs(t, err, ErrFrameExists)

	assert.Panics(t, func() { tree.MustGet("nope") })
}

func TestOrientationCloseIgnoresSign(t *testing.T) {
	t.Parallel()
	q := AxisAngle(r3.Vec{Y: 1}, 0.8)
	neg := q
	neg.Real, neg.Imag, neg.Jmag, neg.Kmag = -q.Real, -q.Imag, -q.Jmag, -q.Kmag
	assert.True(t, OrientationClose(q, neg, tol))
}
