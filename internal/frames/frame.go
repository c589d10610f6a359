// Package frames models the reference-frame tree of the robot and the poses
// expressed in it.
//
// Frames are owned by the runtime. It updates their transforms between
// ticks, and the control modules only read them during a tick.
package frames

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrFrameExists   = errors.New("frame already exists")
	ErrFrameNotFound = errors.New("frame not found")
)

// WorldName is the name of the root frame.
const WorldName = "world"

// Frame is a node in the reference-frame tree. Its transform maps
// coordinates expressed in the frame into its parent.
type Frame struct {
	name     string
	parent   *Frame
	toParent Transform
}

// Name returns the frame name.
func (f *Frame) Name() string {
	return f.name
}

// Parent returns the parent frame, or nil for the root.
func (f *Frame) Parent() *Frame {
	return f.parent
}

func (f *Frame) String() string {
	return f.name
}

// SetTransformToParent replaces the pose of f in its parent.
func (f *Frame) SetTransformToParent(t Transform) {
	f.toParent = t
}

// TransformToParent returns the pose of f in its parent.
func (f *Frame) TransformToParent() Transform {
	return f.toParent
}

// TransformToWorld maps coordinates in f into the root frame.
func (f *Frame) TransformToWorld() Transform {
	t := IdentityTransform()
	for node := f; node != nil && node.parent != nil; node = node.parent {
		t = node.toParent.Compose(t)
	}
	return t
}

// TransformTo maps coordinates in f into target, using the transforms as
// they are now.
func (f *Frame) TransformTo(target *Frame) Transform {
	if f == target {
		return IdentityTransform()
	}
	return target.TransformToWorld().Inverse().Compose(f.TransformToWorld())
}

// Tree indexes the frames of one robot by name.
type Tree struct {
	mu     sync.RWMutex
	world  *Frame
	byName map[string]*Frame
}

// NewTree returns a tree holding only the world frame.
func NewTree() *Tree {
	world := &Frame{name: WorldName, toParent: IdentityTransform()}
	return &Tree{
		world:  world,
		byName: map[string]*Frame{WorldName: world},
	}
}

// World returns the root frame.
func (t *Tree) World() *Frame {
	return t.world
}

// Add creates the frame name below parent.
func (t *Tree) Add(name string, parent *Frame, toParent Transform) (*Frame, error) {
	if parent == nil {
		parent = t.world
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrFrameExists, name)
	}
	f := &Frame{name: name, parent: parent, toParent: toParent}
	t.byName[name] = f
	return f, nil
}

// Get looks up a frame by name.
func (t *Tree) Get(name string) (*Frame, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, name)
	}
	return f, nil
}

// MustGet is Get for frames the caller created itself.
func (t *Tree) MustGet(name string) *Frame {
	f, err := t.Get(name)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the number of frames, world included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}
