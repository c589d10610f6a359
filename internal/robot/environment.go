// Package robot defines the runtime environment the control modules run in,
// and an in-process simulated implementation.
package robot

import (
	"time"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/spatial/r3"
)

// ModeRequest is a decoded mode change addressed to one controller.
type ModeRequest struct {
	ID         string `json:"id,omitempty"`
	Controller string `json:"controller"`
	Mode       string `json:"mode"`
}

// Environment is everything a control module reads from the robot. It is
// owned by the runtime and shared read-only by all states during a tick.
type Environment interface {
	// ControlDT is the fixed control period.
	ControlDT() time.Duration
	// Timestamp is the monotonic controller time in seconds.
	Timestamp() float64
	Joints() *JointState
	FootSwitch(q timing.Quadrant) *FootSwitch
	// SolePosition is the estimated world position of a foot.
	SolePosition(q timing.Quadrant) r3.Vec
	Frames() *frames.Tree
	// RegisterController creates the request inbox of controller. It is
	// called while the stack is assembled, before the first tick.
	RegisterController(controller string)
	// TryReceiveModeRequest returns the latest pending request for
	// controller, if any, without blocking.
	TryReceiveModeRequest(controller string) (ModeRequest, bool)
}
