package manipulation

import (
	"fmt"
	"strings"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
)

// Mode is a control mode of one hand.
type Mode string

const (
	ModeJointSpace         Mode = "JOINT_SPACE"
	ModeTaskSpacePosition  Mode = "TASK_SPACE_POSITION"
	ModeObjectManipulation Mode = "OBJECT_MANIPULATION"
	ModePointPosition      Mode = "POINT_POSITION"
	ModeLoadBearing        Mode = "LOAD_BEARING"
)

// Modes lists every hand mode in registration order.
var Modes = []Mode{
	ModeJointSpace,
	ModeTaskSpacePosition,
	ModeObjectManipulation,
	ModePointPosition,
	ModeLoadBearing,
}

// Requested events, one per mode.
const (
	EventRequestJointSpace         statemachine.Event = "REQUEST_JOINT_SPACE"
	EventRequestTaskSpace          statemachine.Event = "REQUEST_TASKSPACE"
	EventRequestObjectManipulation statemachine.Event = "REQUEST_OBJECT_MANIPULATION"
	EventRequestPointPosition      statemachine.Event = "REQUEST_POINT_POSITION"
	EventRequestLoadBearing        statemachine.Event = "REQUEST_LOAD_BEARING"
)

// Event returns the requested event that switches into m.
func (m Mode) Event() statemachine.Event {
	switch m {
	case ModeJointSpace:
		return EventRequestJointSpace
	case ModeTaskSpacePosition:
		return EventRequestTaskSpace
	case ModeObjectManipulation:
		return EventRequestObjectManipulation
	case ModePointPosition:
		return EventRequestPointPosition
	case ModeLoadBearing:
		return EventRequestLoadBearing
	default:
		return statemachine.EventNone
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m.Event() != statemachine.EventNone
}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}
