package locomotion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
)

var ErrUnknownMode = errors.New("unknown locomotion mode")

// Mode is a locomotion mode of the quadruped.
type Mode string

const (
	ModeJointInitialization Mode = "JOINT_INITIALIZATION"
	ModeDoNothing           Mode = "DO_NOTHING"
	ModeStandPrep           Mode = "STAND_PREP"
	ModeStandReady          Mode = "STAND_READY"
	ModeFreeze              Mode = "FREEZE"
	ModeStand               Mode = "STAND"
	ModeStep                Mode = "STEP"
	ModeXGait               Mode = "XGAIT"
	ModeFall                Mode = "FALL"
	ModeSoleWaypoint        Mode = "SOLE_WAYPOINT"
)

// Modes lists every locomotion mode in registration order.
var Modes = []Mode{
	ModeJointInitialization,
	ModeDoNothing,
	ModeStandPrep,
	ModeStandReady,
	ModeFreeze,
	ModeStand,
	ModeStep,
	ModeXGait,
	ModeFall,
	ModeSoleWaypoint,
}

const (
	EventRequestDoNothing    statemachine.Event = "REQUEST_DO_NOTHING"
	EventRequestStandPrep    statemachine.Event = "REQUEST_STAND_PREP"
	EventRequestFreeze       statemachine.Event = "REQUEST_FREEZE"
	EventRequestStand        statemachine.Event = "REQUEST_STAND"
	EventRequestStep         statemachine.Event = "REQUEST_STEP"
	EventRequestXGait        statemachine.Event = "REQUEST_XGAIT"
	EventRequestFall         statemachine.Event = "REQUEST_FALL"
	EventRequestSoleWaypoint statemachine.Event = "REQUEST_SOLE_WAYPOINT"
)

// Event returns the requested event that switches into m. Modes that are
// only reached automatically have none.
func (m Mode) Event() statemachine.Event {
	switch m {
	case ModeDoNothing:
		return EventRequestDoNothing
	case ModeStandPrep:
		return EventRequestStandPrep
	case ModeFreeze:
		return EventRequestFreeze
	case ModeStand:
		return EventRequestStand
	case ModeStep:
		return EventRequestStep
	case ModeXGait:
		return EventRequestXGait
	case ModeFall:
		return EventRequestFall
	case ModeSoleWaypoint:
		return EventRequestSoleWaypoint
	default:
		return statemachine.EventNone
	}
}

// Requestable reports whether m can be entered by request.
func (m Mode) Requestable() bool {
	return m.Event() != statemachine.EventNone
}

// ParseMode accepts the name of a requestable mode in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Requestable() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}
