package wbc

import (
	"github.com/atlanticdynamic/modectl/internal/timing"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind tags the concrete type of a Command.
type Kind uint8

const (
	KindJointFeedback Kind = iota + 1
	KindContactForce
	KindMomentumRate
	KindFootFeedback
)

func (k Kind) String() string {
	switch k {
	case KindJointFeedback:
		return "joint_feedback"
	case KindContactForce:
		return "contact_force"
	case KindMomentumRate:
		return "momentum_rate"
	case KindFootFeedback:
		return "foot_feedback"
	default:
		return "unknown"
	}
}

// Command is one feedback or virtual-model command submitted to the core.
type Command interface {
	Kind() Kind
}

// JointFeedback asks the core to track a joint setpoint.
type JointFeedback struct {
	Joint       string
	Position    float64
	Velocity    float64
	Stiffness   float64
	Damping     float64
	Feedforward float64
}

func (JointFeedback) Kind() Kind { return KindJointFeedback }

// ContactForce is the virtual-model force a foot in contact should exert.
type ContactForce struct {
	Quadrant timing.Quadrant
	Force    r3.Vec
}

func (ContactForce) Kind() Kind { return KindContactForce }

// MomentumRate is the desired rate of change of linear momentum of the
// whole robot.
type MomentumRate struct {
	Linear r3.Vec
}

func (MomentumRate) Kind() Kind { return KindMomentumRate }

// FootFeedback asks the core to track a sole position, used for swing legs
// and held feet.
type FootFeedback struct {
	Quadrant timing.Quadrant
	Position r3.Vec
	Gain     float64
}

func (FootFeedback) Kind() Kind { return KindFootFeedback }

// CommandList is a reusable list of commands. Reset keeps the backing
// storage so a steady-state tick does not allocate.
type CommandList struct {
	cmds []Command
}

// NewCommandList returns a list with room for capacity commands.
func NewCommandList(capacity int) *CommandList {
	return &CommandList{cmds: make([]Command, 0, capacity)}
}

func (l *CommandList) Add(cmd Command) {
	l.cmds = append(l.cmds, cmd)
}

func (l *CommandList) Len() int {
	return len(l.cmds)
}

// Commands returns the list contents, valid until the next Reset.
func (l *CommandList) Commands() []Command {
	return l.cmds
}

func (l *CommandList) Reset() {
	clear(l.cmds)
	l.cmds = l.cmds[:0]
}

// Count returns how many commands of kind k are in the list.
func (l *CommandList) Count(k Kind) int {
	n := 0
	for _, c := range l.cmds {
		if c.Kind() == k {
			n++
		}
	}
	return n
}
