package operator

import (
	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/locomotion"
	"github.com/atlanticdynamic/modectl/internal/manipulation"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/robbyt/go-loglater/storage"
)

var (
	_ Hand      = (*manipulation.Module)(nil)
	_ Quadruped = (*locomotion.Manager)(nil)
	_ Poster    = (*robot.Sim)(nil)
)

// Hand is a hand module as seen from outside the control goroutine.
type Hand interface {
	Name() string
	Validate(req manipulation.Request) error
	Post(req manipulation.Request)
}

// Quadruped is a locomotion manager as seen from outside the control
// goroutine.
type Quadruped interface {
	Name() string
	SubmitStepPlan(plan stream.Plan) error
	SetXGaitVelocity(v stream.PlanarVelocity)
}

// Poster delivers mode requests to the controllers.
type Poster interface {
	PostModeRequest(req robot.ModeRequest)
}

// Loop reports the health of the control loop.
type Loop interface {
	GetState() string
	Ticks() uint64
	Faults() uint64
}

// Recorder holds the recent transitions and faults.
type Recorder interface {
	Records() []storage.Record
}

// Targets is everything the operator tools act on.
type Targets struct {
	Poster     Poster
	Frames     *frames.Tree
	Hands      []Hand
	Quadrupeds []Quadruped
	Loop       Loop
	History    Recorder
}

func (t Targets) hand(name string) (Hand, bool) {
	for _, h := range t.Hands {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

func (t Targets) quadruped(name string) (Quadruped, bool) {
	for _, q := range t.Quadrupeds {
		if q.Name() == name {
			return q, true
		}
	}
	return nil, false
}
