package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/locomotion"
	"github.com/atlanticdynamic/modectl/internal/manipulation"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/stream"
	"github.com/atlanticdynamic/modectl/internal/timing"
	"github.com/gofrs/uuid/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownController = errors.New("unknown controller")
	ErrBadVector         = errors.New("malformed vector")
)

// RequestModeInput asks a controller to switch mode, holding where it is.
type RequestModeInput struct {
	Controller string `json:"controller" jsonschema:"name of the hand or quadruped"`
	Mode       string `json:"mode" jsonschema:"target mode, for example FREEZE or JOINT_SPACE"`
}

// Accepted acknowledges a request handed to a controller.
type Accepted struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
	Mode       string `json:"mode,omitempty"`
}

// MoveHandInput is a hand command.
type MoveHandInput struct {
	Hand         string             `json:"hand" jsonschema:"name of the hand"`
	Mode         string             `json:"mode" jsonschema:"hand mode"`
	Hold         bool               `json:"hold,omitempty" jsonschema:"hold the current configuration in mode"`
	Duration     float64            `json:"duration,omitempty" jsonschema:"trajectory duration in seconds"`
	Joints       map[string]float64 `json:"joints,omitempty" jsonschema:"joint goals in radians"`
	Min          map[string]float64 `json:"min,omitempty" jsonschema:"lower joint bounds in radians"`
	Max          map[string]float64 `json:"max,omitempty" jsonschema:"upper joint bounds in radians"`
	Frame        string             `json:"frame,omitempty" jsonschema:"frame the goal is expressed in"`
	Position     []float64          `json:"position,omitempty" jsonschema:"goal position x y z in meters"`
	Orientation  []float64          `json:"orientation,omitempty" jsonschema:"goal orientation quaternion w x y z"`
	ControlFrame string             `json:"control_frame,omitempty" jsonschema:"frame whose pose is controlled"`
}

// StepInput is one planned footstep.
type StepInput struct {
	SequenceID      uint64    `json:"sequence_id"`
	Start           float64   `json:"start" jsonschema:"lift-off time in seconds"`
	End             float64   `json:"end" jsonschema:"touch-down time in seconds"`
	Quadrant        string    `json:"quadrant" jsonschema:"FRONT_LEFT, FRONT_RIGHT, HIND_LEFT or HIND_RIGHT"`
	Goal            []float64 `json:"goal" jsonschema:"touch-down position x y z in meters"`
	GroundClearance float64   `json:"ground_clearance,omitempty" jsonschema:"swing apex height in meters"`
}

// SubmitStepPlanInput is a step plan for one quadruped.
type SubmitStepPlanInput struct {
	Robot        string      `json:"robot"`
	AbsoluteTime bool        `json:"absolute_time,omitempty" jsonschema:"step times are absolute instead of relative to the start of stepping"`
	Steps        []StepInput `json:"steps"`
}

// SetVelocityInput sets the x-gait velocity of one quadruped.
type SetVelocityInput struct {
	Robot string  `json:"robot"`
	X     float64 `json:"x" jsonschema:"forward velocity in m/s"`
	Y     float64 `json:"y" jsonschema:"lateral velocity in m/s"`
}

// StatusInput limits the history returned by the status tool.
type StatusInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of history entries, newest kept"`
}

// HistoryEntry is one recorded transition or fault.
type HistoryEntry struct {
	Time    string            `json:"time"`
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Status describes the control loop.
type Status struct {
	State      string         `json:"state"`
	Ticks      uint64         `json:"ticks"`
	Faults     uint64         `json:"faults"`
	Hands      []string       `json:"hands"`
	Quadrupeds []string       `json:"quadrupeds"`
	History    []HistoryEntry `json:"history"`
}

type tools struct {
	targets Targets
	logger  *slog.Logger
}

func newID() string {
	id, err := uuid.NewV6()
	if err != nil {
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}

func (t *tools) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "request_mode",
		Description: "Switch a hand or quadruped into a mode, holding its current configuration.",
	}, t.requestMode)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_hand",
		Description: "Send a trajectory or hold command to a hand.",
	}, t.moveHand)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_step_plan",
		Description: "Hand a timed footstep plan to a quadruped. A standing robot starts stepping.",
	}, t.submitStepPlan)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_xgait_velocity",
		Description: "Set the planar velocity of a quadruped's x-gait.",
	}, t.setVelocity)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Report the control loop state and recent transitions and faults.",
	}, t.status)
}

func (t *tools) requestMode(
	_ context.Context,
	_ *mcp.CallToolRequest,
	in RequestModeInput,
) (*mcp.CallToolResult, Accepted, error) {
	var mode string
	if _, ok := t.targets.hand(in.Controller); ok {
		m, err := manipulation.ParseMode(in.Mode)
		if err != nil {
			return nil, Accepted{}, err
		}
		mode = string(m)
	} else if _, ok := t.targets.quadruped(in.Controller); ok {
		m, err := locomotion.ParseMode(in.Mode)
		if err != nil {
			return nil, Accepted{}, err
		}
		mode = string(m)
	} else {
		return nil, Accepted{}, fmt.Errorf("%w: %q", ErrUnknownController, in.Controller)
	}

	req := robot.ModeRequest{ID: newID(), Controller: in.Controller, Mode: mode}
	t.targets.Poster.PostModeRequest(req)
	t.logger.Info("Mode requested", "id", req.ID, "controller", req.Controller, "mode", req.Mode)
	return nil, Accepted{ID: req.ID, Controller: req.Controller, Mode: req.Mode}, nil
}

func (t *tools) moveHand(
	_ context.Context,
	_ *mcp.CallToolRequest,
	in MoveHandInput,
) (*mcp.CallToolResult, Accepted, error) {
	hand, ok := t.targets.hand(in.Hand)
	if !ok {
		return nil, Accepted{}, fmt.Errorf("%w: hand %q", ErrUnknownController, in.Hand)
	}
	req, err := t.handRequest(in)
	if err != nil {
		return nil, Accepted{}, err
	}
	if err := hand.Validate(req); err != nil {
		return nil, Accepted{}, err
	}

	id := newID()
	hand.Post(req)
	t.logger.Info("Hand command posted", "id", id, "hand", in.Hand, "mode", req.Mode, "hold", req.Hold)
	return nil, Accepted{ID: id, Controller: in.Hand, Mode: string(req.Mode)}, nil
}

func (t *tools) handRequest(in MoveHandInput) (manipulation.Request, error) {
	mode, err := manipulation.ParseMode(in.Mode)
	if err != nil {
		return manipulation.Request{}, err
	}
	req := manipulation.Request{
		Mode:     mode,
		Hold:     in.Hold,
		Duration: in.Duration,
		Joints:   in.Joints,
		Min:      in.Min,
		Max:      in.Max,
	}

	var errz []error
	if in.Frame != "" {
		f, err := t.targets.Frames.Get(in.Frame)
		if err != nil {
			errz = append(errz, err)
		}
		req.Goal.Frame = f
	}
	if in.ControlFrame != "" {
		f, err := t.targets.Frames.Get(in.ControlFrame)
		if err != nil {
			errz = append(errz, err)
		}
		req.ControlFrame = f
	}
	if in.Position != nil {
		p, err := vec(in.Position)
		if err != nil {
			errz = append(errz, fmt.Errorf("position: %w", err))
		}
		req.Goal.Position = p
	}
	req.Goal.Orientation = frames.Identity
	if in.Orientation != nil {
		if len(in.Orientation) != 4 {
			errz = append(errz, fmt.Errorf("orientation: %w: want 4 components, got %d", ErrBadVector, len(in.Orientation)))
		} else {
			o := in.Orientation
			req.Goal.Orientation = quat.Number{Real: o[0], Imag: o[1], Jmag: o[2], Kmag: o[3]}
		}
	}
	return req, errors.Join(errz...)
}

func (t *tools) submitStepPlan(
	_ context.Context,
	_ *mcp.CallToolRequest,
	in SubmitStepPlanInput,
) (*mcp.CallToolResult, Accepted, error) {
	q, ok := t.targets.quadruped(in.Robot)
	if !ok {
		return nil, Accepted{}, fmt.Errorf("%w: robot %q", ErrUnknownController, in.Robot)
	}

	plan := stream.Plan{AbsoluteTime: in.AbsoluteTime, Steps: make([]timing.TimedStep, 0, len(in.Steps))}
	var errz []error
	for i, s := range in.Steps {
		quadrant, err := timing.ParseQuadrant(s.Quadrant)
		if err != nil {
			errz = append(errz, fmt.Errorf("step %d: %w", i, err))
		}
		goal, err := vec(s.Goal)
		if err != nil {
			errz = append(errz, fmt.Errorf("step %d goal: %w", i, err))
		}
		plan.Steps = append(plan.Steps, timing.TimedStep{
			SequenceID:      s.SequenceID,
			Interval:        timing.TimeInterval{Start: s.Start, End: s.End},
			Quadrant:        quadrant,
			Goal:            goal,
			GroundClearance: s.GroundClearance,
		})
	}
	if err := errors.Join(errz...); err != nil {
		return nil, Accepted{}, err
	}
	if err := q.SubmitStepPlan(plan); err != nil {
		return nil, Accepted{}, err
	}

	id := newID()
	t.logger.Info("Step plan submitted", "id", id, "robot", in.Robot, "steps", len(plan.Steps))
	return nil, Accepted{ID: id, Controller: in.Robot}, nil
}

func (t *tools) setVelocity(
	_ context.Context,
	_ *mcp.CallToolRequest,
	in SetVelocityInput,
) (*mcp.CallToolResult, Accepted, error) {
	q, ok := t.targets.quadruped(in.Robot)
	if !ok {
		return nil, Accepted{}, fmt.Errorf("%w: robot %q", ErrUnknownController, in.Robot)
	}
	if _, err := vec([]float64{in.X, in.Y, 0}); err != nil {
		return nil, Accepted{}, fmt.Errorf("velocity: %w", err)
	}
	q.SetXGaitVelocity(stream.PlanarVelocity{X: in.X, Y: in.Y})
	return nil, Accepted{ID: newID(), Controller: in.Robot}, nil
}

func (t *tools) status(
	_ context.Context,
	_ *mcp.CallToolRequest,
	in StatusInput,
) (*mcp.CallToolResult, Status, error) {
	out := Status{
		Hands:      make([]string, 0, len(t.targets.Hands)),
		Quadrupeds: make([]string, 0, len(t.targets.Quadrupeds)),
		History:    []HistoryEntry{},
	}
	for _, h := range t.targets.Hands {
		out.Hands = append(out.Hands, h.Name())
	}
	for _, q := range t.targets.Quadrupeds {
		out.Quadrupeds = append(out.Quadrupeds, q.Name())
	}
	if t.targets.Loop != nil {
		out.State = t.targets.Loop.GetState()
		out.Ticks = t.targets.Loop.Ticks()
		out.Faults = t.targets.Loop.Faults()
	}
	if t.targets.History == nil {
		return nil, out, nil
	}

	records := t.targets.History.Records()
	if in.Limit > 0 && len(records) > in.Limit {
		records = records[len(records)-in.Limit:]
	}
	for _, r := range records {
		entry := HistoryEntry{Time: r.Time.Format(time.RFC3339Nano), Level: r.Level.String(), Message: r.Message}
		if len(r.Attrs) > 0 {
			entry.Attrs = make(map[string]string, len(r.Attrs))
			for _, a := range r.Attrs {
				entry.Attrs[a.Key] = a.Value.String()
			}
		}
		out.History = append(out.History, entry)
	}
	return nil, out, nil
}

func vec(v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("%w: want 3 components, got %d", ErrBadVector, len(v))
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return r3.Vec{}, fmt.Errorf("%w: not finite", ErrBadVector)
		}
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
