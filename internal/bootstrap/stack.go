// Package bootstrap assembles the environment, controllers and supervised
// runnables described by a configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/modectl/internal/config"
	"github.com/atlanticdynamic/modectl/internal/controlloop"
	"github.com/atlanticdynamic/modectl/internal/frames"
	"github.com/atlanticdynamic/modectl/internal/locomotion"
	"github.com/atlanticdynamic/modectl/internal/mailbox"
	"github.com/atlanticdynamic/modectl/internal/manipulation"
	"github.com/atlanticdynamic/modectl/internal/operator"
	"github.com/atlanticdynamic/modectl/internal/recovery"
	"github.com/atlanticdynamic/modectl/internal/robot"
	"github.com/atlanticdynamic/modectl/internal/robot/servo"
	"github.com/robbyt/go-supervisor/supervisor"
)

// Stack is a fully wired robot.
type Stack struct {
	Frames     *frames.Tree
	Env        *robot.Sim
	Locomotion *locomotion.Manager
	Hands      []*manipulation.Module
	History    *controlloop.History
	Loop       *controlloop.Runner
	Recovery   *recovery.Policy
	Operator   *operator.Server
	Bridge     *servo.Bridge

	handler slog.Handler
}

// Options tweak Build for callers other than the CLI.
type Options struct {
	Version string
	// ServoOpener replaces the serial bus when servos are configured.
	ServoOpener servo.Opener
}

// Build validates cfg and constructs everything it describes. Nothing runs
// until Run.
func Build(cfg *config.Config, handler slog.Handler, opts Options) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		handler = slog.Default().Handler()
	}
	s := &Stack{Frames: frames.NewTree(), handler: handler}

	joints, err := cfg.Robot.JointState()
	if err != nil {
		return nil, err
	}
	if err := cfg.Robot.BuildFrames(s.Frames); err != nil {
		return nil, err
	}

	period := cfg.Control.Period.AsDuration()
	simOpts := []robot.SimOption{
		robot.WithLogger(slog.New(handler).WithGroup("robot.Sim")),
		robot.WithJointLag(cfg.Control.JointLag.AsDuration()),
	}
	if cfg.Locomotion != nil {
		soles, err := cfg.Locomotion.SolePositions()
		if err != nil {
			return nil, err
		}
		simOpts = append(simOpts, robot.WithSolePositions(soles))
	}
	if cfg.Robot.Servo != nil {
		measured := &mailbox.Mailbox[map[string]float64]{}
		commands := &mailbox.Mailbox[map[string]float64]{}
		s.Bridge, err = newBridge(cfg.Robot.Servo, measured, commands, handler, opts.ServoOpener)
		if err != nil {
			return nil, err
		}
		simOpts = append(simOpts, robot.WithJointBridge(measured, commands))
	}
	s.Env = robot.NewSim(period, joints, s.Frames, simOpts...)

	s.History = controlloop.NewHistory(cfg.Control.HistoryLimit)
	var controllers []controlloop.Controller

	if l := cfg.Locomotion; l != nil {
		s.Locomotion, err = locomotion.NewManager(l.Name, s.Env, l.Settings(),
			locomotion.WithLogHandler(handler),
			locomotion.WithObserver(s.History.Observe),
		)
		if err != nil {
			return nil, fmt.Errorf("locomotion %s: %w", l.Name, err)
		}
		controllers = append(controllers, s.Locomotion)
	}

	for i := range cfg.Hands {
		hand, err := s.newHand(&cfg.Hands[i])
		if err != nil {
			return nil, err
		}
		s.Hands = append(s.Hands, hand)
		controllers = append(controllers, hand)
	}

	loopOpts := []controlloop.Option{
		controlloop.WithLogHandler(handler),
		controlloop.WithPeriod(period),
		controlloop.WithEnvironment(s.Env),
		controlloop.WithHistory(s.History),
	}
	if cfg.Recovery.Enabled {
		s.Recovery, err = newPolicy(&cfg.Recovery, s.Env, handler)
		if err != nil {
			return nil, err
		}
		loopOpts = append(loopOpts, controlloop.WithFaultSink(s.Recovery))
	}
	s.Loop, err = controlloop.NewRunner(controllers, loopOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.Operator.Enabled {
		s.Operator, err = s.newOperator(&cfg.Operator, opts.Version)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Stack) newHand(h *config.Hand) (*manipulation.Module, error) {
	fr := manipulation.Frames{
		Base:  s.frame(h.Base),
		Chest: s.frame(h.Chest),
		Hand:  s.frame(h.Frame),
	}
	mode, err := h.Mode()
	if err != nil {
		return nil, err
	}
	opts := []manipulation.Option{
		manipulation.WithLogHandler(s.handler),
		manipulation.WithObserver(s.History.Observe),
		manipulation.WithInitialMode(mode),
	}
	if gains, ok := h.Gains(); ok {
		opts = append(opts, manipulation.WithGains(gains))
	}
	hand, err := manipulation.NewModule(h.Name, s.Env, h.Joints, fr, opts...)
	if err != nil {
		return nil, fmt.Errorf("hand %s: %w", h.Name, err)
	}
	return hand, nil
}

// frame resolves a validated frame name; empty stays nil.
func (s *Stack) frame(name string) *frames.Frame {
	switch name {
	case "":
		return nil
	case frames.WorldName:
		return s.Frames.World()
	}
	return s.Frames.MustGet(name)
}

func newBridge(
	cfg *config.Servo,
	measured, commands *mailbox.Mailbox[map[string]float64],
	handler slog.Handler,
	opener servo.Opener,
) (*servo.Bridge, error) {
	opts := []servo.Option{servo.WithLogHandler(handler)}
	if cfg.Period > 0 {
		opts = append(opts, servo.WithPeriod(cfg.Period.AsDuration()))
	}
	if opener != nil {
		opts = append(opts, servo.WithOpener(opener))
	} else {
		opts = append(opts, servo.WithSerialPort(cfg.Port, cfg.Baud))
	}
	bridge, err := servo.NewBridge(cfg.Calibration(), measured, commands, opts...)
	if err != nil {
		return nil, fmt.Errorf("servo: %w", err)
	}
	return bridge, nil
}

func newPolicy(cfg *config.Recovery, poster recovery.Poster, handler slog.Handler) (*recovery.Policy, error) {
	opts := []recovery.Option{
		recovery.WithLogHandler(handler),
		recovery.WithStaticData(cfg.Data),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, recovery.WithTimeout(cfg.Timeout.AsDuration()))
	}
	switch {
	case cfg.ScriptFile != "":
		opts = append(opts, recovery.WithScriptFile(cfg.ScriptFile))
	case cfg.Script != "":
		opts = append(opts, recovery.WithScript(cfg.Script))
	}
	policy, err := recovery.NewPolicy(poster, opts...)
	if err != nil {
		return nil, fmt.Errorf("recovery: %w", err)
	}
	return policy, nil
}

func (s *Stack) newOperator(cfg *config.Operator, version string) (*operator.Server, error) {
	targets := operator.Targets{
		Poster:  s.Env,
		Frames:  s.Frames,
		Loop:    s.Loop,
		History: s.History,
	}
	for _, h := range s.Hands {
		targets.Hands = append(targets.Hands, h)
	}
	if s.Locomotion != nil {
		targets.Quadrupeds = append(targets.Quadrupeds, s.Locomotion)
	}

	opts := []operator.Option{operator.WithLogHandler(s.handler)}
	if cfg.Address != "" {
		opts = append(opts, operator.WithAddress(cfg.Address))
	}
	if cfg.Path != "" {
		opts = append(opts, operator.WithPath(cfg.Path))
	}
	if version != "" {
		opts = append(opts, operator.WithVersion(version))
	}
	if cfg.DrainTimeout > 0 {
		opts = append(opts, operator.WithDrainTimeout(cfg.DrainTimeout.AsDuration()))
	}
	return operator.NewServer(targets, opts...)
}

// Runnables lists what the supervisor starts, in start order: the servo
// bridge, the recovery policy, the control loop, then the operator.
func (s *Stack) Runnables() []supervisor.Runnable {
	var out []supervisor.Runnable
	if s.Bridge != nil {
		out = append(out, s.Bridge)
	}
	if s.Recovery != nil {
		out = append(out, s.Recovery)
	}
	out = append(out, s.Loop)
	if s.Operator != nil {
		out = append(out, s.Operator)
	}
	return out
}

// Run supervises the stack until ctx is canceled or a runnable fails.
func (s *Stack) Run(ctx context.Context) error {
	super, err := supervisor.New(
		supervisor.WithContext(ctx),
		supervisor.WithLogHandler(s.handler),
		supervisor.WithRunnables(s.Runnables()...),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}
	start := time.Now()
	if err := super.Run(); err != nil {
		return fmt.Errorf("failed to run: %w", err)
	}
	slog.New(s.handler).Info("Shutdown complete", "uptime", time.Since(start).Round(time.Millisecond))
	return nil
}

// Controllers returns the built controllers by their loop names.
func (s *Stack) Controllers() []controlloop.Controller {
	var out []controlloop.Controller
	if s.Locomotion != nil {
		out = append(out, s.Locomotion)
	}
	for _, h := range s.Hands {
		out = append(out, h)
	}
	return out
}
