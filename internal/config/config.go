// Package config loads the modectl TOML configuration: the robot's joints,
// frames and servos, the controllers to run, and the surfaces around them.
package config

import (
	"time"

	"github.com/atlanticdynamic/modectl/internal/controlloop"
	"github.com/atlanticdynamic/modectl/internal/operator"
	"github.com/atlanticdynamic/modectl/internal/recovery"
	"github.com/atlanticdynamic/modectl/internal/robot/servo"
	"github.com/atlanticdynamic/modectl/internal/stream"
)

// Config is the whole configuration file.
type Config struct {
	Logging    Logging     `toml:"logging"`
	Control    Control     `toml:"control"`
	Robot      Robot       `toml:"robot"`
	Locomotion *Locomotion `toml:"locomotion"`
	Hands      []Hand      `toml:"hands"`
	Operator   Operator    `toml:"operator"`
	Recovery   Recovery    `toml:"recovery"`
}

type Logging struct {
	Format string `toml:"format" env:"LOG_FORMAT"`
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Output string `toml:"output" env:"LOG_OUTPUT" expand:"env"`
}

// Control sets up the control loop.
type Control struct {
	Period       Duration `toml:"period" env:"CONTROL_PERIOD"`
	HistoryLimit int      `toml:"history_limit" env:"HISTORY_LIMIT"`
	// JointLag is the time constant simulated joints follow their desired
	// positions with. It is ignored when servos are attached.
	JointLag Duration `toml:"joint_lag" env:"JOINT_LAG"`
}

type Robot struct {
	Joints []Joint `toml:"joints"`
	Frames []Frame `toml:"frames"`
	Servo  *Servo  `toml:"servo"`
}

type Joint struct {
	Name    string  `toml:"name"`
	Initial float64 `toml:"initial"`
	Lower   float64 `toml:"lower"`
	Upper   float64 `toml:"upper"`
}

// Frame is a fixed frame. Parent defaults to world; translation is x y z
// and rotation a w x y z quaternion.
type Frame struct {
	Name        string    `toml:"name"`
	Parent      string    `toml:"parent"`
	Translation []float64 `toml:"translation"`
	Rotation    []float64 `toml:"rotation"`
}

// Servo attaches a Feetech STS bus to the joints.
type Servo struct {
	Port     string         `toml:"port" expand:"env"`
	Baud     int            `toml:"baud"`
	Period   Duration       `toml:"period"`
	Channels []ServoChannel `toml:"channels"`
}

type ServoChannel struct {
	Joint  string  `toml:"joint"`
	ID     int     `toml:"id"`
	RawMin int     `toml:"raw_min"`
	RawMax int     `toml:"raw_max"`
	Lower  float64 `toml:"lower"`
	Upper  float64 `toml:"upper"`
}

// Calibration converts the channels.
func (s *Servo) Calibration() servo.Calibration {
	out := make(servo.Calibration, 0, len(s.Channels))
	for _, ch := range s.Channels {
		out = append(out, servo.Channel(ch))
	}
	return out
}

// Locomotion configures the quadruped. Zero values take the locomotion
// defaults.
type Locomotion struct {
	Name              string               `toml:"name"`
	BypassDoNothing   *bool                `toml:"bypass_do_nothing"`
	Mass              float64              `toml:"mass"`
	Gravity           float64              `toml:"gravity"`
	NominalPosture    map[string]float64   `toml:"nominal_posture"`
	StandPrepDuration float64              `toml:"stand_prep_duration"`
	FoldPosture       map[string]float64   `toml:"fold_posture"`
	FallDuration      float64              `toml:"fall_duration"`
	MinimumSupport    int                  `toml:"minimum_support"`
	MomentumTolerance float64              `toml:"momentum_tolerance"`
	StepPlanCapacity  int                  `toml:"step_plan_capacity"`
	Soles             map[string][]float64 `toml:"soles"`
	XGait             stream.XGaitSettings `toml:"xgait"`
	Gains             LocomotionGains      `toml:"gains"`
}

type LocomotionGains struct {
	JointStiffness float64 `toml:"joint_stiffness"`
	JointDamping   float64 `toml:"joint_damping"`
	Foot           float64 `toml:"foot"`
}

// Hand configures one hand module. Chest defaults to Base.
type Hand struct {
	Name        string   `toml:"name"`
	Joints      []string `toml:"joints"`
	Base        string   `toml:"base"`
	Chest       string   `toml:"chest"`
	Frame       string   `toml:"frame"`
	InitialMode string   `toml:"initial_mode"`
	Stiffness   float64  `toml:"stiffness"`
	Damping     float64  `toml:"damping"`
}

type Operator struct {
	Enabled      bool     `toml:"enabled" env:"OPERATOR_ENABLED"`
	Address      string   `toml:"address" env:"OPERATOR_ADDRESS" expand:"env"`
	Path         string   `toml:"path"`
	DrainTimeout Duration `toml:"drain_timeout"`
}

// Recovery configures the fault recovery script. Script is inline code;
// ScriptFile is read from disk. With neither the built-in script is used.
type Recovery struct {
	Enabled    bool           `toml:"enabled" env:"RECOVERY_ENABLED"`
	Script     string         `toml:"script"`
	ScriptFile string         `toml:"script_file" env:"RECOVERY_SCRIPT_FILE" expand:"env"`
	Timeout    Duration       `toml:"timeout"`
	Data       map[string]any `toml:"data"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Logging: Logging{Format: "text", Level: "info", Output: "stderr"},
		Control: Control{
			Period:       Duration(controlloop.DefaultPeriod),
			HistoryLimit: controlloop.DefaultHistoryLimit,
			JointLag:     Duration(50 * time.Millisecond),
		},
		Operator: Operator{
			Address: operator.DefaultAddress,
			Path:    operator.DefaultPath,
		},
		Recovery: Recovery{Timeout: Duration(recovery.DefaultTimeout)},
	}
}
