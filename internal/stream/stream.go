// Package stream multiplexes the step producers that feed a locomotion
// state.
package stream

import "github.com/atlanticdynamic/modectl/internal/timing"

// Stream produces upcoming footstep targets for the state consuming it.
type Stream interface {
	// OnEntry prepares the stream when a consuming state becomes active.
	OnEntry(now float64)
	// Process advances the stream to now.
	Process(now float64)
	// OnExit runs when the consuming state is left.
	OnExit()
	// Halt stops the stream from issuing new targets.
	Halt()
	// Steps returns the steps that are planned or in progress. The slice is
	// owned by the stream and valid until the next call.
	Steps() []timing.TimedStep
}

// NopStream never produces a step.
type NopStream struct{}

var _ Stream = NopStream{}

func (NopStream) OnEntry(float64)           {}
func (NopStream) Process(float64)           {}
func (NopStream) OnExit()                   {}
func (NopStream) Halt()                     {}
func (NopStream) Steps() []timing.TimedStep { return nil }
