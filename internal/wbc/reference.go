package wbc

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// ReferenceCore aggregates commands without solving anything. The achieved
// linear momentum rate is the sum of the contact forces plus gravity, and
// joint torques are stiffness and damping terms on the setpoint. It gives the
// states a consistent output to react to when no real solver is attached.
type ReferenceCore struct {
	mass    float64
	gravity float64
	joints  map[string]float64

	pending *CommandList
	output  Output
}

var _ Core = (*ReferenceCore)(nil)

// NewReferenceCore returns a core for a robot of the given mass. positions
// is read during Compute to evaluate joint feedback; it may be nil.
func NewReferenceCore(mass, gravity float64, positions map[string]float64) *ReferenceCore {
	return &ReferenceCore{
		mass:    mass,
		gravity: gravity,
		joints:  positions,
		pending: NewCommandList(64),
		output:  Output{JointTorques: make(map[string]float64)},
	}
}

func (c *ReferenceCore) Submit(cmd Command) {
	c.pending.Add(cmd)
}

func (c *ReferenceCore) Compute() error {
	var out Output
	out.JointTorques = c.output.JointTorques
	clear(out.JointTorques)
	weight := r3.Vec{Z: -c.mass * c.gravity}
	out.LinearMomentumRate = weight

	for _, cmd := range c.pending.Commands() {
		switch v := cmd.(type) {
		case ContactForce:
			if v.Quadrant.Valid() {
				out.ContactForces[v.Quadrant] = r3.Add(out.ContactForces[v.Quadrant], v.Force)
			}
			out.LinearMomentumRate = r3.Add(out.LinearMomentumRate, v.Force)
		case JointFeedback:
			q := c.joints[v.Joint]
			out.JointTorques[v.Joint] = v.Stiffness*(v.Position-q) + v.Damping*v.Velocity + v.Feedforward
		}
	}

	c.pending.Reset()
	c.output = out
	return nil
}

func (c *ReferenceCore) Output() Output {
	return c.output
}

// Weight returns the gravity force on the robot.
func (c *ReferenceCore) Weight() float64 {
	return c.mass * c.gravity
}
