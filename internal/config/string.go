package config

import (
	"fmt"
	"strings"

	"github.com/atlanticdynamic/modectl/internal/fancy"
)

// String renders the configuration as a tree.
func (c *Config) String() string {
	t := fancy.RootTree("modectl config")

	logging := fancy.BranchNode("Logging", "")
	logging.Child(fmt.Sprintf("Format: %s", c.Logging.Format))
	logging.Child(fmt.Sprintf("Level: %s", c.Logging.Level))
	logging.Child(fmt.Sprintf("Output: %s", c.Logging.Output))
	t.Child(logging)

	control := fancy.BranchNode("Control", "")
	control.Child(fmt.Sprintf("Period: %s", c.Control.Period))
	control.Child(fmt.Sprintf("History: %d records", c.Control.HistoryLimit))
	t.Child(control)

	robot := fancy.BranchNode("Robot", fmt.Sprintf("(%d joints, %d frames)", len(c.Robot.Joints), len(c.Robot.Frames)))
	for _, j := range c.Robot.Joints {
		robot.Child(fmt.Sprintf("%s [%g, %g]", fancy.StateText(j.Name), j.Lower, j.Upper))
	}
	for _, f := range c.Robot.Frames {
		parent := f.Parent
		if parent == "" {
			parent = "world"
		}
		robot.Child(fmt.Sprintf("frame %s in %s", fancy.StateText(f.Name), parent))
	}
	if s := c.Robot.Servo; s != nil {
		robot.Child(fmt.Sprintf("servos on %s (%d channels)", fancy.PathText(s.Port), len(s.Channels)))
	} else {
		robot.Child(fancy.SummaryText("simulated joints"))
	}
	t.Child(robot)

	controllers := fancy.BranchNode("Controllers", fmt.Sprintf("(%d)", c.controllerCount()))
	if l := c.Locomotion; l != nil {
		s := l.Settings()
		node := fancy.BranchNode(fancy.ControllerText("locomotion."+l.Name), "")
		node.Child(fmt.Sprintf("Bypass DO_NOTHING: %t", s.BypassDoNothing))
		node.Child(fmt.Sprintf("Mass: %g kg", s.Mass))
		node.Child(fmt.Sprintf("X-gait: step %gs, phase %g°", s.XGait.StepDuration, s.XGait.EndPhaseShift))
		controllers.Child(node)
	}
	for _, h := range c.Hands {
		node := fancy.BranchNode(fancy.ControllerText("hand."+h.Name), "")
		node.Child(fmt.Sprintf("Joints: %s", strings.Join(h.Joints, ", ")))
		node.Child(fmt.Sprintf("Frame: %s on %s", h.Frame, h.Base))
		controllers.Child(node)
	}
	t.Child(controllers)

	surfaces := fancy.BranchNode("Surfaces", "")
	if c.Operator.Enabled {
		surfaces.Child(fmt.Sprintf("Operator: %s%s", c.Operator.Address, c.Operator.Path))
	} else {
		surfaces.Child(fancy.SummaryText("Operator: disabled"))
	}
	if c.Recovery.Enabled {
		source := "built-in script"
		switch {
		case c.Recovery.ScriptFile != "":
			source = c.Recovery.ScriptFile
		case c.Recovery.Script != "":
			source = "inline script"
		}
		surfaces.Child(fmt.Sprintf("Recovery: %s, timeout %s", source, c.Recovery.Timeout))
	} else {
		surfaces.Child(fancy.SummaryText("Recovery: disabled"))
	}
	t.Child(surfaces)

	return t.String()
}

func (c *Config) controllerCount() int {
	n := len(c.Hands)
	if c.Locomotion != nil {
		n++
	}
	return n
}
