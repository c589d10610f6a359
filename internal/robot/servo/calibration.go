package servo

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoChannels     = errors.New("no servo channels configured")
	ErrDuplicateID    = errors.New("duplicate servo id")
	ErrEmptyRawRange  = errors.New("raw range is empty")
	ErrDuplicateJoint = errors.New("joint mapped to more than one servo")
)

// Channel maps one servo to one joint. Raw encoder counts in [RawMin, RawMax]
// map linearly onto [Lower, Upper] radians.
type Channel struct {
	Joint  string
	ID     int
	RawMin int
	RawMax int
	Lower  float64
	Upper  float64
}

// Validate checks that the raw range can be inverted.
func (c Channel) Validate() error {
	if c.RawMax == c.RawMin {
		return fmt.Errorf("%w: servo %d (%s)", ErrEmptyRawRange, c.ID, c.Joint)
	}
	return nil
}

// ToRadians converts a raw servo position to a joint angle.
func (c Channel) ToRadians(raw int) float64 {
	frac := float64(raw-c.RawMin) / float64(c.RawMax-c.RawMin)
	return c.Lower + frac*(c.Upper-c.Lower)
}

// ToRaw converts a joint angle to the nearest raw servo position, clamped to
// the calibrated range.
func (c Channel) ToRaw(q float64) int {
	span := c.Upper - c.Lower
	if span == 0 {
		return c.RawMin
	}
	frac := math.Min(math.Max((q-c.Lower)/span, 0), 1)
	return c.RawMin + int(math.Round(frac*float64(c.RawMax-c.RawMin)))
}

// Calibration is the full set of channels on one bus.
type Calibration []Channel

// Validate checks every channel and that ids and joints are unique.
func (c Calibration) Validate() error {
	if len(c) == 0 {
		return ErrNoChannels
	}
	var errs []error
	ids := make(map[int]struct{}, len(c))
	joints := make(map[string]struct{}, len(c))
	for _, ch := range c {
		if err := ch.Validate(); err != nil {
			errs = append(errs, err)
		}
		if _, dup := ids[ch.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %d", ErrDuplicateID, ch.ID))
		}
		ids[ch.ID] = struct{}{}
		if _, dup := joints[ch.Joint]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateJoint, ch.Joint))
		}
		joints[ch.Joint] = struct{}{}
	}
	return errors.Join(errs...)
}

// IDs returns the servo ids in channel order.
func (c Calibration) IDs() []int {
	ids := make([]int, len(c))
	for i, ch := range c {
		ids[i] = ch.ID
	}
	return ids
}

// ByID returns the channel for a servo id.
func (c Calibration) ByID(id int) (Channel, bool) {
	for _, ch := range c {
		if ch.ID == id {
			return ch, true
		}
	}
	return Channel{}, false
}

// ByJoint returns the channel driving a joint.
func (c Calibration) ByJoint(joint string) (Channel, bool) {
	for _, ch := range c {
		if ch.Joint == joint {
			return ch, true
		}
	}
	return Channel{}, false
}
