package robot

import "sync/atomic"

// FootSwitch is the contact sensor of one foot. The controller decides
// whether the sensor reading is trusted and, when it is not, which contact
// state downstream estimators should assume.
type FootSwitch struct {
	sensed  atomic.Bool
	trusted atomic.Bool
	contact atomic.Bool
}

// Sense records the raw sensor reading.
func (f *FootSwitch) Sense(inContact bool) {
	f.sensed.Store(inContact)
}

// Trust sets whether the raw reading is used.
func (f *FootSwitch) Trust(trusted bool) {
	f.trusted.Store(trusted)
}

// SetContactState sets the contact state assumed by the controller.
func (f *FootSwitch) SetContactState(inContact bool) {
	f.contact.Store(inContact)
}

func (f *FootSwitch) Trusted() bool {
	return f.trusted.Load()
}

// InContact returns the raw reading when trusted and the controller's
// contact state otherwise.
func (f *FootSwitch) InContact() bool {
	if f.trusted.Load() {
		return f.sensed.Load()
	}
	return f.contact.Load()
}

// ControllerContact returns the contact state set by the controller.
func (f *FootSwitch) ControllerContact() bool {
	return f.contact.Load()
}
