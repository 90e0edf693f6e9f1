package carcontrol

// State is the whole of the controller's application state.
//
// Connected and Selected are always set and cleared together: Selected is
// non-nil exactly when Connected is true.
type State struct {
	Connected bool
	Selected  *Device
	Devices   []Device
	Direction Direction
	Logs      []string // newest first
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	out.Devices = append([]Device(nil), s.Devices...)
	out.Logs = append([]string(nil), s.Logs...)
	return out
}

// LastLog returns the newest log line, or "" if there is none.
func (s State) LastLog() string {
	if len(s.Logs) == 0 {
		return ""
	}
	return s.Logs[0]
}

// Event is a state transition produced by a controller effect.
type Event interface {
	event()
}

// LogAppended adds a line to the top of the log.
type LogAppended struct{ Line string }

// DevicesListed replaces the device list.
type DevicesListed struct{ Devices []Device }

// Connected marks Device as the active connection.
type Connected struct{ Device Device }

// Disconnected clears the active connection.
type Disconnected struct{}

// DirectionChanged records the last pressed direction.
type DirectionChanged struct{ Direction Direction }

// CommandSent reports a direction written to the car. It does not change
// the state; the matching log line does.
type CommandSent struct{ Direction Direction }

// DataReceived reports an inbound chunk. Like CommandSent it is carried
// for listeners only.
type DataReceived struct{ Data Data }

func (LogAppended) event()      {}
func (DevicesListed) event()    {}
func (Connected) event()        {}
func (Disconnected) event()     {}
func (DirectionChanged) event() {}
func (CommandSent) event()      {}
func (DataReceived) event()     {}

// Reduce applies e to s and returns the new state. s is not modified.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case LogAppended:
		logs := make([]string, 0, len(s.Logs)+1)
		logs = append(logs, e.Line)
		s.Logs = append(logs, s.Logs...)

	case DevicesListed:
		s.Devices = append([]Device(nil), e.Devices...)

	case Connected:
		dev := e.Device
		s.Connected = true
		s.Selected = &dev

	case Disconnected:
		s.Connected = false
		s.Selected = nil

	case DirectionChanged:
		s.Direction = e.Direction
	}
	return s
}
