// This file is part of tsw-controller-bridge.
//
// tsw-controller-bridge is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// tsw-controller-bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with tsw-controller-bridge.  If not, see <https://www.gnu.org/licenses/>.

// Package device defines the raw event stream the bridge consumes from a
// gamepad/joystick enumeration library, and the kinds of control that stream
// can refer to. The enumeration library and its OS event loop are named
// collaborators, not implemented here; this package only defines the shape
// of the stream and an adapter over go-sdl2 that satisfies it.
package device

// Kind distinguishes the three hardware-level control types a profile or
// calibration record can refer to.
type Kind int

const (
	Axis Kind = iota
	Button
	Hat
)

func (k Kind) String() string {
	switch k {
	case Axis:
		return "axis"
	case Button:
		return "button"
	case Hat:
		return "hat"
	default:
		return "unknown"
	}
}

// EventKind discriminates the variants of Event.
type EventKind int

const (
	DeviceAdded EventKind = iota
	DeviceRemoved
	AxisMotion
	ButtonDown
	ButtonUp
	HatMotion
)

// Event is one raw occurrence from the device stream. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// Index identifies the device the event originated from, stable for
	// the lifetime of that device's attachment.
	Index int32

	AxisIndex   uint8
	ButtonIndex uint8
	HatIndex    uint8

	// Value carries the raw axis reading for AxisMotion.
	Value int16

	// HatState carries the bitmask state for HatMotion.
	HatState uint8

	// Timestamp is the platform timestamp in milliseconds since the
	// underlying subsystem's initialization, used to suppress synthetic
	// initial motion (see control.InitialEventGuard).
	Timestamp uint32
}

// Source is the named collaborator interface for a device event stream: an
// abstract enumeration library plus per-control polling used during a
// control's reset.
type Source interface {
	// Events returns the channel events are delivered on. Closed when the
	// source shuts down.
	Events() <-chan Event

	// VendorID and ProductID together form a device's usb_id.
	VendorID(index int32) uint16
	ProductID(index int32) uint16
	Name(index int32) string

	// PollAxis, PollButton and PollHat read a control's current value
	// directly, bypassing the event stream. Used by the runtime
	// orchestrator to feed a reset update to control.Tracker when a device
	// is attached.
	PollAxis(index int32, axisIdx uint8) (int16, error)
	PollButton(index int32, buttonIdx uint8) (bool, error)
	PollHat(index int32, hatIdx uint8) (uint8, error)
}
