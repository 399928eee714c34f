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

// Package control tracks, per live control, its current/previous/initial
// value (calibrated and raw), and its direction of travel with hysteresis.
// It owns device state exclusively; every other component observes it
// through a broadcast of ChangeEvents.
package control

import (
	"sync"

	"github.com/puyodead1/tsw-controller-bridge/broadcast"
	"github.com/puyodead1/tsw-controller-bridge/calibration"
	"github.com/puyodead1/tsw-controller-bridge/device"
)

// marginOfError suppresses jitter on uncalibrated axes: a new raw-derived
// value within this distance of the current one is not considered a
// change.
const marginOfError = 0.0005

// directionChangeThreshold is the hysteresis band a control's value must
// cross before its direction is considered to have flipped.
const directionChangeThreshold = 0.05

// initialEventGuardMillis is the platform-timestamp floor below which
// events are dropped as synthetic initial motion.
const initialEventGuardMillis = 500

// Direction records the sign of a control's last detected movement and the
// value at which that movement was last detected.
type Direction struct {
	Sign            int
	LastChangeValue float32
}

// State is a control's full tracked state: calibrated and raw value,
// previous and initial snapshots, and direction.
type State struct {
	Value, PreviousValue, InitialValue         float32
	RawValue, RawPreviousValue, RawInitialValue int16
	Direction                                   Direction
}

// ChangeEvent is published whenever a control's state is updated.
type ChangeEvent struct {
	UsbID       string
	ControlName string
	State       State
}

// HasChanged reports whether a ChangeEvent represents an actual movement:
// the calibrated value differs from its previous snapshot and a direction
// has been established.
func HasChanged(ev ChangeEvent) bool {
	return ev.State.Value != ev.State.PreviousValue && ev.State.Direction.Sign != 0
}

type controlKey struct {
	usbID       string
	controlName string
}

// Tracker owns the live state of every attached device's controls.
type Tracker struct {
	mu   sync.Mutex
	states map[controlKey]*State
	bus    *broadcast.Bus[ChangeEvent]
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[controlKey]*State),
		bus:    broadcast.New[ChangeEvent](),
	}
}

// Subscribe returns a channel of future ChangeEvents. Events published
// before Subscribe is called are never delivered to this subscriber.
func (t *Tracker) Subscribe() <-chan ChangeEvent {
	return t.bus.Subscribe()
}

// Reset removes a device's tracked controls entirely, called on
// device-removed.
func (t *Tracker) Reset(usbID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.states {
		if k.usbID == usbID {
			delete(t.states, k)
		}
	}
}

// Update applies a raw reading to one control's state and publishes the
// resulting ChangeEvent. calib is nil for axes with no calibration record,
// and is ignored entirely for Button and Hat controls.
func (t *Tracker) Update(usbID, controlName string, kind device.Kind, raw int16, isReset bool, calib *calibration.Data) {
	t.mu.Lock()
	k := controlKey{usbID, controlName}
	st, ok := t.states[k]
	if !ok {
		st = &State{}
		t.states[k] = st
	}

	st.RawPreviousValue = st.RawValue
	if isReset {
		st.RawPreviousValue = raw
	}
	if isReset {
		st.RawInitialValue = raw
	}
	st.RawValue = raw

	switch kind {
	case device.Axis:
		t.updateAxis(st, raw, isReset, calib)
	default:
		t.updateDirect(st, float32(raw), isReset)
	}

	if isReset {
		st.Direction = Direction{Sign: 0, LastChangeValue: st.Value}
	} else {
		delta := st.Value - st.Direction.LastChangeValue
		switch {
		case delta > directionChangeThreshold:
			st.Direction = Direction{Sign: 1, LastChangeValue: st.Value}
		case delta < -directionChangeThreshold:
			st.Direction = Direction{Sign: -1, LastChangeValue: st.Value}
		}
	}

	snapshot := *st
	t.mu.Unlock()

	t.bus.Publish(ChangeEvent{UsbID: usbID, ControlName: controlName, State: snapshot})
}

func (t *Tracker) updateAxis(st *State, raw int16, isReset bool, calib *calibration.Data) {
	if calib == nil {
		t.updateDirectWithJitterSuppression(st, float32(raw), isReset)
		return
	}

	normalized, ok := calib.Normalize(raw)
	if !ok {
		// deadzone hold: value and initial are left untouched and previous
		// catches up to value. the ChangeEvent still goes out; HasChanged
		// will be false because value == previous.
		st.PreviousValue = st.Value
		return
	}

	rounded := roundToMargin(normalized)
	if isReset {
		st.InitialValue = rounded
		st.PreviousValue = rounded
	} else {
		st.PreviousValue = st.Value
	}
	st.Value = rounded
}

func (t *Tracker) updateDirectWithJitterSuppression(st *State, value float32, isReset bool) {
	if isReset {
		st.InitialValue = value
		st.PreviousValue = value
		st.Value = value
		return
	}

	st.PreviousValue = st.Value
	if !withinMarginOfError(st.Value, value) {
		st.Value = value
	}
}

func (t *Tracker) updateDirect(st *State, value float32, isReset bool) {
	if isReset {
		st.InitialValue = value
		st.PreviousValue = value
		st.Value = value
		return
	}
	st.PreviousValue = st.Value
	st.Value = value
}

func withinMarginOfError(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < marginOfError
}

func roundToMargin(v float32) float32 {
	const scale = 10000
	return float32(int(v*scale+sign(v)*0.5)) / scale
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// InitialEventGuard reports whether a raw event with the given platform
// timestamp should be dropped as synthetic initial motion.
func InitialEventGuard(timestampMillis uint32) bool {
	return timestampMillis < initialEventGuardMillis
}
