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

package control_test

import (
	"testing"

	"github.com/puyodead1/tsw-controller-bridge/calibration"
	"github.com/puyodead1/tsw-controller-bridge/control"
	"github.com/puyodead1/tsw-controller-bridge/device"
	"github.com/puyodead1/tsw-controller-bridge/test"
)

func TestResetInvariant(t *testing.T) {
	tr := control.NewTracker()
	sub := tr.Subscribe()

	tr.Update("0x01:0x02", "throttle", device.Axis, 1000, false, nil)
	<-sub

	tr.Update("0x01:0x02", "throttle", device.Axis, 500, true, nil)
	ev := <-sub

	test.ExpectEquality(t, ev.State.Value, ev.State.PreviousValue)
	test.ExpectEquality(t, ev.State.Value, ev.State.InitialValue)
	test.ExpectEquality(t, ev.State.Direction.Sign, 0)
}

func TestHysteresis(t *testing.T) {
	tr := control.NewTracker()
	sub := tr.Subscribe()

	calib := &calibration.Data{Min: -32768, Max: 32767, Idle: 0}

	tr.Update("usb", "stick", device.Axis, 0, true, calib)
	<-sub

	// a small movement within the hysteresis band does not flip direction
	tr.Update("usb", "stick", device.Axis, 300, false, calib)
	ev := <-sub
	test.ExpectEquality(t, ev.State.Direction.Sign, 0)

	// a movement beyond the 0.05 threshold does
	tr.Update("usb", "stick", device.Axis, 20000, false, calib)
	ev = <-sub
	test.ExpectEquality(t, ev.State.Direction.Sign, 1)
}

func TestHasChanged(t *testing.T) {
	tr := control.NewTracker()
	sub := tr.Subscribe()

	tr.Update("usb", "btn", device.Button, 0, true, nil)
	ev := <-sub
	test.ExpectFailure(t, control.HasChanged(ev))

	tr.Update("usb", "btn", device.Button, 1, false, nil)
	ev = <-sub
	test.ExpectSuccess(t, control.HasChanged(ev))
}

func TestJitterSuppressionUncalibratedAxis(t *testing.T) {
	tr := control.NewTracker()
	sub := tr.Subscribe()

	tr.Update("usb", "raw-axis", device.Axis, 1000, true, nil)
	<-sub

	// a raw-as-float delta smaller than the margin of error must not
	// register as a value change
	tr.Update("usb", "raw-axis", device.Axis, 1000, false, nil)
	ev := <-sub
	test.ExpectEquality(t, ev.State.Value, ev.State.PreviousValue)
}

func TestSubscribeMissesPriorEvents(t *testing.T) {
	tr := control.NewTracker()

	tr.Update("usb", "x", device.Button, 1, true, nil)

	sub := tr.Subscribe()
	select {
	case <-sub:
		t.Errorf("subscriber should not see events published before it subscribed")
	default:
	}
}
