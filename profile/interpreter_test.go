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

package profile_test

import (
	"sync"
	"testing"

	"github.com/puyodead1/tsw-controller-bridge/control"
	"github.com/puyodead1/tsw-controller-bridge/directcontrol"
	"github.com/puyodead1/tsw-controller-bridge/profile"
	"github.com/puyodead1/tsw-controller-bridge/sequencer"
	"github.com/puyodead1/tsw-controller-bridge/test"
)

type fakeSource struct {
	profile profile.Profile
}

func (f fakeSource) FindProfile(name string, usbID *string) (profile.Profile, bool) {
	if name != f.profile.Name {
		return profile.Profile{}, false
	}
	return f.profile, true
}

type fakeSequencer struct {
	mu  sync.Mutex
	log []string
}

func (f *fakeSequencer) Enqueue(a sequencer.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tag := "press"
	if a.Release {
		tag = "release"
	}
	f.log = append(f.log, tag+":"+a.Keys)
}

func (f *fakeSequencer) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.log))
	copy(out, f.log)
	return out
}

type fakeDirect struct {
	mu  sync.Mutex
	log []directcontrol.Command
}

func (f *fakeDirect) Enqueue(c directcontrol.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, c)
}

// event builds a ChangeEvent for control "x" with a direction sign already
// established, mirroring what the Control State Tracker would have
// produced for a value moving away from previous.
func event(usbID, name string, previous, initial, value float32, sign int) control.ChangeEvent {
	return control.ChangeEvent{
		UsbID:       usbID,
		ControlName: name,
		State: control.State{
			Value:         value,
			PreviousValue: previous,
			InitialValue:  initial,
			Direction:     control.Direction{Sign: sign, LastChangeValue: value},
		},
	}
}

// (a) Momentary press/release: spec.md scenario (a).
func TestMomentaryPressRelease(t *testing.T) {
	momentary := profile.MomentaryAssignment{Threshold: 0.5, ActivateAction: profile.Action{Keys: "a"}}
	prof := profile.Profile{
		Name: "p",
		Controls: []profile.Control{
			{Name: "x", Assignment: &profile.Assignment{Kind: profile.KindMomentary, Momentary: &momentary}},
		},
	}

	seq := &fakeSequencer{}
	in := profile.NewInterpreter(fakeSource{prof}, seq, &fakeDirect{}, nil)
	test.ExpectSuccess(t, in.SetProfile("p"))

	in.Run(event("dev", "x", 0.0, 0.0, 0.6, 1))
	in.Run(event("dev", "x", 0.6, 0.0, 0.7, 1))
	in.Run(event("dev", "x", 0.7, 0.0, 0.4, -1))

	test.Equate(t, seq.snapshot(), []string{"press:a", "release:a"})
}

// (b) Linear sweep: spec.md scenario (b).
func TestLinearSweep(t *testing.T) {
	step := float32(0.25)
	end := float32(1.0)
	linear := profile.LinearAssignment{
		Thresholds: []profile.LinearThreshold{
			{Value: 0.25, ValueEnd: &end, ValueStep: &step, ActivateAction: profile.Action{Keys: "u"}},
		},
	}
	prof := profile.Profile{
		Name: "p",
		Controls: []profile.Control{
			{Name: "x", Assignment: &profile.Assignment{Kind: profile.KindLinear, Linear: &linear}},
		},
	}

	seq := &fakeSequencer{}
	in := profile.NewInterpreter(fakeSource{prof}, seq, &fakeDirect{}, nil)
	test.ExpectSuccess(t, in.SetProfile("p"))

	in.Run(event("dev", "x", 0.0, 0.0, 0.3, 1))
	in.Run(event("dev", "x", 0.3, 0.0, 0.6, 1))
	in.Run(event("dev", "x", 0.6, 0.0, 0.9, 1))
	in.Run(event("dev", "x", 0.9, 0.0, 0.2, -1))

	test.Equate(t, seq.snapshot(), []string{
		"press:u", "press:u", "press:u",
		"release:u", "release:u", "release:u",
	})
}

// (c) Toggle: spec.md scenario (c).
func TestToggle(t *testing.T) {
	toggle := profile.ToggleAssignment{
		Threshold:        0.5,
		ActivateAction:   profile.Action{Keys: "t"},
		DeactivateAction: profile.Action{Keys: "y"},
	}
	prof := profile.Profile{
		Name: "p",
		Controls: []profile.Control{
			{Name: "x", Assignment: &profile.Assignment{Kind: profile.KindToggle, Toggle: &toggle}},
		},
	}

	seq := &fakeSequencer{}
	in := profile.NewInterpreter(fakeSource{prof}, seq, &fakeDirect{}, nil)
	test.ExpectSuccess(t, in.SetProfile("p"))

	in.Run(event("dev", "x", 0.0, 0.0, 0.7, 1))
	in.Run(event("dev", "x", 0.7, 0.0, 0.2, -1))
	in.Run(event("dev", "x", 0.2, 0.0, 0.7, 1))
	in.Run(event("dev", "x", 0.7, 0.0, 0.2, -1))

	test.Equate(t, seq.snapshot(), []string{
		"press:t", "release:t", "press:y", "release:y",
	})
}

// (e) DirectControl: spec.md scenario (e).
func TestDirectControlFiresEveryQualifyingEvent(t *testing.T) {
	direct := profile.DirectControlAssignment{
		Controls:   "throttle",
		InputValue: profile.InputValue{Min: 0, Max: 10, Steps: []*float32{f32(0), f32(2), f32(5), f32(10)}},
	}
	prof := profile.Profile{
		Name: "p",
		Controls: []profile.Control{
			{Name: "x", Assignment: &profile.Assignment{Kind: profile.KindDirectControl, DirectControl: &direct}},
		},
	}

	dc := &fakeDirect{}
	in := profile.NewInterpreter(fakeSource{prof}, &fakeSequencer{}, dc, nil)
	test.ExpectSuccess(t, in.SetProfile("p"))

	in.Run(event("dev", "x", 0.0, 0.0, 0.3, 1))

	test.ExpectEquality(t, len(dc.log), 1)
	test.ExpectEquality(t, dc.log[0].InputValue, float32(2))
	test.ExpectEquality(t, dc.log[0].Controls, "throttle")
	test.ExpectEquality(t, dc.log[0].Relative, false)
}

func TestNoActiveProfileIsIgnored(t *testing.T) {
	seq := &fakeSequencer{}
	in := profile.NewInterpreter(fakeSource{profile.Profile{Name: "p"}}, seq, &fakeDirect{}, nil)

	in.Run(event("dev", "x", 0.0, 0.0, 0.6, 1))

	test.ExpectEquality(t, len(seq.snapshot()), 0)
}
