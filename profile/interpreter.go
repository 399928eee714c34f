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

package profile

import (
	"sync"
	"time"

	"github.com/puyodead1/tsw-controller-bridge/control"
	"github.com/puyodead1/tsw-controller-bridge/directcontrol"
	"github.com/puyodead1/tsw-controller-bridge/errors"
	"github.com/puyodead1/tsw-controller-bridge/logger"
	"github.com/puyodead1/tsw-controller-bridge/sequencer"
)

// ProfileSource resolves the active profile by name, optionally narrowed to
// one device so a control's assignments can be found.
type ProfileSource interface {
	FindProfile(name string, usbID *string) (Profile, bool)
}

// SyncTarget receives the goal value a SyncControl assignment establishes
// for the Sync Controller, along with the key actions bound to driving it
// and the name of the profile that fired it - the Sync Controller clears
// its state whenever that name changes between calls. Declared here rather
// than imported from the sync package to avoid a dependency cycle between
// the two.
type SyncTarget interface {
	SetTarget(profileName, identifier string, value float32, actionIncrease, actionDecrease Action)
}

// keySink is the narrow interface the interpreter needs of the sequencer:
// *sequencer.Sequencer satisfies it directly.
type keySink interface {
	Enqueue(sequencer.Action)
}

// directSink is the narrow interface the interpreter needs of the
// direct-control broadcaster: *directcontrol.Broadcaster satisfies it
// directly.
type directSink interface {
	Enqueue(directcontrol.Command)
}

// dispatchedAction is whichever of the two action sinks an assignment
// resolves to for one call.
type dispatchedAction struct {
	sequencerAction  *sequencer.Action
	directControlCmd *directcontrol.Command
}

// compareValue is the value two dispatched actions are compared by to
// decide whether a Toggle assignment's next call differs from its last.
func (d dispatchedAction) compareValue() string {
	if d.sequencerAction != nil {
		return d.sequencerAction.Keys
	}
	if d.directControlCmd != nil {
		return d.directControlCmd.String()
	}
	return ""
}

func sequencerDispatch(a Action, release bool) dispatchedAction {
	return dispatchedAction{sequencerAction: &sequencer.Action{
		Keys:      a.Keys,
		PressTime: durationPtr(a.PressTime),
		WaitTime:  durationPtr(a.WaitTime),
		Release:   release,
	}}
}

func directControlDispatch(a Action) dispatchedAction {
	return dispatchedAction{directControlCmd: &directcontrol.Command{
		Controls:   *a.Controls,
		InputValue: a.Value,
		Relative:   a.Relative,
		Hold:       a.Hold,
	}}
}

// actionDispatch resolves an Action into its dispatch sink, release marking
// a key action as release-only (direct-control actions ignore it - a
// direct-control assignment can't be "released").
func actionDispatch(a Action, release bool) dispatchedAction {
	if a.IsDirectControl() {
		return directControlDispatch(a)
	}
	return sequencerDispatch(a, release)
}

func durationPtr(seconds *float64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds * float64(time.Second))
	return &d
}

// call records one assignment slot's most recent dispatch, so the next
// event on the same control can tell what state it left things in.
type call struct {
	controlState control.State
	action       dispatchedAction
}

// Interpreter is the Profile Interpreter (C5): it matches control-state
// ChangeEvents against the active profile's assignments and dispatches the
// resulting key or direct-control actions.
type Interpreter struct {
	source    ProfileSource
	sequencer keySink
	direct    directSink
	sync      SyncTarget

	mu          sync.Mutex
	profileName *string
	mode        PreferredControlMode
	calls       map[string][]*call
}

// NewInterpreter creates an Interpreter with no active profile.
func NewInterpreter(source ProfileSource, seq keySink, direct directSink, sync SyncTarget) *Interpreter {
	return &Interpreter{
		source:    source,
		sequencer: seq,
		direct:    direct,
		sync:      sync,
		mode:      ModeDirectControl,
		calls:     make(map[string][]*call),
	}
}

// SetProfile activates a profile by name, clearing call history. A name
// equal to the currently active profile is a no-op that preserves history.
func (in *Interpreter) SetProfile(name string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.profileName != nil && *in.profileName == name {
		return nil
	}
	if _, ok := in.source.FindProfile(name, nil); !ok {
		return errors.Errorf(errors.ProfileNotFound, name)
	}
	in.profileName = &name
	in.calls = make(map[string][]*call)
	return nil
}

// ResetProfile deactivates whichever profile is active.
func (in *Interpreter) ResetProfile() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.profileName = nil
	in.calls = make(map[string][]*call)
}

// SetPreferredControlMode switches between direct-control and sync-control
// delivery for controls that offer both, clearing call history.
func (in *Interpreter) SetPreferredControlMode(mode PreferredControlMode) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.mode = mode
	in.calls = make(map[string][]*call)
}

// CurrentProfileName reports the name of the active profile, if any.
func (in *Interpreter) CurrentProfileName() (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.profileName == nil {
		return "", false
	}
	return *in.profileName, true
}

// callAssignment records and dispatches the outcome of evaluating one
// assignment slot. A nil action against a slot with no prior call is a
// no-op: a deactivation with nothing to deactivate. A nil action against a
// slot with a prior call repeats that prior call's action, so a history
// entry is always kept with a concrete action once anything has fired.
func (in *Interpreter) callAssignment(controlName string, slot int, state control.State, action *dispatchedAction) {
	entry := in.calls[controlName]
	for len(entry) <= slot {
		entry = append(entry, nil)
	}

	if action == nil && entry[slot] == nil {
		in.calls[controlName] = entry
		return
	}

	resolved := dispatchedAction{}
	switch {
	case action != nil:
		resolved = *action
	case entry[slot] != nil:
		resolved = entry[slot].action
	}

	entry[slot] = &call{controlState: state, action: resolved}
	in.calls[controlName] = entry

	switch {
	case resolved.sequencerAction != nil:
		in.sequencer.Enqueue(*resolved.sequencerAction)
	case resolved.directControlCmd != nil:
		in.direct.Enqueue(*resolved.directControlCmd)
	}
}

// Run evaluates one control-state ChangeEvent against the active profile's
// assignments for that control, dispatching whichever key or
// direct-control actions the event's crossing of thresholds calls for.
// Events with no established direction, or that arrive with no active
// profile, are ignored entirely.
func (in *Interpreter) Run(ev control.ChangeEvent) {
	if !control.HasChanged(ev) {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.profileName == nil {
		return
	}

	usbID := ev.UsbID
	profile, ok := in.source.FindProfile(*in.profileName, &usbID)
	if !ok {
		return
	}

	ctrl, ok := profile.FindControl(ev.ControlName)
	if !ok {
		return
	}

	assignments := ctrl.FilteredAssignments(in.mode)
	history := in.calls[ev.ControlName]

	for slot, assignment := range assignments {
		var last *call
		if slot < len(history) {
			last = history[slot]
		}

		switch assignment.Kind {
		case KindMomentary:
			in.runMomentary(ev.ControlName, slot, ev.State, *assignment.Momentary, last)
		case KindLinear:
			in.runLinear(ev.ControlName, slot, ev.State, *assignment.Linear, last)
		case KindToggle:
			in.runToggle(ev.ControlName, slot, ev.State, *assignment.Toggle, last)
		case KindDirectControl:
			in.runDirectControl(ev.ControlName, slot, ev.State, *assignment.DirectControl)
		case KindSyncControl:
			in.runSyncControl(*in.profileName, *assignment.SyncControl, ev.State)
		}

		history = in.calls[ev.ControlName]
	}
}

func (in *Interpreter) runMomentary(controlName string, slot int, state control.State, a MomentaryAssignment, last *call) {
	if state.Value >= a.Threshold {
		shouldCall := last == nil || last.controlState.Value < a.Threshold
		if !shouldCall {
			return
		}
		d := actionDispatch(a.ActivateAction, false)
		in.callAssignment(controlName, slot, state, &d)
		return
	}

	if last == nil || last.controlState.Value < a.Threshold {
		return
	}

	if a.DeactivateAction != nil {
		d := actionDispatch(*a.DeactivateAction, false)
		in.callAssignment(controlName, slot, state, &d)
		return
	}

	if a.ActivateAction.IsDirectControl() {
		// a direct-control activation can't be released: nothing to call.
		return
	}
	d := sequencerDispatch(a.ActivateAction, true)
	in.callAssignment(controlName, slot, state, &d)
}

func (in *Interpreter) runToggle(controlName string, slot int, state control.State, a ToggleAssignment, last *call) {
	if state.Value >= a.Threshold {
		if last != nil && last.controlState.Value >= a.Threshold {
			return
		}
		toCall := a.ActivateAction
		if last != nil && last.action.compareValue() == actionDispatch(a.ActivateAction, false).compareValue() {
			toCall = a.DeactivateAction
		}
		d := actionDispatch(toCall, false)
		in.callAssignment(controlName, slot, state, &d)
		return
	}

	if last == nil || last.controlState.Value < a.Threshold {
		return
	}

	if last.action.sequencerAction == nil {
		// last action was direct-control: nothing to release.
		return
	}
	released := *last.action.sequencerAction
	released.Release = true
	d := dispatchedAction{sequencerAction: &released}
	in.callAssignment(controlName, slot, state, &d)
}

func (in *Interpreter) runLinear(controlName string, slot int, state control.State, a LinearAssignment, last *call) {
	value := a.NeutralizedValue(state.Value)
	generated := a.GeneratedThresholds()

	var thresholds []LinearThreshold
	for _, t := range generated {
		if value < 0 {
			if t.Value < 0 {
				thresholds = append(thresholds, t)
			}
		} else if t.Value >= 0 {
			thresholds = append(thresholds, t)
		}
	}

	exceeding := 0
	for _, t := range thresholds {
		if t.IsExceedingThreshold(value) {
			exceeding++
		}
	}

	passed := 0
	if last != nil {
		lastValue := a.NeutralizedValue(last.controlState.Value)
		for _, t := range thresholds {
			if t.IsExceedingThreshold(lastValue) {
				passed++
			}
		}
	} else {
		for _, t := range thresholds {
			if state.InitialValue >= t.Value {
				passed++
			}
		}
	}

	switch {
	case exceeding > passed:
		for i := passed; i < exceeding; i++ {
			d := actionDispatch(thresholds[i].ActivateAction, false)
			in.callAssignment(controlName, slot, state, &d)
		}
	case exceeding < passed:
		for i := passed - 1; i >= exceeding; i-- {
			t := thresholds[i]
			if t.DeactivateAction != nil {
				d := actionDispatch(*t.DeactivateAction, false)
				in.callAssignment(controlName, slot, state, &d)
				continue
			}
			if t.ActivateAction.IsDirectControl() {
				continue
			}
			d := sequencerDispatch(t.ActivateAction, true)
			in.callAssignment(controlName, slot, state, &d)
		}
	}
}

func (in *Interpreter) runDirectControl(controlName string, slot int, state control.State, a DirectControlAssignment) {
	value := a.InputValue.CalculateNormalValue(state.Value)
	cmd := directcontrol.Command{Controls: a.Controls, InputValue: value, Relative: false, Hold: a.Hold}
	d := dispatchedAction{directControlCmd: &cmd}
	in.callAssignment(controlName, slot, state, &d)
}

func (in *Interpreter) runSyncControl(profileName string, a SyncControlAssignment, state control.State) {
	if in.sync == nil {
		logger.Log("profile", "sync-control assignment present but no sync target wired")
		return
	}
	value := a.InputValue.CalculateNormalValue(state.Value)
	in.sync.SetTarget(profileName, a.Identifier, value, a.ActionIncrease, a.ActionDecrease)
}
