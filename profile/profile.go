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

// Package profile defines the profile data model - the assignment
// variants a profile control can carry - and the Profile Interpreter that
// matches control-state changes against those assignments.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/puyodead1/tsw-controller-bridge/directcontrol"
)

// PreferredControlMode selects which delivery style wins when a control
// offers both DirectControl and SyncControl assignments.
type PreferredControlMode int

const (
	ModeDirectControl PreferredControlMode = iota
	ModeSyncControl
)

// Action is a single key-press or direct-control action, as referenced by
// Momentary, Toggle and Linear assignments. It mirrors the Rust original's
// untagged enum: whichever of the two shapes has its fields populated is
// the one in effect, distinguished here by the presence of Controls.
type Action struct {
	Keys      string   `json:"keys,omitempty"`
	PressTime *float64 `json:"press_time,omitempty"`
	WaitTime  *float64 `json:"wait_time,omitempty"`

	Controls *string `json:"controls,omitempty"`
	Value    float32 `json:"value,omitempty"`
	Relative bool    `json:"relative,omitempty"`
	Hold     bool    `json:"hold,omitempty"`
}

// UnmarshalJSON decodes whichever of Action's two untagged JSON shapes is
// present: a keys action or a direct-control action, distinguished the way
// the original distinguishes them - by the presence of "controls".
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Keys      string   `json:"keys"`
		PressTime *float64 `json:"press_time"`
		WaitTime  *float64 `json:"wait_time"`
		Controls  *string  `json:"controls"`
		Value     float32  `json:"value"`
		Relative  bool     `json:"relative"`
		Hold      bool     `json:"hold"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Keys, a.PressTime, a.WaitTime = raw.Keys, raw.PressTime, raw.WaitTime
	a.Controls, a.Value, a.Relative, a.Hold = raw.Controls, raw.Value, raw.Relative, raw.Hold
	return nil
}

// IsDirectControl reports whether this action is the direct-control
// variant rather than a key action.
func (a Action) IsDirectControl() bool {
	return a.Controls != nil
}

// CompareValue is the string two actions are compared by to decide whether
// a Toggle assignment's next call differs from its last one.
func (a Action) CompareValue() string {
	if a.IsDirectControl() {
		cmd := directcontrol.Command{Controls: *a.Controls, InputValue: a.Value, Relative: a.Relative, Hold: a.Hold}
		return cmd.String()
	}
	return a.Keys
}

// InputValue describes how a normalized control value maps onto a direct
// or sync-control target range, with optional discretization into steps
// and free-range zones.
type InputValue struct {
	Min, Max float32
	Step     *float32
	// Steps holds an ordered list of defined step values. A nil entry
	// denotes a free-range zone between its non-nil neighbours.
	Steps  []*float32
	Invert bool
}

func (iv *InputValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Min    float32    `json:"min"`
		Max    float32    `json:"max"`
		Step   *float32   `json:"step"`
		Steps  []*float32 `json:"steps"`
		Invert bool       `json:"invert"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	iv.Min, iv.Max, iv.Step, iv.Steps, iv.Invert = raw.Min, raw.Max, raw.Step, raw.Steps, raw.Invert
	return nil
}

// FreeRangeZones returns the (start, end) bounds of every free-range zone
// encoded as a run of nil entries in Steps.
func (iv InputValue) FreeRangeZones() [][2]float32 {
	if iv.Steps == nil {
		return nil
	}

	var zones [][2]float32
	prev := iv.Min
	inZone := false
	for _, step := range iv.Steps {
		if step == nil {
			inZone = true
			continue
		}
		if inZone {
			zones = append(zones, [2]float32{prev, *step})
		}
		inZone = false
		prev = *step
	}
	if inZone {
		zones = append(zones, [2]float32{prev, iv.Max})
	}
	return zones
}

// NormalSteps returns the non-nil entries of Steps, excluding free-range
// zone markers, and whether Steps was set at all.
func (iv InputValue) NormalSteps() ([]float32, bool) {
	if iv.Steps == nil {
		return nil, false
	}
	var out []float32
	for _, s := range iv.Steps {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, true
}

// CalculateNormalValue maps a control value in [-1, 1] onto this input
// value's [Min, Max] range, snapping to the nearest defined step or
// leaving it untouched within a free-range zone.
func (iv InputValue) CalculateNormalValue(value float32) float32 {
	input := value
	if iv.Invert {
		if value < 0 {
			input = -1 - value
		} else {
			input = 1 - value
		}
	}

	totalDistance := iv.Max - iv.Min
	if totalDistance < 0 {
		totalDistance = -totalDistance
	}
	normal := input*totalDistance + iv.Min

	steps, haveSteps := iv.NormalSteps()
	if !haveSteps {
		if iv.Step != nil {
			steps = synthesizeSteps(iv.Min, iv.Max, *iv.Step)
			haveSteps = true
		}
	}

	if !haveSteps {
		return clampF(normal, iv.Min, iv.Max)
	}

	for _, z := range iv.FreeRangeZones() {
		if normal >= z[0] && normal <= z[1] {
			return clampF(normal, iv.Min, iv.Max)
		}
	}

	closest := steps[0]
	for _, s := range steps {
		if absF(normal-s) < absF(normal-closest) {
			closest = s
		}
	}
	return closest
}

func synthesizeSteps(min, max, step float32) []float32 {
	if step <= 0 {
		return []float32{min, max}
	}
	var steps []float32
	current := min
	for {
		steps = append(steps, current)
		current += step
		if current >= max {
			steps = append(steps, max)
			break
		}
	}
	return steps
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// LinearThreshold is one entry of a Linear assignment's threshold list,
// optionally expandable into a run of evenly-spaced thresholds.
type LinearThreshold struct {
	Value            float32  `json:"value"`
	ValueEnd         *float32 `json:"value_end,omitempty"`
	ValueStep        *float32 `json:"value_step,omitempty"`
	ActivateAction   Action   `json:"action_activate"`
	DeactivateAction *Action  `json:"action_deactivate,omitempty"`
}

// IsExceedingThreshold implements the sign-dependent crossing test:
// negative thresholds trigger on the downside, non-negative on the upside.
func (t LinearThreshold) IsExceedingThreshold(value float32) bool {
	if t.Value < 0 {
		return value < t.Value
	}
	return value >= t.Value
}

// LinearAssignment fires action_activate/action_deactivate pairs as a
// control value sweeps across an ordered set of thresholds.
type LinearAssignment struct {
	Neutral    *float32          `json:"neutral,omitempty"`
	Thresholds []LinearThreshold `json:"thresholds"`
}

// GeneratedThresholds expands any threshold with both ValueEnd and
// ValueStep set into a run of thresholds at Value, Value+Step, ...,
// rounded to four decimal places at each step. Generated entries carry no
// ValueEnd/ValueStep of their own, so it is idempotent: running it again on
// an already-expanded list leaves every entry untouched.
func (a LinearAssignment) GeneratedThresholds() []LinearThreshold {
	var out []LinearThreshold
	for _, t := range a.Thresholds {
		if t.ValueEnd == nil || t.ValueStep == nil || *t.ValueStep <= 0 {
			out = append(out, t)
			continue
		}
		current := t.Value
		for current <= *t.ValueEnd {
			out = append(out, LinearThreshold{
				Value:            current,
				ActivateAction:   t.ActivateAction,
				DeactivateAction: t.DeactivateAction,
			})
			current = round4(current + *t.ValueStep)
		}
	}
	return out
}

func round4(v float32) float32 {
	const scale = 10000
	if v < 0 {
		return float32(int(v*scale-0.5)) / scale
	}
	return float32(int(v*scale+0.5)) / scale
}

// NeutralizedValue rescales a control value around Neutral, or returns it
// unchanged when Neutral is unset or non-positive.
func (a LinearAssignment) NeutralizedValue(value float32) float32 {
	if a.Neutral != nil && *a.Neutral > 0 {
		return (value - *a.Neutral) * (1 / *a.Neutral)
	}
	return value
}

// MomentaryAssignment fires action_activate once a threshold is crossed
// upward and action_deactivate (or a release of action_activate) once it
// is crossed back downward.
type MomentaryAssignment struct {
	Threshold        float32 `json:"threshold"`
	ActivateAction   Action  `json:"action_activate"`
	DeactivateAction *Action `json:"action_deactivate,omitempty"`
}

// ToggleAssignment alternates between action_activate and
// action_deactivate on successive upward crossings of a threshold.
type ToggleAssignment struct {
	Threshold        float32 `json:"threshold"`
	ActivateAction   Action  `json:"action_activate"`
	DeactivateAction Action  `json:"action_deactivate"`
}

// DirectControlAssignment emits a DirectControlCommand on every qualifying
// event.
type DirectControlAssignment struct {
	Controls   string     `json:"controls"`
	Hold       bool       `json:"hold,omitempty"`
	InputValue InputValue `json:"input_value"`
}

// SyncControlAssignment only ever sets a target on the Sync Controller; it
// issues no direct key action itself.
type SyncControlAssignment struct {
	Identifier     string     `json:"identifier"`
	InputValue     InputValue `json:"input_value"`
	ActionIncrease Action     `json:"action_increase"`
	ActionDecrease Action     `json:"action_decrease"`
}

// AssignmentKind discriminates the five assignment variants a profile
// control may carry.
type AssignmentKind string

const (
	KindMomentary     AssignmentKind = "momentary"
	KindLinear        AssignmentKind = "linear"
	KindToggle        AssignmentKind = "toggle"
	KindDirectControl AssignmentKind = "direct_control"
	KindSyncControl   AssignmentKind = "sync_control"
)

// Assignment is the tagged union of the five assignment variants, mirroring
// the original's `#[serde(tag = "type")]` enum. Exactly one of the pointer
// fields matching Kind is populated.
type Assignment struct {
	Kind AssignmentKind

	Momentary     *MomentaryAssignment
	Linear        *LinearAssignment
	Toggle        *ToggleAssignment
	DirectControl *DirectControlAssignment
	SyncControl   *SyncControlAssignment
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type AssignmentKind `json:"type"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	a.Kind = tagged.Type

	switch tagged.Type {
	case KindMomentary:
		var v MomentaryAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		a.Momentary = &v
	case KindLinear:
		var v LinearAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		a.Linear = &v
	case KindToggle:
		var v ToggleAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		a.Toggle = &v
	case KindDirectControl:
		var v DirectControlAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		a.DirectControl = &v
	case KindSyncControl:
		var v SyncControlAssignment
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		a.SyncControl = &v
	default:
		return fmt.Errorf("profile: unknown assignment type %q", tagged.Type)
	}
	return nil
}

// Control is one logical control's profile entry: either a single
// assignment or an ordered list of assignments.
type Control struct {
	Name        string       `json:"name"`
	Assignment  *Assignment  `json:"assignment,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// FilteredAssignments returns this control's assignment list with
// SyncControl or DirectControl variants dropped according to mode, per the
// mutual-exclusion rule: mode only wins when the control actually offers an
// assignment of that kind.
func (c Control) FilteredAssignments(mode PreferredControlMode) []Assignment {
	var all []Assignment
	if c.Assignment != nil {
		all = []Assignment{*c.Assignment}
	} else {
		all = c.Assignments
	}

	hasDirect := false
	hasSync := false
	for _, a := range all {
		if a.Kind == KindDirectControl {
			hasDirect = true
		}
		if a.Kind == KindSyncControl {
			hasSync = true
		}
	}

	switch {
	case mode == ModeDirectControl && hasDirect:
		return filterOut(all, KindSyncControl)
	case mode == ModeSyncControl && hasSync:
		return filterOut(all, KindDirectControl)
	default:
		return all
	}
}

func filterOut(all []Assignment, kind AssignmentKind) []Assignment {
	out := make([]Assignment, 0, len(all))
	for _, a := range all {
		if a.Kind != kind {
			out = append(out, a)
		}
	}
	return out
}

// Profile is a named collection of control assignments, optionally bound
// to one device via UsbID.
type Profile struct {
	Name     string    `json:"name"`
	UsbID    *string   `json:"usb_id,omitempty"`
	Controls []Control `json:"controls"`
}

// FindControl looks up a control by logical name.
func (p Profile) FindControl(name string) (Control, bool) {
	for _, c := range p.Controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}
