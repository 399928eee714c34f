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

// Package calibration turns a device's raw integer axis reading into a
// normalized float in [-1, 1], applying a deadzone band and a cubic-bezier
// easing curve per control.
package calibration

import "math"

// Data is the per-device, per-control calibration record. The zero value
// has an empty easing curve, which Normalize treats as the identity curve
// (0,0,1,1).
type Data struct {
	// ID is the logical control name this calibration applies to.
	ID string `json:"id"`

	// Deadzone is the half-width of the band around Idle within which raw
	// readings normalize to no movement at all. A zero value disables the
	// deadzone.
	Deadzone float32 `json:"deadzone,omitempty"`

	// Invert flips the sign of the incoming raw value before anything
	// else is computed.
	Invert bool `json:"invert,omitempty"`

	Min float32 `json:"min"`
	Max float32 `json:"max"`
	Idle float32 `json:"idle"`

	// EasingCurve holds cubic-bezier control points (cx1, cy1, cx2, cy2).
	// The zero value is equivalent to the identity curve (0, 0, 1, 1).
	EasingCurve [4]float32 `json:"easing_curve,omitempty"`
}

// File is the on-disk shape of one calibration config file: a device's
// usb_id paired with the calibration record for each of its controls.
type File struct {
	UsbID string `json:"usb_id"`
	Data  []Data `json:"data"`
}

// Normalize returns the normalized value for a raw reading, or ok=false if
// the reading lies within the deadzone band.
func (d Data) Normalize(raw int16) (value float32, ok bool) {
	lo := d.Idle - d.Deadzone
	hi := d.Idle + d.Deadzone

	v := float32(raw)
	if d.Invert {
		v = -v
	}

	if v >= lo && v <= hi {
		return 0, false
	}

	curve := d.EasingCurve
	if curve == ([4]float32{}) {
		curve = [4]float32{0, 0, 1, 1}
	}
	ease := cubicBezierEasing(curve[0], curve[1], curve[2], curve[3])

	if v < lo && d.Min != d.Idle {
		t := clamp(abs((v-lo)/(d.Min-lo)), 0, 1)
		return -ease(t), true
	}

	if d.Max == d.Idle {
		return 0, false
	}
	t := clamp(abs((v-hi)/(d.Max-hi)), 0, 1)
	return ease(t), true
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// cubicBezierEasing returns a function mapping x in [0,1] to the y
// coordinate of the cubic bezier curve with control points (0,0),
// (cx1,cy1), (cx2,cy2), (1,1), solving for the curve parameter t with
// Newton-Raphson (falling back to bisection) the way CSS and most
// JavaScript bezier-easing implementations do.
func cubicBezierEasing(cx1, cy1, cx2, cy2 float32) func(x float32) float32 {
	bezierComponent := func(t, p1, p2 float64) float64 {
		u := 1 - t
		return 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t
	}
	bezierComponentDerivative := func(t, p1, p2 float64) float64 {
		u := 1 - t
		return 3*u*u*p1 + 6*u*t*(p2-p1) + 3*t*t*(1-p2)
	}

	solveT := func(x float64) float64 {
		t := x
		for i := 0; i < 8; i++ {
			xEst := bezierComponent(t, float64(cx1), float64(cx2)) - x
			d := bezierComponentDerivative(t, float64(cx1), float64(cx2))
			if math.Abs(d) < 1e-6 {
				break
			}
			t -= xEst / d
			t = math.Max(0, math.Min(1, t))
		}

		// Newton's method can fail to converge for degenerate control
		// points; bisection is used as a guaranteed-convergent fallback.
		lo, hi := 0.0, 1.0
		for i := 0; i < 20; i++ {
			xEst := bezierComponent(t, float64(cx1), float64(cx2))
			if math.Abs(xEst-x) < 1e-5 {
				break
			}
			if xEst < x {
				lo = t
			} else {
				hi = t
			}
			t = (lo + hi) / 2
		}
		return t
	}

	return func(x float32) float32 {
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		t := solveT(float64(x))
		return float32(bezierComponent(t, float64(cy1), float64(cy2)))
	}
}
