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

package errors

// error messages, grouped by the component that raises them
const (
	// configuration loading
	ConfigDirUnavailable = "config error: cannot read directory (%v)"
	ConfigParseError     = "config error: could not parse %s (%v)"
	SDLMappingMissing    = "config error: no sdl mapping for device (%v)"
	CalibrationMissing   = "config error: no calibration for device (%v)"

	// profile selection/lookup
	ProfileNotFound = "profile error: profile not found (%v)"

	// device collaborator
	DeviceUnavailable = "device error: could not open device (%v)"

	// keystroke injection
	InjectionFailed = "sequencer error: key injection failed (%v)"

	// wire protocol
	MalformedFrame = "protocol error: malformed frame (%v)"

	// persisted preferences
	PrefsError     = "prefs: %v"
	PrefsNoFile    = "prefs: no file (%s)"
	PrefsNotValid  = "prefs: not a valid prefs file (%s)"
	PrefsBadToggle = "prefs: cannot set value (%v)"
)
