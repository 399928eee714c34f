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

// Package config loads the three on-disk JSON config sets the bridge needs
// - SDL control mappings, calibration records and control profiles - from a
// directory tree, and answers the lookups the rest of the bridge needs
// against them. A malformed file is logged and skipped; it never aborts the
// load.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/puyodead1/tsw-controller-bridge/calibration"
	"github.com/puyodead1/tsw-controller-bridge/device"
	"github.com/puyodead1/tsw-controller-bridge/logger"
	"github.com/puyodead1/tsw-controller-bridge/profile"
)

// SDLMappingControl names one control's SDL-level identity: which kind of
// hardware element it is and which index within that kind.
type SDLMappingControl struct {
	Name  string     `json:"name"`
	Kind  device.Kind `json:"-"`
	Index uint32     `json:"index"`
}

// kindAlias exists because device.Kind has no JSON representation of its
// own (it is an int enum used internally); config files spell kinds out as
// one of "axis", "button" or "hat".
type kindAlias string

func (c *SDLMappingControl) UnmarshalJSON(data []byte) error {
	type shadow struct {
		Name  string    `json:"name"`
		Kind  kindAlias `json:"kind"`
		Index uint32    `json:"index"`
	}
	var raw shadow
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.Index = raw.Index
	switch strings.ToLower(string(raw.Kind)) {
	case "button":
		c.Kind = device.Button
	case "hat":
		c.Kind = device.Hat
	default:
		c.Kind = device.Axis
	}
	return nil
}

func (c SDLMappingControl) MarshalJSON() ([]byte, error) {
	type shadow struct {
		Name  string    `json:"name"`
		Kind  kindAlias `json:"kind"`
		Index uint32    `json:"index"`
	}
	return json.Marshal(shadow{Name: c.Name, Kind: kindAlias(c.Kind.String()), Index: c.Index})
}

// SDLMapping is one device's complete set of named SDL control bindings.
type SDLMapping struct {
	UsbID string              `json:"usb_id"`
	Name  string              `json:"name,omitempty"`
	Data  []SDLMappingControl `json:"data"`
}

// FindControl returns the mapping entry for a named control.
func (m SDLMapping) FindControl(name string) (SDLMappingControl, bool) {
	for _, c := range m.Data {
		if c.Name == name {
			return c, true
		}
	}
	return SDLMappingControl{}, false
}

// Loader holds every config file read from a directory tree, and answers
// the usb_id/name based lookups the rest of the bridge needs. The zero
// value is empty and usable.
type Loader struct {
	SDLMappings  []SDLMapping
	Calibrations []calibration.File
	Profiles     []profile.Profile
}

// NewLoader returns an empty Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFromDir reads sdl_mappings/, calibration/ and profiles/ subdirectories
// of dir, parsing every *.json file found in each. A subdirectory that
// doesn't exist contributes nothing. A file that fails to parse is logged
// and skipped rather than aborting the load.
func (l *Loader) LoadFromDir(dir string) {
	mappingFiles := jsonFiles(filepath.Join(dir, "sdl_mappings"))
	logger.Logf("config", "found %d SDL mapping files", len(mappingFiles))
	for _, path := range mappingFiles {
		var m SDLMapping
		if err := readJSON(path, &m); err != nil {
			logger.Logf("config", "skipping SDL mapping file %s: %v", path, err)
			continue
		}
		l.SDLMappings = append(l.SDLMappings, m)
	}

	calibrationFiles := jsonFiles(filepath.Join(dir, "calibration"))
	logger.Logf("config", "found %d calibration files", len(calibrationFiles))
	for _, path := range calibrationFiles {
		var c calibration.File
		if err := readJSON(path, &c); err != nil {
			logger.Logf("config", "skipping calibration file %s: %v", path, err)
			continue
		}
		l.Calibrations = append(l.Calibrations, c)
	}

	profileFiles := jsonFiles(filepath.Join(dir, "profiles"))
	logger.Logf("config", "found %d profile files", len(profileFiles))
	for _, path := range profileFiles {
		var p profile.Profile
		if err := readJSON(path, &p); err != nil {
			logger.Logf("config", "skipping profile file %s: %v", path, err)
			continue
		}
		l.Profiles = append(l.Profiles, p)
	}

	sort.Slice(l.Profiles, func(i, j int) bool { return l.Profiles[i].Name < l.Profiles[j].Name })
}

func jsonFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Export writes every loaded config entry back to dir, recreating the
// sdl_mappings/, calibration/ and profiles/ subdirectories. Filenames are
// slugified from each entry's natural identifier so re-running Export is
// stable across invocations.
func (l *Loader) Export(dir string) error {
	if err := writeSet(filepath.Join(dir, "sdl_mappings"), l.SDLMappings, func(m SDLMapping) string {
		if m.Name != "" {
			return m.Name
		}
		return m.UsbID
	}); err != nil {
		return err
	}
	if err := writeSet(filepath.Join(dir, "calibration"), l.Calibrations, func(c calibration.File) string {
		return c.UsbID
	}); err != nil {
		return err
	}
	return writeSet(filepath.Join(dir, "profiles"), l.Profiles, func(p profile.Profile) string {
		return p.Name
	})
}

func writeSet[T any](dir string, items []T, nameOf func(T) string) error {
	if len(items) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, item := range items {
		data, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(dir, slugify(nameOf(item))+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// slugify lowercases s and replaces every run of characters outside
// [a-z0-9] with a single hyphen, trimming leading and trailing hyphens.
// Good enough for deriving a filesystem-safe filename from a usb_id or
// profile name; not a general Unicode slugifier.
func slugify(s string) string {
	var b strings.Builder
	prevHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "unnamed"
	}
	return out
}

// FindSDLMapping looks up a device's control mapping by usb_id, matched
// case-insensitively.
func (l *Loader) FindSDLMapping(usbID string) (SDLMapping, bool) {
	for _, m := range l.SDLMappings {
		if strings.EqualFold(m.UsbID, usbID) {
			return m, true
		}
	}
	return SDLMapping{}, false
}

// FindCalibration looks up a device's calibration file by usb_id, matched
// case-insensitively.
func (l *Loader) FindCalibration(usbID string) (calibration.File, bool) {
	for _, c := range l.Calibrations {
		if strings.EqualFold(c.UsbID, usbID) {
			return c, true
		}
	}
	return calibration.File{}, false
}

// ControlCalibration returns the per-control calibration record for a
// device's named control, if one is configured.
func (l *Loader) ControlCalibration(usbID, controlName string) (calibration.Data, bool) {
	file, ok := l.FindCalibration(usbID)
	if !ok {
		return calibration.Data{}, false
	}
	for _, d := range file.Data {
		if d.ID == controlName {
			return d, true
		}
	}
	return calibration.Data{}, false
}

// FindProfile implements profile.ProfileSource: a profile bound to usbID
// takes precedence over a usb_id-less default of the same name.
func (l *Loader) FindProfile(name string, usbID *string) (profile.Profile, bool) {
	var fallback profile.Profile
	found := false
	for _, p := range l.Profiles {
		if p.Name != name {
			continue
		}
		if usbID != nil && p.UsbID != nil && strings.EqualFold(*p.UsbID, *usbID) {
			return p, true
		}
		if p.UsbID == nil {
			fallback = p
			found = true
		}
	}
	return fallback, found
}
