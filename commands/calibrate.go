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

// Package commands holds the bridge's scripted CLI modes - presently just
// the calibration wizard, which watches a device's raw events and asks the
// operator to name each control it sees, writing the resulting SDL mapping
// and a first-pass calibration file to disk on exit.
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/puyodead1/tsw-controller-bridge/calibration"
	"github.com/puyodead1/tsw-controller-bridge/config"
	"github.com/puyodead1/tsw-controller-bridge/device"
)

// RunCalibrationMode watches source's raw event stream, prompting stdin for
// a name the first time it sees each distinct (kind, index) control on a
// device, and tracking a running min/max for axis controls. Typing "q" (on
// its own line, at any point) stops the session and exports whatever was
// learned to configDir. The function blocks until that happens or ctx is
// cancelled.
func RunCalibrationMode(ctx context.Context, source device.Source, configDir string, stdin io.Reader, stdout io.Writer) error {
	fmt.Fprintln(stdout, "Running calibration mode; press Q and hit enter to stop and write config files.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			text := scanner.Text()
			if strings.EqualFold(strings.TrimSpace(text), "q") {
				cancel()
				return
			}
			select {
			case lines <- text:
			case <-ctx.Done():
				return
			}
		}
	}()

	session := newCalibrationSession(stdout)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-source.Events():
			if !ok {
				break loop
			}
			session.handle(ctx, source, ev, lines)
		}
	}

	fmt.Fprintln(stdout, "Writing new config files..")
	loader := config.NewLoader()
	loader.SDLMappings = session.mappings()
	loader.Calibrations = session.calibrations()
	return loader.Export(configDir)
}

type calibrationSession struct {
	stdout              io.Writer
	mappingsByUsbID     map[string]*config.SDLMapping
	calibrationsByUsbID map[string]*calibration.File
}

func newCalibrationSession(stdout io.Writer) *calibrationSession {
	return &calibrationSession{
		stdout:              stdout,
		mappingsByUsbID:     make(map[string]*config.SDLMapping),
		calibrationsByUsbID: make(map[string]*calibration.File),
	}
}

func (s *calibrationSession) mappings() []config.SDLMapping {
	out := make([]config.SDLMapping, 0, len(s.mappingsByUsbID))
	for _, m := range s.mappingsByUsbID {
		out = append(out, *m)
	}
	return out
}

func (s *calibrationSession) calibrations() []calibration.File {
	out := make([]calibration.File, 0, len(s.calibrationsByUsbID))
	for _, c := range s.calibrationsByUsbID {
		out = append(out, *c)
	}
	return out
}

func (s *calibrationSession) handle(ctx context.Context, source device.Source, ev device.Event, lines <-chan string) {
	switch ev.Kind {
	case device.AxisMotion:
		s.handleAxis(ctx, source, ev, lines)
	case device.ButtonDown, device.ButtonUp:
		s.handleButton(ctx, source, ev, lines)
	case device.HatMotion:
		s.handleHat(ctx, source, ev, lines)
	}
}

func usbID(source device.Source, index int32) string {
	return fmt.Sprintf("%04X:%04X", source.VendorID(index), source.ProductID(index))
}

func (s *calibrationSession) mappingFor(id string) *config.SDLMapping {
	m, ok := s.mappingsByUsbID[id]
	if !ok {
		m = &config.SDLMapping{UsbID: id, Name: fmt.Sprintf("controller_%s", strings.ReplaceAll(strings.ToLower(id), ":", "_"))}
		s.mappingsByUsbID[id] = m
	}
	return m
}

func (s *calibrationSession) calibrationFor(id string) *calibration.File {
	c, ok := s.calibrationsByUsbID[id]
	if !ok {
		c = &calibration.File{UsbID: id}
		s.calibrationsByUsbID[id] = c
	}
	return c
}

// promptName asks the operator to name a newly-seen control, falling back
// to fallback if the line is blank or the session is cancelled first.
func promptName(ctx context.Context, stdout io.Writer, lines <-chan string, prompt, fallback string) string {
	fmt.Fprint(stdout, prompt)
	select {
	case line, ok := <-lines:
		if !ok {
			return fallback
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
		return fallback
	case <-ctx.Done():
		return fallback
	}
}

func (s *calibrationSession) handleAxis(ctx context.Context, source device.Source, ev device.Event, lines <-chan string) {
	id := usbID(source, ev.Index)
	fmt.Fprintf(s.stdout, "[%s] Axis %d moved to %d\n", id, ev.AxisIndex, ev.Value)

	mapping := s.mappingFor(id)
	fallback := fmt.Sprintf("Axis%d", ev.AxisIndex)
	control, found := findByKindIndex(mapping, device.Axis, uint32(ev.AxisIndex))
	if !found {
		name := promptName(ctx, s.stdout, lines, "Enter common name for this axis: ", fallback)
		control = config.SDLMappingControl{Name: name, Kind: device.Axis, Index: uint32(ev.AxisIndex)}
		mapping.Data = append(mapping.Data, control)
	}

	file := s.calibrationFor(id)
	value := float32(ev.Value)
	idx := findCalibrationIndex(file, control.Name)
	if idx == len(file.Data) {
		file.Data = append(file.Data, calibration.Data{ID: control.Name, Min: 0, Max: 1, Idle: 0, Deadzone: 0, Invert: false})
	}
	d := &file.Data[idx]
	d.Min = minF(d.Min, value)
	d.Max = maxF(d.Max, value)
	// mirrors the source calibration tool's own running-idle update, which
	// tracks the minimum observed value rather than a settled rest point.
	d.Idle = minF(d.Idle, value)
}

func (s *calibrationSession) handleButton(ctx context.Context, source device.Source, ev device.Event, lines <-chan string) {
	id := usbID(source, ev.Index)
	fmt.Fprintf(s.stdout, "[%s] Button %d triggered\n", id, ev.ButtonIndex)

	mapping := s.mappingFor(id)
	if _, found := findByKindIndex(mapping, device.Button, uint32(ev.ButtonIndex)); found {
		return
	}
	fallback := fmt.Sprintf("Button%d", ev.ButtonIndex)
	name := promptName(ctx, s.stdout, lines, "Enter common name for this button: ", fallback)
	mapping.Data = append(mapping.Data, config.SDLMappingControl{Name: name, Kind: device.Button, Index: uint32(ev.ButtonIndex)})
}

func (s *calibrationSession) handleHat(ctx context.Context, source device.Source, ev device.Event, lines <-chan string) {
	id := usbID(source, ev.Index)
	fmt.Fprintf(s.stdout, "[%s] Hat %d triggered\n", id, ev.HatIndex)

	mapping := s.mappingFor(id)
	if _, found := findByKindIndex(mapping, device.Hat, uint32(ev.HatIndex)); found {
		return
	}
	fallback := fmt.Sprintf("Hat%d", ev.HatIndex)
	name := promptName(ctx, s.stdout, lines, "Enter common name for this hat: ", fallback)
	mapping.Data = append(mapping.Data, config.SDLMappingControl{Name: name, Kind: device.Hat, Index: uint32(ev.HatIndex)})
}

func findByKindIndex(mapping *config.SDLMapping, kind device.Kind, index uint32) (config.SDLMappingControl, bool) {
	for _, c := range mapping.Data {
		if c.Kind == kind && c.Index == index {
			return c, true
		}
	}
	return config.SDLMappingControl{}, false
}

func findCalibrationIndex(file *calibration.File, id string) int {
	for i, d := range file.Data {
		if d.ID == id {
			return i
		}
	}
	return len(file.Data)
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
