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

// Package runtime is the Runtime Orchestrator (C7): it wires every other
// module together into one running bridge - the device event pump, the
// control state tracker, the profile interpreter, the keystroke sequencer
// and the two WebSocket servers - and owns the one context.Context that
// shuts all of it down together.
package runtime

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/puyodead1/tsw-controller-bridge/calibration"
	"github.com/puyodead1/tsw-controller-bridge/config"
	"github.com/puyodead1/tsw-controller-bridge/control"
	"github.com/puyodead1/tsw-controller-bridge/device"
	"github.com/puyodead1/tsw-controller-bridge/directcontrol"
	"github.com/puyodead1/tsw-controller-bridge/errors"
	"github.com/puyodead1/tsw-controller-bridge/logger"
	"github.com/puyodead1/tsw-controller-bridge/prefs"
	"github.com/puyodead1/tsw-controller-bridge/profile"
	"github.com/puyodead1/tsw-controller-bridge/sequencer"
	syncctl "github.com/puyodead1/tsw-controller-bridge/sync"
)

// attachedDevice is what the orchestrator remembers about one currently
// attached device, resolved once on DeviceAdded so the per-event hot path
// never has to touch config again.
type attachedDevice struct {
	usbID string
	mapping config.SDLMapping
	calib   calibration.File
}

// Orchestrator owns every long-running collaborator and the glue between
// them. Its zero value is not usable; use New.
type Orchestrator struct {
	cfg       *config.Loader
	source    device.Source
	tracker   *control.Tracker
	seq       *sequencer.Sequencer
	direct    *directcontrol.Broadcaster
	syncCtl   *syncctl.Controller
	interp    *profile.Interpreter
	disk      *prefs.Disk
	lastProfile  *prefs.String
	preferredMode *prefs.Int

	mu       sync.Mutex
	attached map[int32]attachedDevice
	mode     profile.PreferredControlMode
}

// New loads configuration from configDir and wires every collaborator
// against it, backed by a real SDL device source. It does not start
// anything running; call Run for that.
func New(configDir, prefsPath string) (*Orchestrator, error) {
	cfg := config.NewLoader()
	cfg.LoadFromDir(configDir)
	return NewFromConfig(cfg, device.NewSDLSource(), prefsPath)
}

// NewFromConfig is New with the config loader and device source injected
// directly, letting callers (and tests) substitute a fake device.Source in
// place of real SDL hardware.
func NewFromConfig(cfg *config.Loader, source device.Source, prefsPath string) (*Orchestrator, error) {
	disk, err := prefs.NewDisk(prefsPath)
	if err != nil {
		return nil, errors.Errorf(errors.PrefsError, err)
	}

	lastProfile := &prefs.String{}
	preferredMode := &prefs.Int{}
	if err := disk.Add("last_profile", lastProfile); err != nil {
		return nil, errors.Errorf(errors.PrefsError, err)
	}
	if err := disk.Add("preferred_control_mode", preferredMode); err != nil {
		return nil, errors.Errorf(errors.PrefsError, err)
	}
	_ = disk.Load() // a missing or absent prefs file just means fresh defaults

	seq := sequencer.New(sequencer.RobotgoInjector{})
	direct := directcontrol.New()
	tracker := control.NewTracker()

	o := &Orchestrator{
		cfg:           cfg,
		source:        source,
		tracker:       tracker,
		seq:           seq,
		direct:        direct,
		disk:          disk,
		lastProfile:   lastProfile,
		preferredMode: preferredMode,
		attached:      make(map[int32]attachedDevice),
	}

	o.syncCtl = syncctl.NewController(seq)
	o.interp = profile.NewInterpreter(cfg, seq, direct, o.syncCtl)
	o.mode = profile.PreferredControlMode(preferredMode.Get())
	o.interp.SetPreferredControlMode(o.mode)

	if name := lastProfile.Get(); name != "" {
		if err := o.interp.SetProfile(name); err != nil {
			logger.Logf("runtime", "could not restore last profile %q: %v", name, err)
		}
	}

	return o, nil
}

// Run starts every collaborator and blocks until ctx is cancelled, at which
// point it waits for each of them to shut down before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	runner := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Logf("runtime", "%s exited: %v", name, err)
				select {
				case errCh <- err:
				default:
				}
			}
		}()
	}

	if src, ok := o.source.(interface{ Run(context.Context) error }); ok {
		runner("device source", src.Run)
	}
	runner("direct-control broadcaster", o.direct.Run)
	runner("sync controller", o.syncCtl.Run)
	runner("sequencer", func(ctx context.Context) error {
		o.seq.Run(ctx)
		return nil
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.pumpDeviceEvents(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.pumpControlEvents(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// pumpDeviceEvents consumes the device source's raw event stream, resolving
// each event's control against the attached device's SDL mapping and
// calibration before updating the tracker.
func (o *Orchestrator) pumpDeviceEvents(ctx context.Context) {
	for {
		select {
		case ev, ok := <-o.source.Events():
			if !ok {
				return
			}
			o.handleDeviceEvent(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) handleDeviceEvent(ev device.Event) {
	switch ev.Kind {
	case device.DeviceAdded:
		o.attachDevice(ev.Index)
	case device.DeviceRemoved:
		o.detachDevice(ev.Index)
	case device.AxisMotion:
		if control.InitialEventGuard(ev.Timestamp) {
			return
		}
		o.applyEvent(ev.Index, device.Axis, ev.AxisIndex, ev.Value, false)
	case device.ButtonDown:
		if control.InitialEventGuard(ev.Timestamp) {
			return
		}
		o.applyEvent(ev.Index, device.Button, ev.ButtonIndex, 1, false)
	case device.ButtonUp:
		if control.InitialEventGuard(ev.Timestamp) {
			return
		}
		o.applyEvent(ev.Index, device.Button, ev.ButtonIndex, 0, false)
	case device.HatMotion:
		if control.InitialEventGuard(ev.Timestamp) {
			return
		}
		o.applyEvent(ev.Index, device.Hat, ev.HatIndex, int16(ev.HatState), false)
	}
}

func (o *Orchestrator) attachDevice(index int32) {
	usbID := fmt.Sprintf("%04X:%04X", o.source.VendorID(index), o.source.ProductID(index))

	mapping, ok := o.cfg.FindSDLMapping(usbID)
	if !ok {
		logger.Logf("runtime", "no SDL mapping for %s, ignoring device", usbID)
		return
	}
	calibFile, _ := o.cfg.FindCalibration(usbID)

	o.mu.Lock()
	o.attached[index] = attachedDevice{usbID: usbID, mapping: mapping, calib: calibFile}
	o.mu.Unlock()

	logger.Logf("runtime", "attached device %s (%s)", usbID, o.source.Name(index))

	for _, c := range mapping.Data {
		raw, err := o.pollRaw(index, c)
		if err != nil {
			continue
		}
		calib := o.calibrationFor(calibFile, c.Name)
		o.tracker.Update(usbID, c.Name, c.Kind, raw, true, calib)
	}
}

func (o *Orchestrator) detachDevice(index int32) {
	o.mu.Lock()
	dev, ok := o.attached[index]
	delete(o.attached, index)
	o.mu.Unlock()
	if !ok {
		return
	}
	o.tracker.Reset(dev.usbID)
	logger.Logf("runtime", "detached device %s", dev.usbID)
}

func (o *Orchestrator) pollRaw(index int32, c config.SDLMappingControl) (int16, error) {
	switch c.Kind {
	case device.Button:
		pressed, err := o.source.PollButton(index, uint8(c.Index))
		if err != nil {
			return 0, err
		}
		if pressed {
			return 1, nil
		}
		return 0, nil
	case device.Hat:
		v, err := o.source.PollHat(index, uint8(c.Index))
		return int16(v), err
	default:
		return o.source.PollAxis(index, uint8(c.Index))
	}
}

func (o *Orchestrator) calibrationFor(file calibration.File, controlName string) *calibration.Data {
	for i := range file.Data {
		if file.Data[i].ID == controlName {
			return &file.Data[i]
		}
	}
	return nil
}

func (o *Orchestrator) applyEvent(index int32, kind device.Kind, hwIndex uint8, raw int16, isReset bool) {
	o.mu.Lock()
	dev, ok := o.attached[index]
	o.mu.Unlock()
	if !ok {
		return
	}

	c, ok := findMappingControl(dev.mapping, kind, uint32(hwIndex))
	if !ok {
		return
	}

	calib := o.calibrationFor(dev.calib, c.Name)
	o.tracker.Update(dev.usbID, c.Name, kind, raw, isReset, calib)
}

func findMappingControl(mapping config.SDLMapping, kind device.Kind, index uint32) (config.SDLMappingControl, bool) {
	for _, c := range mapping.Data {
		if c.Kind == kind && c.Index == index {
			return c, true
		}
	}
	return config.SDLMappingControl{}, false
}

// pumpControlEvents feeds every tracked control-state change into the
// profile interpreter.
func (o *Orchestrator) pumpControlEvents(ctx context.Context) {
	events := o.tracker.Subscribe()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.interp.Run(ev)
		case <-ctx.Done():
			return
		}
	}
}

// SelectProfile activates a profile by name and persists the choice so it
// survives a restart.
func (o *Orchestrator) SelectProfile(name string) error {
	if err := o.interp.SetProfile(name); err != nil {
		return err
	}
	if err := o.lastProfile.Set(name); err != nil {
		return err
	}
	return o.disk.Save()
}

// ClearProfile deactivates whichever profile is active and persists that.
func (o *Orchestrator) ClearProfile() error {
	o.interp.ResetProfile()
	if err := o.lastProfile.Set(""); err != nil {
		return err
	}
	return o.disk.Save()
}

// SetPreferredControlMode switches delivery mode for controls offering
// both direct-control and sync-control assignments, resets the sync
// controller's tracked state (its identifiers are only meaningful under
// the filtered assignment list the old mode produced), and persists the
// choice.
func (o *Orchestrator) SetPreferredControlMode(mode profile.PreferredControlMode) error {
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()

	o.interp.SetPreferredControlMode(mode)
	o.syncCtl.Reset()
	if err := o.preferredMode.Set(strconv.Itoa(int(mode))); err != nil {
		return err
	}
	return o.disk.Save()
}

// CurrentProfileName reports the name of the active profile, if any.
func (o *Orchestrator) CurrentProfileName() (string, bool) {
	return o.interp.CurrentProfileName()
}

// CurrentPreferredControlMode reports the delivery mode currently in
// effect for controls offering both direct-control and sync-control
// assignments.
func (o *Orchestrator) CurrentPreferredControlMode() profile.PreferredControlMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}
