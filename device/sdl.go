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

package device

import (
	"context"
	"runtime"
	"sync"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/puyodead1/tsw-controller-bridge/errors"
	"github.com/puyodead1/tsw-controller-bridge/logger"
)

// SDLSource is a Source backed by go-sdl2's joystick subsystem. Its event
// pump runs on a dedicated, locked OS thread because SDL requires PollEvent
// to be called from the thread that initialized the subsystem - the same
// constraint the emulator's gui/sdlimgui package works around with its own
// locked rendering thread.
type SDLSource struct {
	events chan Event

	mu         sync.Mutex
	joysticks  map[int32]*sdl.Joystick
	instanceOf map[int32]int32 // sdl instance ID -> our device index
}

// NewSDLSource constructs an SDLSource. Run must be called to start the
// event pump.
func NewSDLSource() *SDLSource {
	return &SDLSource{
		events:     make(chan Event, 256),
		joysticks:  make(map[int32]*sdl.Joystick),
		instanceOf: make(map[int32]int32),
	}
}

func (s *SDLSource) Events() <-chan Event {
	return s.events
}

// Run initializes SDL's joystick subsystem and pumps events until ctx is
// cancelled. It must be called in its own goroutine; it locks that
// goroutine to its OS thread for its entire lifetime.
func (s *SDLSource) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := sdl.Init(sdl.INIT_JOYSTICK); err != nil {
		return errors.Errorf(errors.DeviceUnavailable, err)
	}
	defer sdl.Quit()

	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev := sdl.WaitEventTimeout(100)
		if ev == nil {
			continue
		}
		s.handle(ctx, ev)
	}
}

func (s *SDLSource) handle(ctx context.Context, ev sdl.Event) {
	switch e := ev.(type) {
	case *sdl.JoyDeviceAddedEvent:
		js := sdl.JoystickOpen(int(e.Which))
		if js == nil {
			logger.Log("device", "failed to open joystick on attach")
			return
		}
		index := e.Which

		s.mu.Lock()
		s.joysticks[index] = js
		s.instanceOf[js.InstanceID()] = index
		s.mu.Unlock()

		s.send(ctx, Event{Kind: DeviceAdded, Index: index})

	case *sdl.JoyDeviceRemovedEvent:
		index := s.resolve(e.Which)

		s.mu.Lock()
		if js, ok := s.joysticks[index]; ok {
			js.Close()
			delete(s.instanceOf, js.InstanceID())
		}
		delete(s.joysticks, index)
		s.mu.Unlock()

		s.send(ctx, Event{Kind: DeviceRemoved, Index: index})

	case *sdl.JoyAxisEvent:
		s.send(ctx, Event{
			Kind:      AxisMotion,
			Index:     s.resolve(e.Which),
			AxisIndex: e.Axis,
			Value:     e.Value,
			Timestamp: e.Timestamp,
		})

	case *sdl.JoyButtonEvent:
		kind := ButtonUp
		if e.State == sdl.PRESSED {
			kind = ButtonDown
		}
		s.send(ctx, Event{
			Kind:        kind,
			Index:       s.resolve(e.Which),
			ButtonIndex: e.Button,
			Timestamp:   e.Timestamp,
		})

	case *sdl.JoyHatEvent:
		s.send(ctx, Event{
			Kind:      HatMotion,
			Index:     s.resolve(e.Which),
			HatIndex:  e.Hat,
			HatState:  e.Value,
			Timestamp: e.Timestamp,
		})
	}
}

func (s *SDLSource) send(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *SDLSource) resolve(instanceID int32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceOf[instanceID]
}

func (s *SDLSource) joystick(index int32) *sdl.Joystick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joysticks[index]
}

func (s *SDLSource) VendorID(index int32) uint16 {
	js := s.joystick(index)
	if js == nil {
		return 0
	}
	return js.GetVendor()
}

func (s *SDLSource) ProductID(index int32) uint16 {
	js := s.joystick(index)
	if js == nil {
		return 0
	}
	return js.GetProduct()
}

func (s *SDLSource) Name(index int32) string {
	js := s.joystick(index)
	if js == nil {
		return ""
	}
	return js.Name()
}

func (s *SDLSource) PollAxis(index int32, axisIdx uint8) (int16, error) {
	js := s.joystick(index)
	if js == nil {
		return 0, errors.Errorf(errors.DeviceUnavailable, index)
	}
	return js.GetAxis(int(axisIdx)), nil
}

func (s *SDLSource) PollButton(index int32, buttonIdx uint8) (bool, error) {
	js := s.joystick(index)
	if js == nil {
		return false, errors.Errorf(errors.DeviceUnavailable, index)
	}
	return js.GetButton(int(buttonIdx)) != 0, nil
}

func (s *SDLSource) PollHat(index int32, hatIdx uint8) (uint8, error) {
	js := s.joystick(index)
	if js == nil {
		return 0, errors.Errorf(errors.DeviceUnavailable, index)
	}
	return js.GetHat(int(hatIdx)), nil
}
