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

// Package sequencer serializes keystroke actions against the OS
// keystroke-injection facility: a single worker drains a FIFO queue so that
// no two injected actions ever overlap.
package sequencer

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/puyodead1/tsw-controller-bridge/errors"
	"github.com/puyodead1/tsw-controller-bridge/logger"
)

const (
	modifierSettle    = 30 * time.Millisecond
	defaultWaitTime   = 100 * time.Millisecond
)

// Injector is the OS keystroke sink collaborator.
type Injector interface {
	Press(key string) error
	Release(key string) error
}

// Action is one entry in the sequencer's queue.
type Action struct {
	// Keys is a "+"-separated token string, e.g. "ctrl+shift+a".
	Keys string

	// PressTime, if set, is how long to hold the keys before releasing
	// them automatically. If unset and Release is false, the caller is
	// responsible for enqueueing a matching release action later.
	PressTime *time.Duration

	// WaitTime is the settle time after an automatic release, used only
	// when PressTime is set. Defaults to 100ms.
	WaitTime *time.Duration

	// Release, if true, issues a release-only action for Keys.
	Release bool
}

// Sequencer is a FIFO worker draining Actions against an Injector.
type Sequencer struct {
	injector Injector

	mu     sync.Mutex
	queue  []Action
	notify chan struct{}
}

// New creates a Sequencer backed by injector.
func New(injector Injector) *Sequencer {
	return &Sequencer{
		injector: injector,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue appends an action to the queue and wakes the worker.
func (s *Sequencer) Enqueue(a Action) {
	s.mu.Lock()
	s.queue = append(s.queue, a)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Sequencer) pop() (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Action{}, false
	}
	a := s.queue[0]
	s.queue = s.queue[1:]
	return a, true
}

// Run drains the queue until ctx is cancelled. It pins itself to a
// dedicated OS thread because the injection facility is simplest to drive
// from a single, consistent thread, the way the emulator's SDL-backed GUI
// loop pins its own rendering thread.
func (s *Sequencer) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		for {
			a, ok := s.pop()
			if !ok {
				break
			}
			s.dispatch(a)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}
	}
}

func (s *Sequencer) dispatch(a Action) {
	switch {
	case a.Release:
		s.pressOrRelease(a.Keys, false)

	case a.PressTime != nil:
		s.pressOrRelease(a.Keys, true)
		sleep(ctxSleep(*a.PressTime))
		s.pressOrRelease(a.Keys, false)
		wait := defaultWaitTime
		if a.WaitTime != nil {
			wait = *a.WaitTime
		}
		sleep(wait)

	default:
		s.pressOrRelease(a.Keys, true)
	}
}

func ctxSleep(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func sleep(d time.Duration) {
	time.Sleep(d)
}

func (s *Sequencer) pressOrRelease(keys string, press bool) {
	modifiers, actionKeys := ParseKeys(keys)

	if press {
		for _, k := range modifiers {
			if err := s.injector.Press(k); err != nil {
				logger.Logf("sequencer", errors.InjectionFailed, err)
			}
		}
		if len(modifiers) > 0 {
			sleep(modifierSettle)
		}
		for _, k := range actionKeys {
			if err := s.injector.Press(k); err != nil {
				logger.Logf("sequencer", errors.InjectionFailed, err)
			}
		}
		return
	}

	for i := len(actionKeys) - 1; i >= 0; i-- {
		if err := s.injector.Release(actionKeys[i]); err != nil {
			logger.Logf("sequencer", errors.InjectionFailed, err)
		}
	}
	if len(modifiers) > 0 {
		sleep(modifierSettle)
	}
	for i := len(modifiers) - 1; i >= 0; i-- {
		if err := s.injector.Release(modifiers[i]); err != nil {
			logger.Logf("sequencer", errors.InjectionFailed, err)
		}
	}
}

// ParseKeys splits a "+"-separated key token string into modifier keys and
// action keys, case-insensitively. Unrecognised tokens longer than one
// character are dropped; single-character tokens map through unchanged as
// a Unicode keypress.
func ParseKeys(keys string) (modifiers []string, actionKeys []string) {
	for _, tok := range strings.Split(keys, "+") {
		lower := strings.ToLower(strings.TrimSpace(tok))

		switch lower {
		case "ctrl", "control":
			modifiers = append(modifiers, "ctrl")
			continue
		case "alt":
			modifiers = append(modifiers, "alt")
			continue
		case "meta", "cmd", "command":
			modifiers = append(modifiers, "cmd")
			continue
		}

		if name, ok := actionKeyName(lower); ok {
			actionKeys = append(actionKeys, name)
			continue
		}

		if len([]rune(lower)) == 1 {
			actionKeys = append(actionKeys, tok)
		}
	}
	return modifiers, actionKeys
}

func actionKeyName(lower string) (string, bool) {
	switch lower {
	case "shift":
		return "shift", true
	case "backspace":
		return "backspace", true
	case "delete":
		return "delete", true
	case "arrowdown", "down":
		return "down", true
	case "arrowup", "up":
		return "up", true
	case "arrowleft", "left":
		return "left", true
	case "arrowright", "right":
		return "right", true
	case "return", "enter":
		return "enter", true
	case "space", "spacebar":
		return "space", true
	case "tab":
		return "tab", true
	case "escape", "esc":
		return "esc", true
	case "capslock":
		return "capslock", true
	case "pageup":
		return "pageup", true
	case "pagedown":
		return "pagedown", true
	case "home":
		return "home", true
	case "end":
		return "end", true
	case "insert":
		return "insert", true
	}
	if len(lower) >= 2 && lower[0] == 'f' {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 12 {
			return lower, true
		}
	}
	return "", false
}
