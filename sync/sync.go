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

// Package sync implements the Sync Controller (C6): a bang-bang closed-loop
// drive of an external numeric value via repeated key actions, converging a
// reported "current" value toward a target set by the Profile Interpreter.
package sync

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/puyodead1/tsw-controller-bridge/logger"
	"github.com/puyodead1/tsw-controller-bridge/profile"
	"github.com/puyodead1/tsw-controller-bridge/sequencer"
)

// Addr is the fixed TCP address the sync-control server listens on.
const Addr = "0.0.0.0:63242"

// margin is the dead-band below which current and target are considered
// converged.
const margin = 0.005

// keySink is the narrow interface the controller needs of the sequencer.
type keySink interface {
	Enqueue(sequencer.Action)
}

type controlState struct {
	current, target float32
	moving           int8
	actionIncrease   *profile.Action
	actionDecrease   *profile.Action
}

// Controller is the Sync Controller. Its zero value is not usable; use
// NewController.
type Controller struct {
	seq keySink

	mu          sync.Mutex
	profileName string
	states      map[string]*controlState

	upgrader websocket.Upgrader
}

// NewController creates a Controller dispatching against seq.
func NewController(seq keySink) *Controller {
	return &Controller{
		seq:    seq,
		states: make(map[string]*controlState),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetTarget is the Profile Interpreter's entry point: a SyncControl
// assignment has fired, establishing value as the goal for identifier. A
// profileName differing from the last call's clears all tracked state
// first, since assignment slot identity is profile-scoped.
func (c *Controller) SetTarget(profileName, identifier string, value float32, actionIncrease, actionDecrease profile.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.profileName != "" && c.profileName != profileName {
		c.states = make(map[string]*controlState)
	}
	c.profileName = profileName

	st, ok := c.states[identifier]
	if !ok {
		st = &controlState{current: value, target: value, moving: 0}
		c.states[identifier] = st
	}
	st.target = value
	st.actionIncrease = &actionIncrease
	st.actionDecrease = &actionDecrease

	c.react(st)
}

// Reset clears all tracked state, called whenever the Profile
// Interpreter's preferred control mode changes - the filtered assignment
// list (and therefore which controls drive which identifiers) may no
// longer correspond to what's tracked.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profileName = ""
	c.states = make(map[string]*controlState)
}

// UpdateCurrent applies a reported current value for identifier, as parsed
// from an incoming sync_control WebSocket frame.
func (c *Controller) UpdateCurrent(identifier string, value float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[identifier]
	if !ok {
		st = &controlState{current: value, target: value, moving: 0}
		c.states[identifier] = st
		return
	}
	st.current = value
	c.react(st)
}

// react runs the bang-bang controller logic for st after either its
// current or target value has changed. Stop is evaluated first, and a pass
// that stops issues no start: after an overshoot or a direction reversal
// the outgoing key is released and the new direction is pressed on a later
// update, never in the same pass.
func (c *Controller) react(st *controlState) {
	if st.actionIncrease == nil || st.actionDecrease == nil {
		// no bound assignment yet: nothing drives this identifier.
		return
	}

	delta := st.current - st.target
	absDelta := absF(delta)

	shouldStop := (st.moving == 1 && st.current > st.target) ||
		(st.moving == -1 && st.current < st.target) ||
		(absDelta < margin && st.moving != 0)
	shouldIncrease := st.target > st.current && absDelta >= margin && st.moving != 1
	shouldDecrease := st.target < st.current && absDelta >= margin && st.moving != -1

	if shouldStop {
		action := st.actionDecrease
		if st.moving == 1 {
			action = st.actionIncrease
		}
		c.seq.Enqueue(sequencer.Action{Keys: action.Keys, Release: true})
		st.moving = 0
		return
	}

	if shouldIncrease {
		c.seq.Enqueue(sequencer.Action{Keys: st.actionIncrease.Keys})
		st.moving = 1
	}

	if shouldDecrease {
		c.seq.Enqueue(sequencer.Action{Keys: st.actionDecrease.Keys})
		st.moving = -1
	}
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Run listens on Addr and serves WebSocket upgrades until ctx is
// cancelled. Each client's frames update the current-value side of the
// controller; malformed or mis-prefixed frames are silently skipped.
func (c *Controller) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.serve(ctx, w, r)
	})}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (c *Controller) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logf("sync", "websocket handshake failed: %v", err)
		return
	}
	defer conn.Close()

	logger.Log("sync", "client connected")

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				logger.Logf("sync", "read failed, dropping client: %v", err)
			}
			return
		}
		c.handleFrame(string(data))
	}
}

func (c *Controller) handleFrame(text string) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 || parts[0] != "sync_control" {
		return
	}
	value, err := strconv.ParseFloat(parts[2], 32)
	if err != nil {
		return
	}
	c.UpdateCurrent(parts[1], float32(value))
}
