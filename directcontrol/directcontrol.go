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

// Package directcontrol implements the direct-control broadcaster: a
// WebSocket server on TCP 63241 that fans out DirectControlCommands to
// every currently connected client as a single text frame each.
package directcontrol

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/puyodead1/tsw-controller-bridge/broadcast"
	"github.com/puyodead1/tsw-controller-bridge/logger"
)

// Addr is the fixed TCP address the direct-control server listens on.
const Addr = "0.0.0.0:63241"

// Command is one direct-control instruction fanned out to every connected
// client.
type Command struct {
	Controls   string
	InputValue float32
	Relative   bool
	Hold       bool
}

// String formats a Command as "<controls>,<input_value>,<flags>", with
// flags joined by "|" and omitted entirely when false - the wire format
// every connected client parses.
func (c Command) String() string {
	var flags []string
	if c.Hold {
		flags = append(flags, "hold")
	}
	if c.Relative {
		flags = append(flags, "relative")
	}
	return fmt.Sprintf("%s,%s,%s", c.Controls, strconv.FormatFloat(float64(c.InputValue), 'g', -1, 32), strings.Join(flags, "|"))
}

// Broadcaster is the direct-control WebSocket server.
type Broadcaster struct {
	bus      *broadcast.Bus[Command]
	upgrader websocket.Upgrader
}

// New creates a Broadcaster. Call Enqueue to publish commands and Run to
// start serving.
func New() *Broadcaster {
	return &Broadcaster{
		bus: broadcast.New[Command](),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Enqueue fans a command out to every client currently connected. Clients
// that connect afterwards never see it.
func (b *Broadcaster) Enqueue(cmd Command) {
	b.bus.Publish(cmd)
}

// Run listens on Addr and serves WebSocket upgrades until ctx is
// cancelled. Each connection gets its own subscription to the command bus,
// and a per-client send or accept failure drops only that client.
func (b *Broadcaster) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.serve(ctx, w, r)
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

func (b *Broadcaster) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logf("direct-control", "websocket handshake failed: %v", err)
		return
	}
	defer conn.Close()

	logger.Log("direct-control", "client connected")

	sub := b.bus.Subscribe()
	defer b.bus.Unsubscribe(sub)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case cmd, ok := <-sub:
			if !ok {
				return
			}
			msg := "direct_control," + cmd.String()
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				logger.Logf("direct-control", "send failed, dropping client: %v", err)
				return
			}
		}
	}
}
