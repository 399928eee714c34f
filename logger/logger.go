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

// Package logger implements a capped, in-memory log that every component of
// the bridge writes through rather than calling fmt.Println directly. The
// log is held in memory and is only written out when a caller asks for it
// through Write or Tail; no part of the bridge does so at present, and the
// pipeline never reads it back.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission lets a caller suppress logging depending on its own state - for
// example a component that only wants to log once per distinct error.
type Permission interface {
	AllowLogging() bool
}

// permit is the default Permission, always allowing the log entry through.
type permit bool

func (p permit) AllowLogging() bool {
	return bool(p)
}

// Allow is the Permission value used by callers that always want their
// entry logged.
const Allow = permit(true)

type entry struct {
	tag    string
	detail string
}

// Logger is a capped ring of log entries. The zero value is not usable; use
// NewLogger.
type Logger struct {
	crit sync.Mutex
	cap  int
	log  []entry
}

// NewLogger creates a Logger that keeps at most cap entries, discarding the
// oldest once that limit is reached.
func NewLogger(cap int) *Logger {
	if cap <= 0 {
		cap = 1
	}
	return &Logger{cap: cap}
}

func stringify(detail interface{}) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Log adds an entry to the log, tagged with tag, unless perm forbids it.
func (l *Logger) Log(perm Permission, tag string, detail interface{}) {
	if perm != nil && !perm.AllowLogging() {
		return
	}

	l.crit.Lock()
	defer l.crit.Unlock()

	l.log = append(l.log, entry{tag: tag, detail: stringify(detail)})
	if len(l.log) > l.cap {
		l.log = l.log[len(l.log)-l.cap:]
	}
}

// Logf is Log with the detail built from a format string, matching the %v
// wrapping convention used when a lower layer's error is folded into a
// higher layer's log line.
func (l *Logger) Logf(perm Permission, tag string, format string, args ...interface{}) {
	l.Log(perm, tag, fmt.Sprintf(format, args...))
}

// Clear empties the log.
func (l *Logger) Clear() {
	l.crit.Lock()
	defer l.crit.Unlock()
	l.log = l.log[:0]
}

// Write dumps every retained entry to w, oldest first, one per line in the
// form "tag: detail".
func (l *Logger) Write(w io.Writer) {
	l.crit.Lock()
	defer l.crit.Unlock()

	var b strings.Builder
	for _, e := range l.log {
		b.WriteString(e.tag)
		b.WriteString(": ")
		b.WriteString(e.detail)
		b.WriteString("\n")
	}
	_, _ = io.WriteString(w, b.String())
}

// Tail dumps the most recent n entries to w, oldest-of-those-n first. n
// larger than the number of retained entries is not an error.
func (l *Logger) Tail(w io.Writer, n int) {
	l.crit.Lock()
	defer l.crit.Unlock()

	if n > len(l.log) {
		n = len(l.log)
	}
	if n <= 0 {
		return
	}

	var b strings.Builder
	for _, e := range l.log[len(l.log)-n:] {
		b.WriteString(e.tag)
		b.WriteString(": ")
		b.WriteString(e.detail)
		b.WriteString("\n")
	}
	_, _ = io.WriteString(w, b.String())
}

// central is the process-wide default logger every component in the bridge
// logs through when it has no reason to keep a private instance.
var central = NewLogger(5000)

// Log adds an entry to the process-wide logger.
func Log(tag string, detail interface{}) {
	central.Log(Allow, tag, detail)
}

// Logf adds a formatted entry to the process-wide logger.
func Logf(tag string, format string, args ...interface{}) {
	central.Logf(Allow, tag, format, args...)
}

// Write dumps the process-wide logger's content to w.
func Write(w io.Writer) {
	central.Write(w)
}

// Tail dumps the process-wide logger's most recent n entries to w.
func Tail(w io.Writer, n int) {
	central.Tail(w, n)
}

// Clear empties the process-wide logger.
func Clear() {
	central.Clear()
}
