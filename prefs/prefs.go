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

// Package prefs persists the small amount of runtime state the bridge needs
// to remember between invocations - which profile was last selected and
// which control mode (direct-control or sync-control) the operator prefers.
// It knows nothing about profiles or control modes itself; it just stores
// named values to a flat text file.
package prefs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// WarningBoilerPlate is written as the first line of every saved prefs
// file, warning against hand-editing.
const WarningBoilerPlate = "# this file is written by tsw-controller-bridge. hand-editing is not recommended."

// Value is the type used to pass values into and out of a generic
// preference entry. It carries no constraints of its own; individual entry
// types interpret it as they see fit.
type Value = interface{}

// entry is the interface every preference value implements so that a Disk
// can save and load it without knowing its concrete type.
type entry interface {
	Set(interface{}) error
	String() string
}

// Bool is a boolean preference value.
type Bool struct {
	mu sync.Mutex
	v  bool
}

// Set accepts a bool directly, or a string which is true only when it
// equals "true".
func (b *Bool) Set(v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch x := v.(type) {
	case bool:
		b.v = x
	case string:
		b.v = x == "true"
	default:
		return fmt.Errorf("prefs: unsupported value for bool preference: %v", v)
	}
	return nil
}

func (b *Bool) Get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

func (b *Bool) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.v {
		return "true"
	}
	return "false"
}

// String is a string preference value, optionally capped to a maximum
// length.
type String struct {
	mu     sync.Mutex
	v      string
	maxLen int
}

// Set accepts a string, cropping it to the configured maximum length if
// one has been set.
func (s *String) Set(v interface{}) error {
	x, ok := v.(string)
	if !ok {
		return fmt.Errorf("prefs: unsupported value for string preference: %v", v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxLen > 0 && len(x) > s.maxLen {
		x = x[:s.maxLen]
	}
	s.v = x
	return nil
}

// SetMaxLen caps the value to n bytes, cropping the current value
// immediately. A length of zero removes the cap without restoring any
// cropped content.
func (s *String) SetMaxLen(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxLen = n
	if n > 0 && len(s.v) > n {
		s.v = s.v[:n]
	}
}

func (s *String) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *String) String() string {
	return s.Get()
}

// Int is an integer preference value.
type Int struct {
	mu sync.Mutex
	v  int
}

// Set accepts an int directly, or a string parseable as an int.
func (i *Int) Set(v interface{}) error {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case string:
		var err error
		n, err = strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return fmt.Errorf("prefs: unsupported value for int preference: %v", v)
		}
	default:
		return fmt.Errorf("prefs: unsupported value for int preference: %v", v)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.v = n
	return nil
}

func (i *Int) Get() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.v
}

func (i *Int) String() string {
	return strconv.Itoa(i.Get())
}

// Float is a floating point preference value.
type Float struct {
	mu sync.Mutex
	v  float64
}

// Set accepts a float64 directly, or a string parseable as a float64.
func (f *Float) Set(v interface{}) error {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case string:
		var err error
		n, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return fmt.Errorf("prefs: unsupported value for float preference: %v", v)
		}
	default:
		return fmt.Errorf("prefs: unsupported value for float preference: %v", v)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.v = n
	return nil
}

func (f *Float) Get() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v
}

func (f *Float) String() string {
	return strconv.FormatFloat(f.Get(), 'g', -1, 64)
}

// generic wraps a pair of caller-supplied functions so that arbitrary state
// - not just the four built-in scalar types - can be persisted.
type generic struct {
	set func(Value) error
	get func() Value
}

// NewGeneric builds a preference entry backed by set and get, for state
// that doesn't fit the built-in scalar types.
func NewGeneric(set func(Value) error, get func() Value) entry {
	return &generic{set: set, get: get}
}

func (g *generic) Set(v interface{}) error {
	return g.set(v)
}

func (g *generic) String() string {
	return fmt.Sprintf("%v", g.get())
}

// Disk is a collection of named preference entries backed by a flat text
// file on disk.
type Disk struct {
	path string

	mu      sync.Mutex
	entries map[string]entry
}

// NewDisk prepares a Disk that will read from and write to the file at
// path. It does not load the file; call Load explicitly.
func NewDisk(path string) (*Disk, error) {
	if path == "" {
		return nil, fmt.Errorf("prefs: empty path")
	}
	return &Disk{path: path, entries: make(map[string]entry)}, nil
}

// Add registers a preference entry under name. Saving and loading the disk
// will read and write through v from then on.
func (d *Disk) Add(name string, v entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries[name]; ok {
		return fmt.Errorf("prefs: %s already registered", name)
	}
	d.entries[name] = v
	return nil
}

// Save writes every registered entry to disk, one "key :: value" line per
// entry, sorted by key, preceded by WarningBoilerPlate. Entries registered
// by other Disk instances sharing the same file are preserved.
func (d *Disk) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	merged, err := d.readExisting()
	if err != nil {
		return err
	}

	for k, v := range d.entries {
		merged[k] = v.String()
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(WarningBoilerPlate)
	b.WriteString("\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s :: %s\n", k, merged[k])
	}

	return os.WriteFile(d.path, []byte(b.String()), 0o644)
}

// readExisting reads the current file, if any, returning every key/value
// pair it holds, including entries this Disk instance doesn't know about.
func (d *Disk) readExisting() (map[string]string, error) {
	out := make(map[string]string)

	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("prefs: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if line == WarningBoilerPlate {
				continue
			}
		}
		k, v, ok := splitEntry(line)
		if !ok {
			continue
		}
		out[k] = v
	}

	return out, sc.Err()
}

func splitEntry(line string) (key, value string, ok bool) {
	i := strings.Index(line, "::")
	if i < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:i])
	value = strings.TrimSpace(line[i+2:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// Load reads the file and, for every line whose key matches a registered
// entry, calls that entry's Set method with the stored string value.
func (d *Disk) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("prefs: no file (%s)", d.path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			if line == WarningBoilerPlate {
				continue
			}
		}
		k, v, ok := splitEntry(line)
		if !ok {
			continue
		}
		e, ok := d.entries[k]
		if !ok {
			continue
		}
		if err := e.Set(v); err != nil {
			return fmt.Errorf("prefs: cannot set value (%v)", err)
		}
	}

	return sc.Err()
}
