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

package sync_test

import (
	"sync"
	"testing"

	"github.com/puyodead1/tsw-controller-bridge/profile"
	"github.com/puyodead1/tsw-controller-bridge/sequencer"
	syncctl "github.com/puyodead1/tsw-controller-bridge/sync"
	"github.com/puyodead1/tsw-controller-bridge/test"
)

type fakeSequencer struct {
	mu  sync.Mutex
	log []string
}

func (f *fakeSequencer) Enqueue(a sequencer.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tag := "press"
	if a.Release {
		tag = "release"
	}
	f.log = append(f.log, tag+":"+a.Keys)
}

func (f *fakeSequencer) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.log))
	copy(out, f.log)
	return out
}

// (d) Sync convergence: spec.md scenario (d).
func TestSyncConvergence(t *testing.T) {
	seq := &fakeSequencer{}
	c := syncctl.NewController(seq)

	increase := profile.Action{Keys: "increase"}
	decrease := profile.Action{Keys: "decrease"}

	c.SetTarget("p", "lvr", 0.8, increase, decrease)
	c.UpdateCurrent("lvr", 0.0)
	c.UpdateCurrent("lvr", 0.81)

	test.Equate(t, seq.snapshot(), []string{"press:increase", "release:increase"})
}

func TestDeadbandSuppressesOscillation(t *testing.T) {
	seq := &fakeSequencer{}
	c := syncctl.NewController(seq)

	increase := profile.Action{Keys: "increase"}
	decrease := profile.Action{Keys: "decrease"}

	c.SetTarget("p", "lvr", 0.5, increase, decrease)
	c.UpdateCurrent("lvr", 0.4985) // within margin, no movement expected

	test.ExpectEquality(t, len(seq.snapshot()), 0)
}

func TestProfileChangeClearsState(t *testing.T) {
	seq := &fakeSequencer{}
	c := syncctl.NewController(seq)

	increase := profile.Action{Keys: "increase"}
	decrease := profile.Action{Keys: "decrease"}

	c.SetTarget("p1", "lvr", 0.8, increase, decrease)
	c.UpdateCurrent("lvr", 0.0)
	test.Equate(t, seq.snapshot(), []string{"press:increase"})

	// switching profiles drops the moving=1 state; the fresh entry starts
	// converged (current == target) so no release is dispatched.
	c.SetTarget("p2", "lvr", 0.3, increase, decrease)
	test.Equate(t, seq.snapshot(), []string{"press:increase"})
}
