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

package runtime_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/puyodead1/tsw-controller-bridge/config"
	"github.com/puyodead1/tsw-controller-bridge/device"
	"github.com/puyodead1/tsw-controller-bridge/profile"
	"github.com/puyodead1/tsw-controller-bridge/runtime"
	"github.com/puyodead1/tsw-controller-bridge/test"
)

// fakeSource is a no-op device.Source double: these tests exercise the
// orchestrator's profile/prefs wiring, not the device event pump, so none
// of its methods are expected to be called.
type fakeSource struct{}

func (fakeSource) Events() <-chan device.Event               { return nil }
func (fakeSource) VendorID(int32) uint16                      { return 0 }
func (fakeSource) ProductID(int32) uint16                     { return 0 }
func (fakeSource) Name(int32) string                          { return "" }
func (fakeSource) PollAxis(int32, uint8) (int16, error)       { return 0, nil }
func (fakeSource) PollButton(int32, uint8) (bool, error)      { return false, nil }
func (fakeSource) PollHat(int32, uint8) (uint8, error)        { return 0, nil }

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupConfig(t *testing.T) *config.Loader {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "profiles", "p.json"), `{"name": "p", "controls": []}`)
	cfg := config.NewLoader()
	cfg.LoadFromDir(dir)
	return cfg
}

func TestSelectAndClearProfilePersists(t *testing.T) {
	cfg := setupConfig(t)
	prefsPath := filepath.Join(t.TempDir(), "prefs.txt")

	o, err := runtime.NewFromConfig(cfg, fakeSource{}, prefsPath)
	test.ExpectSuccess(t, err)

	test.ExpectSuccess(t, o.SelectProfile("p"))
	name, ok := o.CurrentProfileName()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, name, "p")

	// a fresh orchestrator reading the same prefs file restores the choice
	restored, err := runtime.NewFromConfig(cfg, fakeSource{}, prefsPath)
	test.ExpectSuccess(t, err)
	name, ok = restored.CurrentProfileName()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, name, "p")

	test.ExpectSuccess(t, o.ClearProfile())
	_, ok = o.CurrentProfileName()
	test.ExpectFailure(t, ok)
}

func TestSelectUnknownProfileFails(t *testing.T) {
	cfg := setupConfig(t)
	prefsPath := filepath.Join(t.TempDir(), "prefs.txt")

	o, err := runtime.NewFromConfig(cfg, fakeSource{}, prefsPath)
	test.ExpectSuccess(t, err)

	test.ExpectFailure(t, o.SelectProfile("missing"))
}

func TestSetPreferredControlModePersists(t *testing.T) {
	cfg := setupConfig(t)
	prefsPath := filepath.Join(t.TempDir(), "prefs.txt")

	o, err := runtime.NewFromConfig(cfg, fakeSource{}, prefsPath)
	test.ExpectSuccess(t, err)
	test.ExpectSuccess(t, o.SetPreferredControlMode(profile.ModeSyncControl))

	restored, err := runtime.NewFromConfig(cfg, fakeSource{}, prefsPath)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, restored.CurrentPreferredControlMode(), profile.ModeSyncControl)
}
