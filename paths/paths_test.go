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

package paths_test

import (
	"testing"

	"github.com/puyodead1/tsw-controller-bridge/paths"
	"github.com/puyodead1/tsw-controller-bridge/test"
)

func TestPaths(t *testing.T) {
	pth, err := paths.ResourcePath("foo/bar", "baz")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".tsw-bridge/foo/bar/baz")

	pth, err = paths.ResourcePath("foo/bar", "")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".tsw-bridge/foo/bar")

	pth, err = paths.ResourcePath("", "baz")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".tsw-bridge/baz")

	pth, err = paths.ResourcePath("", "")
	test.Equate(t, err, nil)
	test.Equate(t, pth, ".tsw-bridge")
}
