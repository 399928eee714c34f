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

package directcontrol_test

import (
	"testing"

	"github.com/puyodead1/tsw-controller-bridge/directcontrol"
	"github.com/puyodead1/tsw-controller-bridge/test"
)

func TestCommandStringNoFlags(t *testing.T) {
	c := directcontrol.Command{Controls: "throttle", InputValue: 0.5}
	test.ExpectEquality(t, c.String(), "throttle,0.5,")
}

func TestCommandStringHold(t *testing.T) {
	c := directcontrol.Command{Controls: "throttle", InputValue: 0.5, Hold: true}
	test.ExpectEquality(t, c.String(), "throttle,0.5,hold")
}

func TestCommandStringBothFlags(t *testing.T) {
	c := directcontrol.Command{Controls: "throttle", InputValue: -1, Hold: true, Relative: true}
	test.ExpectEquality(t, c.String(), "throttle,-1,hold|relative")
}
