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

package sequencer

import "github.com/go-vgo/robotgo"

// RobotgoInjector is the Injector implementation used in production,
// backed by robotgo's cross-platform synthetic keyboard support.
type RobotgoInjector struct{}

func (RobotgoInjector) Press(key string) error {
	return robotgo.KeyToggle(key, "down")
}

func (RobotgoInjector) Release(key string) error {
	return robotgo.KeyToggle(key, "up")
}
