// This file is part of tsw-controller-bridge.
//
// tsw-controller-bridge is free software: you can redistribute it and/or
// modify it under the terms of the GNU General Public License as published
// by the Free Software Foundation, either version 3 of the License, or (at
// your option) any later version.
//
// tsw-controller-bridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General
// Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with tsw-controller-bridge.  If not, see <https://www.gnu.org/licenses/>.

// Package paths resolves filesystem locations used by the bridge: the
// default configuration root and paths joined beneath it.
package paths

import "path/filepath"

// baseDir is the name of the directory under which the bridge keeps its
// configuration by default. It is a relative path, so it resolves against
// the process's working directory.
const baseDir = ".tsw-bridge"

// ResourcePath joins one or more path segments onto the bridge's base
// resource directory. Empty segments are ignored so that callers can pass
// an optional subdirectory without special-casing it.
func ResourcePath(segments ...string) (string, error) {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, baseDir)
	for _, s := range segments {
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return filepath.Join(parts...), nil
}
