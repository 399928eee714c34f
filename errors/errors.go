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

package errors

import (
	"fmt"
	"strings"
)

// Values holds the arguments passed alongside a curated message in a call
// to Errorf.
type Values []interface{}

// curated errors let a caller raise one of a fixed set of predefined error
// messages (see messages.go) without worrying about how that message gets
// folded into whatever error it wraps.
type curated struct {
	message string
	values  Values
}

// Errorf builds a curated error from one of the predefined message
// constants and the values to format it with.
func Errorf(message string, values ...interface{}) error {
	return curated{
		message: message,
		values:  values,
	}
}

// Error returns the normalised error message. Normalisation means that
// adjacent, identical leading segments of the causal chain are collapsed
// into one.
//
// Implements the go language error interface.
func (er curated) Error() string {
	s := fmt.Errorf(er.message, er.values...).Error()

	// de-duplicate error message parts
	p := strings.SplitN(s, ": ", 3)
	if len(p) > 1 && p[0] == p[1] {
		return strings.Join(p[1:], ": ")
	}

	return strings.Join(p, ": ")
}

// Head returns the leading part of the message.
//
// Similar to Is() but returns the string rather than a boolean. Useful for
// switches.
//
// If err is a plain error then the return of Error() is returned.
func Head(err error) string {
	if er, ok := err.(curated); ok {
		return er.message
	}
	return err.Error()
}

// IsAny reports whether err is one of this package's curated errors.
func IsAny(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(curated); ok {
		return true
	}
	return false
}

// Is reports whether err is a curated error with the given message head.
func Is(err error, head string) bool {
	if err == nil {
		return false
	}

	if er, ok := err.(curated); ok {
		return er.message == head
	}
	return false
}

// Has reports whether msg appears anywhere in err's causal chain, including
// nested curated errors passed as one of its values.
func Has(err error, msg string) bool {
	if err == nil {
		return false
	}

	if !IsAny(err) {
		return false
	}

	if Is(err, msg) {
		return true
	}

	for i := range err.(curated).values {
		if e, ok := err.(curated).values[i].(curated); ok {
			if Has(e, msg) {
				return true
			}
		}
	}

	return false
}
