/*
Copyright © 2026 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlay

import "fmt"

// Kind classifies the ways an overlay can fail.
type Kind int

// Failure kinds. NotPolygonal, InvalidCRS, EmptySelection and
// EngineFailure abort a run. TransformFailure and DegenerateGeometry
// only ever describe a single feature or candidate, which is skipped.
const (
	NotPolygonal Kind = iota + 1
	InvalidCRS
	EmptySelection
	TransformFailure
	DegenerateGeometry
	EngineFailure
)

func (k Kind) String() string {
	switch k {
	case NotPolygonal:
		return "NotPolygonal"
	case InvalidCRS:
		return "InvalidCRS"
	case EmptySelection:
		return "EmptySelection"
	case TransformFailure:
		return "TransformFailure"
	case DegenerateGeometry:
		return "DegenerateGeometry"
	case EngineFailure:
		return "EngineFailure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error type returned by the overlay engine.
type Error struct {
	Kind Kind

	// Set names the feature set the error refers to ("base" or
	// "overlay"), if any.
	Set string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := "overlay: " + e.Kind.String()
	if e.Set != "" {
		msg += " (" + e.Set + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, ErrEmptySelection) matches regardless of Set and Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel values for use with errors.Is.
var (
	ErrNotPolygonal       = &Error{Kind: NotPolygonal}
	ErrInvalidCRS         = &Error{Kind: InvalidCRS}
	ErrEmptySelection     = &Error{Kind: EmptySelection}
	ErrTransformFailure   = &Error{Kind: TransformFailure}
	ErrDegenerateGeometry = &Error{Kind: DegenerateGeometry}
	ErrEngineFailure      = &Error{Kind: EngineFailure}
)

func newError(k Kind, set string, err error) *Error {
	return &Error{Kind: k, Set: set, Err: err}
}
