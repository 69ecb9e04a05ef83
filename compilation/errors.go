/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package compilation

import (
	"fmt"

	M "go.bundlecore.dev/compilation/module"
)

// ModuleDependencyError wraps a dependency-level error surfaced by
// finish() walking a module's blocks (spec.md §4.11/§7).
type ModuleDependencyError struct {
	Module *M.Module
	Cause  error
	Loc    M.Location
}

func (e *ModuleDependencyError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Module.Identifier, e.Loc.Line, e.Loc.Column, e.Cause)
}
func (e *ModuleDependencyError) Unwrap() error { return e.Cause }

// ModuleDependencyWarning is the non-fatal counterpart to
// ModuleDependencyError.
type ModuleDependencyWarning struct {
	Module *M.Module
	Cause  error
	Loc    M.Location
}

func (e *ModuleDependencyWarning) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Module.Identifier, e.Loc.Line, e.Loc.Column, e.Cause)
}
func (e *ModuleDependencyWarning) Unwrap() error { return e.Cause }

// TransitionError reports an attempt to drive SealLifecycle through an
// illegal state transition (spec.md §4.12's Building/Finished/Sealing/
// Sealed state machine).
type TransitionError struct {
	From, To, Want state
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("compilation: cannot move to %s from %s (expected %s)", e.To, e.From, e.Want)
}
