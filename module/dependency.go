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

package module

import "cmp"

// Location is a source position a Dependency points back to, used for
// diagnostics (ModuleDependencyError/Warning carry one).
type Location struct {
	Line   int
	Column int
}

// Reference is what Dependency.GetReference returns: the module a
// dependency ultimately points at, for chunk-graph purposes. A
// reference-only edge (one whose Module differs from the dependency's own
// resolved Module) is how the spec's "may carry a module pointer distinct
// from module for reference-only edges" is modelled.
type Reference struct {
	Module *Module
}

// Dependency is a typed reference from a Module or Block to another
// Module. Concrete dependency subtypes (ESM static import, dynamic
// import, CSS @import, ...) are out of scope for the compilation core —
// spec.md §1 hands them to external collaborators — so this is an
// interface, not a struct, and the core only ever consumes it through
// these methods.
type Dependency interface {
	// Module is the resolved target, nil until resolution completes.
	Module() *Module
	// SetModule attaches the resolved target. Called by the
	// DependencyResolver with the instance of record, which is the
	// deduplicated or cache-hit instance when the store redirected the
	// factory's module (see store.AddResult).
	SetModule(m *Module)

	// GetReference returns the module-graph edge this dependency
	// contributes, or nil if it should not be materialised (e.g. a type-only
	// import with no runtime footprint).
	GetReference() *Reference

	// GetErrors/GetWarnings surface dependency-level diagnostics collected
	// by finish() into ModuleDependencyError/Warning.
	GetErrors() []error
	GetWarnings() []error

	// IsEqualResource reports whether two dependencies in the same block
	// would resolve to the same underlying resource, for grouping in
	// processModuleDependencies.
	IsEqualResource(other Dependency) bool

	Optional() bool
	Weak() bool
	Loc() Location

	// Tag is the constructor-tag discriminant used to look up a
	// ModuleFactory in Compilation.DependencyFactories.
	Tag() string

	// Order is this dependency's creation position within its containing
	// block. It is the tie-breaker in Compare: two dependencies can
	// otherwise share a Tag and a Loc (e.g. two identical re-exports), and
	// the spec requires a *total* order, not just a partial one.
	Order() int
}

// Compare implements the total order referenced throughout the spec as
// Dependency.compare: module.dependencies is sorted by it once a build
// completes, so that everything downstream (hashing, rendering) observes
// a stable dependency order regardless of the order the factory or
// parser happened to discover them in.
func Compare(a, b Dependency) int {
	if c := cmp.Compare(a.Tag(), b.Tag()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Loc().Line, b.Loc().Line); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Loc().Column, b.Loc().Column); c != 0 {
		return c
	}
	return cmp.Compare(a.Order(), b.Order())
}

// Reason is a back-edge from a module to one of the (origin, dependency)
// pairs that caused it to be included. Reason is comparable (both fields
// are pointer/interface values backed by pointers) so it can live in an
// workqueue.OrderedSet.
type Reason struct {
	Origin *Module
	Dep    Dependency
}
