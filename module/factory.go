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

import "context"

// ContextInfo carries the issuer and owning compiler identity a factory
// needs to make context-sensitive resolution decisions (e.g. resolving
// relative to the issuer's directory).
type ContextInfo struct {
	Issuer   *Module
	Compiler string
}

// CreateParams is the argument to Factory.Create, mirroring spec.md
// §4.5's addModuleDependencies call:
// factory.create({contextInfo:{issuer, compiler}, resolveOptions,
// context, dependencies: group}).
type CreateParams struct {
	ContextInfo    ContextInfo
	ResolveOptions any
	Context        string
	Dependencies   []Dependency
}

// Factory is the pluggable module-resolution strategy the
// DependencyResolver drives — concrete resolution/parsing logic is out of
// scope for the compilation core (spec.md §1) and supplied by the host.
type Factory interface {
	// Create resolves a group of equal-resource dependencies to a single
	// Module, or returns (nil, nil) to silently drop the dependency (the
	// "null result" case in spec.md §4.5 step 5).
	Create(ctx context.Context, params CreateParams) (*Module, error)
}
