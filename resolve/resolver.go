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

// Package resolve implements DependencyResolver (spec.md §4.5):
// processModuleDependencies, addModuleDependencies, the single-dependency
// addModuleChain variant, and addEntry. Each group's factory call, store
// insertion and recursive descent is one unit of work submitted to a
// golang.org/x/sync/errgroup.Group with no SetLimit — the actual
// parallelism bound is the Semaphore acquired inside each unit, matching
// §5's requirement that the Semaphore, not goroutine count, is the
// parallelism budget. bail=true rides on errgroup's first-error-cancels
// semantics. Grounded in the teacher's generate/parallel.go worker-pool
// fan-out, generalized to a semaphore-gated errgroup because the spec's
// model — many independently-gated groups — fits that shape better than a
// fixed worker pool.
package resolve

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"go.bundlecore.dev/compilation/build"
	"go.bundlecore.dev/compilation/internal/semaphore"
	M "go.bundlecore.dev/compilation/module"
	"go.bundlecore.dev/compilation/store"
)

// EntryModuleNotFoundError is fatal whenever bail is set; otherwise it is
// recorded and the compilation continues without that entry (spec.md
// §7's EntryModuleNotFound).
type EntryModuleNotFoundError struct {
	Dependency M.Dependency
	Cause      error
}

func (e *EntryModuleNotFoundError) Error() string {
	return fmt.Sprintf("entry module not found: %v", e.Cause)
}
func (e *EntryModuleNotFoundError) Unwrap() error { return e.Cause }

// ModuleNotFoundError is a non-entry dependency factory failure, recorded
// as an error unless every dependency in the group is optional (spec.md
// §7's ModuleNotFound).
type ModuleNotFoundError struct {
	Origin       *M.Module
	Dependencies []M.Dependency
	Cause        error
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module not found: %v", e.Cause)
}
func (e *ModuleNotFoundError) Unwrap() error { return e.Cause }

// ModuleNotFoundWarning is ModuleNotFoundError's non-fatal counterpart,
// used when every dependency in the failing group was optional.
type ModuleNotFoundWarning struct {
	Origin       *M.Module
	Dependencies []M.Dependency
	Cause        error
}

func (e *ModuleNotFoundWarning) Error() string {
	return fmt.Sprintf("module not found (optional): %v", e.Cause)
}
func (e *ModuleNotFoundWarning) Unwrap() error { return e.Cause }

// Factories resolves a dependency's constructor-tag to the ModuleFactory
// that should handle it. Backed by Compilation.DependencyFactories.
type Factories interface {
	Factory(tag string) (M.Factory, bool)
}

// EntrySlots is the `preparedChunks` slice addEntry reserves a slot in.
// It is owned by the Compilation aggregate, not by DependencyResolver, so
// it is injected rather than imported directly (compilation already
// imports resolve; the reverse would cycle).
type EntrySlots interface {
	ReserveSlot(name string) int
	AssignModule(slot int, m *M.Module)
	RemoveSlot(slot int)
}

// Recorder is how the Resolver reports non-fatal errors/warnings, mirroring
// build.Recorder without importing the compilation package.
type Recorder interface {
	RecordError(err error)
	RecordWarning(warning error)
}

// Resolver is DependencyResolver.
type Resolver struct {
	sem         *semaphore.Semaphore
	store       *store.Store
	coordinator *build.Coordinator
	factories   Factories
	record      Recorder
	compiler    string
	bail        bool

	entrySlots EntrySlots
}

// New constructs a Resolver. compiler is the identifier passed through to
// every factory call's ContextInfo.Compiler.
func New(sem *semaphore.Semaphore, st *store.Store, coordinator *build.Coordinator, factories Factories, record Recorder, compiler string, bail bool) *Resolver {
	return &Resolver{
		sem:         sem,
		store:       st,
		coordinator: coordinator,
		factories:   factories,
		record:      record,
		compiler:    compiler,
		bail:        bail,
	}
}

// SetEntrySlots wires the preparedChunks slot table AddEntry reserves
// into. Must be called before any AddEntry call.
func (r *Resolver) SetEntrySlots(slots EntrySlots) {
	r.entrySlots = slots
}

// ProcessModuleDependencies implements spec.md §4.5: group m's transitive
// dependencies by IsEqualResource, preserving first-seen order, then
// delegate to AddModuleDependencies with recursive=true. It also
// satisfies build.DependencyProcessor, closing the
// build<->resolve mutual dependency via interface injection
// (Coordinator.SetDependencyProcessor).
func (r *Resolver) ProcessModuleDependencies(ctx context.Context, m *M.Module) error {
	groups := groupByEqualResource(m.AllDependenciesDeep())
	return r.AddModuleDependencies(ctx, m, groups, r.bail, "", true)
}

// AddModuleDependencies implements spec.md §4.5's addModuleDependencies:
// each group is resolved in parallel under the Semaphore via an
// errgroup.Group. bail=true propagates the first group's error and
// cancels the rest; bail=false records the error/warning and lets
// unaffected groups continue.
func (r *Resolver) AddModuleDependencies(ctx context.Context, origin *M.Module, groups [][]M.Dependency, bail bool, cacheGroup string, recursive bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			return r.addGroup(gctx, origin, group, bail, cacheGroup, recursive)
		})
	}
	return g.Wait()
}

func (r *Resolver) addGroup(ctx context.Context, origin *M.Module, group []M.Dependency, bail bool, cacheGroup string, recursive bool) error {
	tag := group[0].Tag()
	factory, ok := r.factories.Factory(tag)
	if !ok {
		// spec.md's FactoryLookupError: always fatal regardless of bail,
		// unlike the rest of this non-entry path's ModuleNotFoundError
		// uses, which are bail-conditional.
		err := &ModuleNotFoundError{Origin: origin, Dependencies: group, Cause: fmt.Errorf("no factory registered for tag %q", tag)}
		r.record.RecordError(err)
		return err
	}

	release, err := r.sem.Acquire(ctx)
	if err != nil {
		return err
	}

	allOptional := allDependenciesOptional(group)

	m, createErr := factory.Create(ctx, M.CreateParams{
		ContextInfo:    M.ContextInfo{Issuer: origin, Compiler: r.compiler},
		ResolveOptions: origin.ResolveOptions,
		Context:        origin.Context,
		Dependencies:   group,
	})
	if createErr != nil {
		release()
		if allOptional {
			r.record.RecordWarning(&ModuleNotFoundWarning{Origin: origin, Dependencies: group, Cause: createErr})
		} else {
			r.record.RecordError(&ModuleNotFoundError{Origin: origin, Dependencies: group, Cause: createErr})
		}
		if bail {
			return createErr
		}
		return nil
	}
	if m == nil {
		release() // null result: dependency silently dropped
		return nil
	}

	res := r.store.AddModule(m, cacheGroup)
	switch res.Outcome {
	case store.Duplicate:
		m = res.Module
		attachGroup(m, origin, group)
		release()
		return r.coordinator.WaitForBuildingFinished(ctx, m)

	case store.CacheHit:
		m = res.Module
		m.Issuer = origin
		attachGroup(m, origin, group)
		release()
		if recursive {
			return r.ProcessModuleDependencies(ctx, m)
		}
		return nil

	default: // Inserted
		m.Issuer = origin
		attachGroup(m, origin, group)
		release()
		if err := r.coordinator.BuildModule(ctx, m, allOptional, origin, group); err != nil {
			if bail {
				return err
			}
			return nil
		}
		if recursive {
			return r.ProcessModuleDependencies(ctx, m)
		}
		return nil
	}
}

// addModuleChain implements spec.md §4.5's _addModuleChain: the
// single-dependency variant used for entries and prefetch.
func (r *Resolver) addModuleChain(ctx context.Context, dep M.Dependency, origin *M.Module, onModule func(*M.Module)) error {
	tag := dep.Tag()
	factory, ok := r.factories.Factory(tag)
	if !ok {
		err := &EntryModuleNotFoundError{Dependency: dep, Cause: fmt.Errorf("no factory registered for tag %q", tag)}
		r.record.RecordError(err)
		if r.bail {
			return err
		}
		return nil
	}

	release, err := r.sem.Acquire(ctx)
	if err != nil {
		return err
	}

	m, createErr := factory.Create(ctx, M.CreateParams{
		ContextInfo:  M.ContextInfo{Issuer: origin, Compiler: r.compiler},
		Dependencies: []M.Dependency{dep},
	})
	if createErr != nil {
		release()
		wrapped := &EntryModuleNotFoundError{Dependency: dep, Cause: createErr}
		r.record.RecordError(wrapped)
		if r.bail {
			return wrapped
		}
		return nil
	}
	if m == nil {
		release()
		return nil
	}

	res := r.store.AddModule(m, "")
	switch res.Outcome {
	case store.Duplicate:
		m = res.Module
		attachSingle(m, origin, dep)
		release()
		if err := r.coordinator.WaitForBuildingFinished(ctx, m); err != nil {
			return err
		}

	case store.CacheHit:
		m = res.Module
		m.Issuer = origin
		attachSingle(m, origin, dep)
		release()

	default: // Inserted
		m.Issuer = origin
		attachSingle(m, origin, dep)
		release()
		if err := r.coordinator.BuildModule(ctx, m, dep.Optional(), origin, []M.Dependency{dep}); err != nil {
			return err
		}
	}

	onModule(m)
	return r.ProcessModuleDependencies(ctx, m)
}

// AddEntry implements spec.md §4.5's addEntry: reserve a preparedChunks
// slot, run the module chain, and assign or remove the slot depending on
// whether a module was produced.
func (r *Resolver) AddEntry(ctx context.Context, entry M.Dependency, name string) error {
	slot := r.entrySlots.ReserveSlot(name)

	var produced *M.Module
	err := r.addModuleChain(ctx, entry, nil, func(m *M.Module) { produced = m })

	if produced != nil {
		r.entrySlots.AssignModule(slot, produced)
	} else {
		r.entrySlots.RemoveSlot(slot)
	}
	return err
}

func attachGroup(m *M.Module, origin *M.Module, group []M.Dependency) {
	for _, dep := range group {
		attachSingle(m, origin, dep)
	}
}

func attachSingle(m *M.Module, origin *M.Module, dep M.Dependency) {
	dep.SetModule(m)
	m.AddReason(origin, dep)
}

func allDependenciesOptional(group []M.Dependency) bool {
	for _, d := range group {
		if !d.Optional() {
			return false
		}
	}
	return true
}

// groupByEqualResource buckets deps by IsEqualResource, preserving the
// order each bucket was first seen in (spec.md §4.5).
func groupByEqualResource(deps []M.Dependency) [][]M.Dependency {
	var groups [][]M.Dependency
	for _, d := range deps {
		placed := false
		for i, g := range groups {
			if g[0].IsEqualResource(d) {
				groups[i] = append(groups[i], d)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []M.Dependency{d})
		}
	}
	return groups
}
