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

// Package build implements BuildCoordinator: deduplicated, concurrent
// buildModule/rebuildModule with waiter rendezvous (spec.md §4.4). The
// in-flight/duplicate-join behavior is built directly on
// golang.org/x/sync/singleflight: a concurrent BuildModule call for a
// module identifier already in flight joins the same singleflight.Group
// call and shares its result instead of re-running Build, which is
// exactly the "waiter list" spec.md describes, without hand-rolling the
// rendezvous ourselves.
package build

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"go.bundlecore.dev/compilation/hooks"
	"go.bundlecore.dev/compilation/internal/semaphore"
	M "go.bundlecore.dev/compilation/module"
)

// BuildError wraps a module.Build failure with the origin/dependencies
// the spec requires every error to be stamped with (spec.md §4.4,
// §7's ModuleBuildError).
type BuildError struct {
	Module       *M.Module
	Origin       *M.Module
	Dependencies []M.Dependency
	Cause        error
}

func (e *BuildError) Error() string {
	return "module build failed for " + e.Module.Identifier + ": " + e.Cause.Error()
}

func (e *BuildError) Unwrap() error { return e.Cause }

// BuildWarning is the non-fatal counterpart to BuildError, also used to
// reclassify an optional dependency's build errors as warnings.
type BuildWarning struct {
	Module       *M.Module
	Origin       *M.Module
	Dependencies []M.Dependency
	Cause        error
}

func (e *BuildWarning) Error() string {
	return "module build warning for " + e.Module.Identifier + ": " + e.Cause.Error()
}

func (e *BuildWarning) Unwrap() error { return e.Cause }

// Recorder is how the Coordinator reports non-fatal errors/warnings into
// the owning Compilation, without importing the compilation package
// (which imports build).
type Recorder interface {
	RecordError(err error)
	RecordWarning(warning error)
}

// DependencyProcessor is the subset of DependencyResolver RebuildModule
// needs. It is injected after construction (see SetDependencyProcessor)
// because DependencyResolver itself depends on Coordinator to build newly
// discovered modules — a genuine mutual dependency resolved the same way
// a DI container breaks a constructor cycle.
type DependencyProcessor interface {
	ProcessModuleDependencies(ctx context.Context, m *M.Module) error
}

// Hooks are the named hooks BuildCoordinator fires.
type Hooks struct {
	BuildModule   hooks.SyncHook[*M.Module]
	SucceedModule hooks.SyncHook[*M.Module]
	FailedModule  hooks.SyncHook[*FailedModuleEvent]
}

// FailedModuleEvent is passed to the failed-module hook.
type FailedModuleEvent struct {
	Module *M.Module
	Err    error
}

// Coordinator is BuildCoordinator.
type Coordinator struct {
	sem    *semaphore.Semaphore
	hooks  *Hooks
	record Recorder
	bail   bool

	building   singleflight.Group
	rebuilding singleflight.Group

	mu       sync.Mutex
	inFlight map[string]struct{}

	deps DependencyProcessor
}

// New constructs a Coordinator. sem gates every Build call (shared with
// DependencyResolver's factory calls, since both compete for the same
// parallelism budget per spec.md §5).
func New(sem *semaphore.Semaphore, hooks *Hooks, record Recorder, bail bool) *Coordinator {
	return &Coordinator{
		sem:      sem,
		hooks:    hooks,
		record:   record,
		bail:     bail,
		inFlight: make(map[string]struct{}),
	}
}

// SetDependencyProcessor wires the DependencyResolver used by
// RebuildModule. Must be called before any RebuildModule call.
func (c *Coordinator) SetDependencyProcessor(p DependencyProcessor) {
	c.deps = p
}

// BuildModule implements spec.md §4.4's buildModule. It blocks until the
// build (this call's own, or one it joined) completes.
func (c *Coordinator) BuildModule(ctx context.Context, m *M.Module, optional bool, origin *M.Module, dependencies []M.Dependency) error {
	c.hooks.BuildModule.Call(m)

	c.markInFlight(m.Identifier)
	defer c.clearInFlight(m.Identifier)

	_, err, _ := c.building.Do(m.Identifier, func() (any, error) {
		return nil, c.runBuild(ctx, m, optional, origin, dependencies)
	})
	return err
}

// RebuildModule implements spec.md §4.4's rebuildModule: snapshot the
// module's current graph edges, rebuild (non-optional), reprocess its
// dependencies, then remove reasons sourced from the stale snapshot.
func (c *Coordinator) RebuildModule(ctx context.Context, m *M.Module) error {
	oldDeps := append([]M.Dependency(nil), m.Dependencies...)
	oldVars := append([]M.Variable(nil), m.Variables...)
	oldBlocks := append([]*M.Block(nil), m.Blocks...)

	c.markInFlight(m.Identifier)
	_, err, _ := c.rebuilding.Do(m.Identifier, func() (any, error) {
		return nil, c.runBuild(ctx, m, false, nil, nil)
	})
	c.clearInFlight(m.Identifier)
	if err != nil {
		return err
	}

	if c.deps != nil {
		if err := c.deps.ProcessModuleDependencies(ctx, m); err != nil {
			return err
		}
	}

	removeStaleReasons(m, oldDeps, oldVars, oldBlocks)
	return nil
}

// removeStaleReasons removes m's reason from every module the *old*
// snapshot referenced, so modules only reachable through edges the
// rebuild no longer produces lose their reason for inclusion.
func removeStaleReasons(origin *M.Module, deps []M.Dependency, vars []M.Variable, blocks []*M.Block) {
	all := append([]M.Dependency(nil), deps...)
	for _, v := range vars {
		all = append(all, v.Dependencies...)
	}
	for _, d := range all {
		if target := d.Module(); target != nil {
			target.RemoveReason(origin, d)
		}
	}
	for _, b := range blocks {
		removeStaleReasons(origin, b.Dependencies, b.Variables, b.Blocks)
	}
}

// WaitForBuildingFinished implements spec.md §4.4. If a build is
// in-flight, the caller joins it via the same singleflight key, with a
// no-op function that never runs (singleflight only ever invokes fn for
// the call that started the group). If not in flight, it returns
// immediately: every call site in DependencyResolver reaches this only
// right after a cache-hit or duplicate redirect, where the module is by
// construction either already built or already tracked as building — so
// "not in flight" can only mean "already done," never "never started."
func (c *Coordinator) WaitForBuildingFinished(ctx context.Context, m *M.Module) error {
	c.mu.Lock()
	_, tracked := c.inFlight[m.Identifier]
	c.mu.Unlock()
	if !tracked {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err, _ := c.building.Do(m.Identifier, func() (any, error) { return nil, nil })
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) markInFlight(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[identifier] = struct{}{}
}

func (c *Coordinator) clearInFlight(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, identifier)
}

func (c *Coordinator) runBuild(ctx context.Context, m *M.Module, optional bool, origin *M.Module, dependencies []M.Dependency) error {
	release, err := c.sem.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if m.Builder != nil {
		err = m.Builder.Build(ctx, M.BuildOptions{Bail: c.bail}, m)
	}

	for _, buildErr := range m.Errors {
		if optional {
			c.record.RecordWarning(&BuildWarning{Module: m, Origin: origin, Dependencies: dependencies, Cause: buildErr})
		} else {
			c.record.RecordError(&BuildError{Module: m, Origin: origin, Dependencies: dependencies, Cause: buildErr})
		}
	}
	for _, warnErr := range m.Warnings {
		c.record.RecordWarning(&BuildWarning{Module: m, Origin: origin, Dependencies: dependencies, Cause: warnErr})
	}

	sort.Slice(m.Dependencies, func(i, j int) bool {
		return M.Compare(m.Dependencies[i], m.Dependencies[j]) < 0
	})

	if err != nil {
		c.hooks.FailedModule.Call(&FailedModuleEvent{Module: m, Err: err})
	} else {
		c.hooks.SucceedModule.Call(m)
	}

	return err
}
