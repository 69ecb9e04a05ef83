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

// Package compilation is the root of the orchestration: the Compilation
// aggregate (spec.md §3) and SealLifecycle (spec.md §4.12), wiring every
// other package (store, build, resolve, graph, chunk, ids, hash, asset,
// hooks) into the finish/seal/unseal pipeline.
package compilation

import (
	"context"

	"go.bundlecore.dev/compilation/asset"
	"go.bundlecore.dev/compilation/build"
	"go.bundlecore.dev/compilation/chunk"
	"go.bundlecore.dev/compilation/graph"
	"go.bundlecore.dev/compilation/hash"
	"go.bundlecore.dev/compilation/internal/cachestore"
	"go.bundlecore.dev/compilation/internal/logging"
	"go.bundlecore.dev/compilation/internal/semaphore"
	M "go.bundlecore.dev/compilation/module"
	"go.bundlecore.dev/compilation/resolve"
	"go.bundlecore.dev/compilation/store"
)

// Entry is one of Compilation's ordered entries: a dependency plus the
// name it prepares a chunk slot under (spec.md §3's `entries`).
type Entry struct {
	Dependency M.Dependency
	Name       string
}

// PreparedChunk is a reserved slot in spec.md §3's `preparedChunks`:
// Module is nil until DependencyResolver.AddEntry's module chain
// completes, and the slot itself is cleared (not just left nil) if no
// module was produced.
type PreparedChunk struct {
	Name   string
	Module *M.Module
}

// Compilation is spec.md §3's top-level aggregate. The zero value is not
// valid; use New. While the graph is being built, mutations of the
// Compilation's own fields (entries, preparedChunks, errors, warnings,
// state) funnel through the single mailbox goroutine run() drains
// (SPEC_FULL.md §5/EXPANSION's Go realization of "single logical thread
// for graph mutation"); resolve/build worker goroutines mutate modules
// directly. Seal runs on the caller's goroutine and writes modules,
// entrypoints and the hashes directly; hashing is synchronous.
type Compilation struct {
	Options Options
	Hooks   *Hooks

	sem         *semaphore.Semaphore
	store       *store.Store
	coordinator *build.Coordinator
	resolver    *resolve.Resolver
	labeller    *graph.Labeller
	chunks      *chunk.Builder
	hashEngine  *hash.Engine
	assets      *asset.Renderer

	ops chan func()

	state state

	entries        []Entry
	preparedChunks []*PreparedChunk
	entrypoints    map[string]*chunk.Entrypoint
	modules        []*M.Module
	errs           []error
	warnings       []error
	children       []*Compilation

	Hash     string
	FullHash string
}

// New wires every component together from opts and starts the mailbox
// goroutine. parallelism <= 0 falls back to semaphore.DefaultCapacity.
func New(opts Options) *Compilation {
	sem := semaphore.New(opts.Parallelism)

	if opts.ModuleCache == nil {
		opts.ModuleCache = cachestore.NewModuleCache(cachestore.DefaultDir("modules"))
	}
	if opts.AssetCache == nil {
		opts.AssetCache = cachestore.NewDisk(cachestore.DefaultDir("assets"))
	}

	st := store.New(opts.ModuleCache)
	h := newHooks()

	c := &Compilation{
		Options:  opts,
		Hooks:    h,
		sem:      sem,
		store:    st,
		labeller: graph.New(),
		hashEngine: &hash.Engine{
			NewFunc:         opts.HashFunction,
			DigestKind:      opts.HashDigest,
			DigestLength:    opts.HashDigestLength,
			Salt:            opts.HashSalt,
			ModuleTemplates: opts.ModuleTemplates,
		},
		ops:         make(chan func()),
		entrypoints: make(map[string]*chunk.Entrypoint),
	}

	if opts.MainTemplate != nil {
		c.hashEngine.MainTemplate = opts.MainTemplate
	}
	if opts.ChunkTemplate != nil {
		c.hashEngine.ChunkTemplate = opts.ChunkTemplate
	}

	c.assets = asset.New(opts.MainTemplate, opts.ChunkTemplate, opts.AssetCache, &h.Asset)
	c.coordinator = build.New(sem, &h.Build, c, opts.Bail)
	c.chunks = chunk.New(c)
	c.resolver = resolve.New(sem, st, c.coordinator, compilationFactories{c}, c, opts.Compiler, opts.Bail)
	c.resolver.SetEntrySlots(c)
	c.coordinator.SetDependencyProcessor(c.resolver)

	go c.run()
	return c
}

// Close stops the mailbox goroutine. Optional: a process that creates a
// single Compilation and exits needs not call it.
func (c *Compilation) Close() {
	close(c.ops)
}

func (c *Compilation) run() {
	for fn := range c.ops {
		fn()
	}
}

// submit runs fn on the mailbox goroutine and blocks until it completes,
// serializing it against every other Compilation-state mutation.
func (c *Compilation) submit(fn func()) {
	done := make(chan struct{})
	c.ops <- func() {
		fn()
		close(done)
	}
	<-done
}

// RecordError implements build.Recorder/resolve.Recorder.
func (c *Compilation) RecordError(err error) {
	c.submit(func() { c.errs = append(c.errs, err) })
}

// RecordWarning implements build.Recorder/resolve.Recorder/chunk.Recorder.
func (c *Compilation) RecordWarning(warning error) {
	c.submit(func() {
		c.warnings = append(c.warnings, warning)
		logging.Warnf("%s", warning)
	})
}

// Errors returns a snapshot of the recorded fatal errors.
func (c *Compilation) Errors() []error {
	var out []error
	c.submit(func() { out = append(out, c.errs...) })
	return out
}

// Warnings returns a snapshot of the recorded warnings.
func (c *Compilation) Warnings() []error {
	var out []error
	c.submit(func() { out = append(out, c.warnings...) })
	return out
}

// ReserveSlot implements resolve.EntrySlots.
func (c *Compilation) ReserveSlot(name string) int {
	var slot int
	c.submit(func() {
		c.preparedChunks = append(c.preparedChunks, &PreparedChunk{Name: name})
		slot = len(c.preparedChunks) - 1
	})
	return slot
}

// AssignModule implements resolve.EntrySlots.
func (c *Compilation) AssignModule(slot int, m *M.Module) {
	c.submit(func() { c.preparedChunks[slot].Module = m })
}

// RemoveSlot implements resolve.EntrySlots.
func (c *Compilation) RemoveSlot(slot int) {
	c.submit(func() { c.preparedChunks[slot] = nil })
}

// compilationFactories adapts Compilation's static DependencyFactories
// map to resolve.Factories without exposing mutation, since the map is
// populated once in New and never written to again.
type compilationFactories struct{ c *Compilation }

func (f compilationFactories) Factory(tag string) (M.Factory, bool) {
	fac, ok := f.c.Options.DependencyFactories[tag]
	return fac, ok
}

// AddEntry implements spec.md §4.5's addEntry via the wired Resolver,
// additionally recording the entry itself in insertion order. If
// Options.Rebuild is set, its current timestamp snapshot is installed
// into the module store first, so this entry's cache hits (if any) get
// a real Builder.NeedRebuild check; without those timestamps every cached
// entry is treated as stale and rebuilt.
func (c *Compilation) AddEntry(ctx context.Context, dep M.Dependency, name string) error {
	if c.Options.Rebuild != nil {
		files, contexts := c.Options.Rebuild.Snapshot()
		c.store.SetTimestamps(files, contexts)
	}
	c.submit(func() { c.entries = append(c.entries, Entry{Dependency: dep, Name: name}) })
	return c.resolver.AddEntry(ctx, dep, name)
}

// Modules returns the modules slice in its current order: insertion
// order before sortModules runs during Seal, index order after.
func (c *Compilation) Modules() []*M.Module {
	var out []*M.Module
	c.submit(func() { out = append(out, c.modules...) })
	if out == nil {
		return c.store.Modules()
	}
	return out
}

// Chunks returns every chunk still registered with the ChunkGraphBuilder.
func (c *Compilation) Chunks() []*chunk.Chunk {
	return c.chunks.Chunks()
}

// Entrypoints returns the name -> Entrypoint table built during Seal.
func (c *Compilation) Entrypoints() map[string]*chunk.Entrypoint {
	out := make(map[string]*chunk.Entrypoint, len(c.entrypoints))
	c.submit(func() {
		for k, v := range c.entrypoints {
			out[k] = v
		}
	})
	return out
}

// Assets returns the installed asset table AssetRenderer produced.
func (c *Compilation) Assets() map[string]asset.Asset {
	return c.assets.Assets()
}

// Finish implements spec.md §4.12's Building -> Finished transition:
// fire finish-modules, then walk every module's blocks collecting
// dependency-level errors/warnings (spec.md §4.11).
func (c *Compilation) Finish(ctx context.Context) error {
	if err := c.transition(stateBuilding, stateFinished); err != nil {
		return err
	}
	c.Hooks.FinishModules.Call(c)

	for _, m := range c.store.Modules() {
		c.collectDependencyDiagnostics(m, &m.Block)
	}
	return nil
}

func (c *Compilation) collectDependencyDiagnostics(m *M.Module, b *M.Block) {
	for _, d := range b.AllDependencies() {
		for _, e := range d.GetErrors() {
			c.RecordError(&ModuleDependencyError{Module: m, Cause: e, Loc: d.Loc()})
		}
		for _, w := range d.GetWarnings() {
			c.RecordWarning(&ModuleDependencyWarning{Module: m, Cause: w, Loc: d.Loc()})
		}
	}
	for _, nested := range b.Blocks {
		c.collectDependencyDiagnostics(m, nested)
	}
}

// removeReasonsOfDependencyBlock implements spec.md §4.11: walk block's
// variables/dependencies/blocks, removing origin's reason from each
// dependency target, patching chunk membership for any target left with
// no reasons at all.
func (c *Compilation) removeReasonsOfDependencyBlock(origin *M.Module, block *M.Block) {
	for _, v := range block.Variables {
		c.removeDependencyReasons(origin, v.Dependencies)
	}
	c.removeDependencyReasons(origin, block.Dependencies)
	for _, nested := range block.Blocks {
		c.removeReasonsOfDependencyBlock(origin, nested)
	}
}

func (c *Compilation) removeDependencyReasons(origin *M.Module, deps []M.Dependency) {
	for _, d := range deps {
		target := d.Module()
		if target == nil {
			continue
		}
		if target.RemoveReason(origin, d) && !target.HasReasons() {
			c.patchChunksAfterReasonRemoval(target)
		}
	}
}

// patchChunksAfterReasonRemoval implements spec.md §4.11's
// patchChunksAfterReasonRemoval: a module with zero reasons left is
// removed from every chunk it belonged to.
func (c *Compilation) patchChunksAfterReasonRemoval(m *M.Module) {
	var memberChunks []*chunk.Chunk
	m.ForEachChunk(func(cm M.ChunkMember) {
		if ch, ok := cm.(*chunk.Chunk); ok {
			memberChunks = append(memberChunks, ch)
		}
	})
	for _, ch := range memberChunks {
		ch.RemoveModule(m)
		m.RemoveChunk(ch)
	}
}
