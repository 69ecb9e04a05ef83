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
package compilation_test

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"errors"
	gohash "hash"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	comp "go.bundlecore.dev/compilation/compilation"
	"go.bundlecore.dev/compilation/internal/cachestore"
	"go.bundlecore.dev/compilation/internal/rebuild"
	M "go.bundlecore.dev/compilation/module"
	"go.bundlecore.dev/compilation/resolve"
)

func init() { gob.Register(stubBuilder{}) }

type stubBuilder struct{}

func (stubBuilder) Build(context.Context, M.BuildOptions, *M.Module) error { return nil }
func (stubBuilder) Unbuild(*M.Module)                                     {}
func (stubBuilder) NeedRebuild(*M.Module, map[string]time.Time, map[string]time.Time) bool {
	return false
}
func (stubBuilder) UpdateHash(m *M.Module, h gohash.Hash) { h.Write([]byte(m.Identifier)) }
func (stubBuilder) NameForCondition(m *M.Module) string   { return m.Identifier }

// stubDependency is a minimal module.Dependency, grounded on
// resolve_test.go's testDependency.
type stubDependency struct {
	tag      string
	resource string
	target   *M.Module
	optional bool
}

func (d *stubDependency) Module() *M.Module     { return d.target }
func (d *stubDependency) SetModule(m *M.Module) { d.target = m }
func (d *stubDependency) GetReference() *M.Reference {
	if d.target == nil {
		return nil
	}
	return &M.Reference{Module: d.target}
}
func (d *stubDependency) GetErrors() []error   { return nil }
func (d *stubDependency) GetWarnings() []error { return nil }
func (d *stubDependency) IsEqualResource(other M.Dependency) bool {
	o, ok := other.(*stubDependency)
	return ok && o.resource == d.resource
}
func (d *stubDependency) Optional() bool  { return d.optional }
func (d *stubDependency) Weak() bool      { return false }
func (d *stubDependency) Loc() M.Location { return M.Location{} }
func (d *stubDependency) Tag() string     { return d.tag }
func (d *stubDependency) Order() int      { return 0 }

func dep(resource string) *stubDependency { return &stubDependency{tag: "esm", resource: resource} }

func optionalDep(resource string) *stubDependency {
	return &stubDependency{tag: "esm", resource: resource, optional: true}
}

// stubFactory resolves a dependency's resource to a pre-built module, or
// to a registered error (modelling an unresolvable import).
type stubFactory struct {
	modules map[string]*M.Module
	errs    map[string]error
}

func (f *stubFactory) Create(_ context.Context, params M.CreateParams) (*M.Module, error) {
	resource := params.Dependencies[0].(*stubDependency).resource
	if err, ok := f.errs[resource]; ok {
		return nil, err
	}
	return f.modules[resource], nil
}

func newCompilation(t *testing.T, fac *stubFactory, bail bool) *comp.Compilation {
	t.Helper()
	c := comp.New(comp.Options{
		HashFunction:        sha256.New,
		Parallelism:         4,
		Bail:                bail,
		Compiler:            "test-compiler",
		DependencyFactories: map[string]M.Factory{"esm": fac},
		// Root the default disk caches under a scratch directory instead
		// of the real XDG cache home, the way workspace/httpcache_test.go
		// roots its own cache under t.TempDir().
		ModuleCache: cachestore.NewModuleCache(t.TempDir()),
		AssetCache:  cachestore.NewDisk(t.TempDir()),
	})
	t.Cleanup(c.Close)
	return c
}

func TestCompilation_SingleModuleEntry_SealsWithOneChunk(t *testing.T) {
	ctx := context.Background()
	a := M.New("a.js", stubBuilder{})
	fac := &stubFactory{modules: map[string]*M.Module{"a": a}}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("a"), "main"))
	require.NoError(t, c.Finish(ctx))
	require.NoError(t, c.Seal(ctx))

	assert.Len(t, c.Modules(), 1)
	assert.Len(t, c.Chunks(), 1)
	assert.NotEmpty(t, c.Hash)
	assert.NotEmpty(t, c.FullHash)
}

func TestCompilation_LinearChain_OrdersModulesByIndex(t *testing.T) {
	ctx := context.Background()
	a := M.New("a.js", stubBuilder{})
	b := M.New("b.js", stubBuilder{})
	cMod := M.New("c.js", stubBuilder{})
	a.Dependencies = []M.Dependency{dep("b")}
	b.Dependencies = []M.Dependency{dep("c")}

	fac := &stubFactory{modules: map[string]*M.Module{"a": a, "b": b, "c": cMod}}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("a"), "main"))
	require.NoError(t, c.Finish(ctx))
	require.NoError(t, c.Seal(ctx))

	mods := c.Modules()
	require.Len(t, mods, 3)
	assert.Equal(t, []string{"a.js", "b.js", "c.js"}, []string{mods[0].Identifier, mods[1].Identifier, mods[2].Identifier})
	assert.Len(t, c.Chunks(), 1, "a synchronous chain stays in one chunk")
}

func TestCompilation_DiamondDependency_SharesSingleModuleInstance(t *testing.T) {
	ctx := context.Background()
	a := M.New("a.js", stubBuilder{})
	b := M.New("b.js", stubBuilder{})
	cMod := M.New("c.js", stubBuilder{})
	d := M.New("d.js", stubBuilder{})
	a.Dependencies = []M.Dependency{dep("b"), dep("c")}
	b.Dependencies = []M.Dependency{dep("d")}
	cMod.Dependencies = []M.Dependency{dep("d")}

	fac := &stubFactory{modules: map[string]*M.Module{"a": a, "b": b, "c": cMod, "d": d}}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("a"), "main"))
	require.NoError(t, c.Finish(ctx))
	require.NoError(t, c.Seal(ctx))

	mods := c.Modules()
	require.Len(t, mods, 4, "d must appear exactly once despite two reasons reaching it")
	assert.Len(t, c.Chunks(), 1)
}

func TestCompilation_AsyncSplit_CreatesSeparateNonRuntimeChunk(t *testing.T) {
	ctx := context.Background()
	lazy := M.New("lazy.js", stubBuilder{})
	entry := M.New("entry.js", stubBuilder{})
	toLazy := dep("lazy")
	entry.Blocks = []*M.Block{{
		ChunkName:   "lazy",
		EntryModule: lazy,
		Dependencies: []M.Dependency{toLazy},
	}}

	fac := &stubFactory{modules: map[string]*M.Module{"entry": entry, "lazy": lazy}}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("entry"), "main"))
	require.NoError(t, c.Finish(ctx))
	require.NoError(t, c.Seal(ctx))

	require.Len(t, c.Modules(), 2)
	chunks := c.Chunks()
	require.Len(t, chunks, 2, "an async split point must produce its own chunk")

	var runtimeCount, asyncCount int
	for _, ch := range chunks {
		if ch.HasRuntime() {
			runtimeCount++
			assert.Equal(t, []*M.Module{entry}, ch.Modules())
		} else {
			asyncCount++
			assert.Equal(t, []*M.Module{lazy}, ch.Modules())
		}
	}
	assert.Equal(t, 1, runtimeCount)
	assert.Equal(t, 1, asyncCount)
}

func TestCompilation_AvailabilityPruning_DropsRedundantAsyncChunk(t *testing.T) {
	ctx := context.Background()
	depMod := M.New("dep.js", stubBuilder{})
	entry := M.New("entry.js", stubBuilder{})
	entry.Dependencies = []M.Dependency{dep("dep")}
	entry.Blocks = []*M.Block{{
		ChunkName:    "dep-chunk",
		EntryModule:  depMod,
		Dependencies: []M.Dependency{dep("dep")},
	}}

	fac := &stubFactory{modules: map[string]*M.Module{"entry": entry, "dep": depMod}}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("entry"), "main"))
	require.NoError(t, c.Finish(ctx))
	require.NoError(t, c.Seal(ctx))

	require.Len(t, c.Modules(), 2)
	chunks := c.Chunks()
	require.Len(t, chunks, 1, "the async split point is already synchronously available, so it must be pruned")
	assert.ElementsMatch(t, []*M.Module{entry, depMod}, chunks[0].Modules())
}

func TestCompilation_OptionalDependencyFailure_RecordsWarningNotError(t *testing.T) {
	ctx := context.Background()
	root := M.New("root.js", stubBuilder{})
	root.Dependencies = []M.Dependency{optionalDep("missing")}

	fac := &stubFactory{
		modules: map[string]*M.Module{"root": root},
		errs:    map[string]error{"missing": errors.New("enoent")},
	}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("root"), "main"))
	require.NoError(t, c.Finish(ctx))
	require.NoError(t, c.Seal(ctx))

	assert.Empty(t, c.Errors())
	require.Len(t, c.Warnings(), 1)
}

func TestCompilation_BailTrue_FatalDependencyFailureStopsBuilding(t *testing.T) {
	ctx := context.Background()
	root := M.New("root.js", stubBuilder{})
	root.Dependencies = []M.Dependency{dep("missing")}

	fac := &stubFactory{
		modules: map[string]*M.Module{"root": root},
		errs:    map[string]error{"missing": errors.New("enoent")},
	}
	c := newCompilation(t, fac, true)

	err := c.AddEntry(ctx, dep("root"), "main")
	require.Error(t, err)

	errs := c.Errors()
	require.Len(t, errs, 1)
	var notFound *resolve.ModuleNotFoundError
	assert.ErrorAs(t, errs[0], &notFound)
}

func TestCompilation_RecordErrorAndWarning_Accumulate(t *testing.T) {
	c := newCompilation(t, &stubFactory{modules: map[string]*M.Module{}}, false)

	c.RecordError(errors.New("one"))
	c.RecordError(errors.New("two"))
	c.RecordWarning(errors.New("careful"))

	assert.Len(t, c.Errors(), 2)
	assert.Len(t, c.Warnings(), 1)
}

func TestCompilation_Seal_BeforeFinish_RejectsTransition(t *testing.T) {
	c := newCompilation(t, &stubFactory{modules: map[string]*M.Module{}}, false)

	err := c.Seal(context.Background())
	require.Error(t, err)
	var transitionErr *comp.TransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestCompilation_Finish_AfterFinish_RejectsSecondFinish(t *testing.T) {
	ctx := context.Background()
	a := M.New("a.js", stubBuilder{})
	fac := &stubFactory{modules: map[string]*M.Module{"a": a}}
	c := newCompilation(t, fac, false)

	require.NoError(t, c.AddEntry(ctx, dep("a"), "main"))
	require.NoError(t, c.Finish(ctx))

	err := c.Finish(ctx)
	require.Error(t, err)
	var transitionErr *comp.TransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

// TestCompilation_Rebuild_CacheHitReusesModuleAcrossCompilations exercises
// Options.Rebuild end to end: a second Compilation sharing the first
// one's persistent ModuleCache must reinstate the cached module instance
// instead of keeping the factory's freshly constructed one, since
// stubBuilder.NeedRebuild always reports "still fresh" and Options.Rebuild
// makes that check reachable (spec.md §4.3 step 2).
func TestCompilation_Rebuild_CacheHitReusesModuleAcrossCompilations(t *testing.T) {
	ctx := context.Background()
	moduleCache := cachestore.NewModuleCache(t.TempDir())
	tracker, err := rebuild.NewTracker()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	first := M.New("entry.js", stubBuilder{})
	fac1 := &stubFactory{modules: map[string]*M.Module{"entry": first}}
	c1 := comp.New(comp.Options{
		HashFunction:        sha256.New,
		Parallelism:         4,
		Compiler:            "test-compiler",
		DependencyFactories: map[string]M.Factory{"esm": fac1},
		ModuleCache:         moduleCache,
		AssetCache:          cachestore.NewDisk(t.TempDir()),
		Rebuild:             tracker,
	})
	require.NoError(t, c1.AddEntry(ctx, dep("entry"), "main"))
	require.NoError(t, c1.Finish(ctx))
	require.NoError(t, c1.Seal(ctx))
	c1.Close()

	second := M.New("entry.js", stubBuilder{})
	fac2 := &stubFactory{modules: map[string]*M.Module{"entry": second}}
	c2 := comp.New(comp.Options{
		HashFunction:        sha256.New,
		Parallelism:         4,
		Compiler:            "test-compiler",
		DependencyFactories: map[string]M.Factory{"esm": fac2},
		ModuleCache:         moduleCache,
		AssetCache:          cachestore.NewDisk(t.TempDir()),
		Rebuild:             tracker,
	})
	t.Cleanup(c2.Close)
	require.NoError(t, c2.AddEntry(ctx, dep("entry"), "main"))
	require.NoError(t, c2.Finish(ctx))
	require.NoError(t, c2.Seal(ctx))

	mods := c2.Modules()
	require.Len(t, mods, 1)
	assert.Equal(t, "entry.js", mods[0].Identifier)
	assert.NotSame(t, second, mods[0], "a trusted CacheHit must reinstate the persisted instance, not the fresh factory-built one")
}

// TestCompilation_NoRebuild_NeverTrustsCachedModule confirms the
// pre-wiring default: without Options.Rebuild, AddModule's cache-hit
// branch never fires (fileTimestamps/contextTimestamps stay nil), so a
// persisted module is always discarded in favor of the newly
// factory-produced one.
func TestCompilation_NoRebuild_NeverTrustsCachedModule(t *testing.T) {
	ctx := context.Background()
	moduleCache := cachestore.NewModuleCache(t.TempDir())

	first := M.New("entry.js", stubBuilder{})
	fac1 := &stubFactory{modules: map[string]*M.Module{"entry": first}}
	c1 := comp.New(comp.Options{
		HashFunction:        sha256.New,
		Parallelism:         4,
		Compiler:            "test-compiler",
		DependencyFactories: map[string]M.Factory{"esm": fac1},
		ModuleCache:         moduleCache,
		AssetCache:          cachestore.NewDisk(t.TempDir()),
	})
	require.NoError(t, c1.AddEntry(ctx, dep("entry"), "main"))
	require.NoError(t, c1.Finish(ctx))
	require.NoError(t, c1.Seal(ctx))
	c1.Close()

	second := M.New("entry.js", stubBuilder{})
	fac2 := &stubFactory{modules: map[string]*M.Module{"entry": second}}
	c2 := comp.New(comp.Options{
		HashFunction:        sha256.New,
		Parallelism:         4,
		Compiler:            "test-compiler",
		DependencyFactories: map[string]M.Factory{"esm": fac2},
		ModuleCache:         moduleCache,
		AssetCache:          cachestore.NewDisk(t.TempDir()),
	})
	t.Cleanup(c2.Close)
	require.NoError(t, c2.AddEntry(ctx, dep("entry"), "main"))
	require.NoError(t, c2.Finish(ctx))
	require.NoError(t, c2.Seal(ctx))

	mods := c2.Modules()
	require.Len(t, mods, 1)
	assert.Same(t, second, mods[0], "without Options.Rebuild, a persisted cache entry is never trusted")
}
