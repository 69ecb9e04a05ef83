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

// Package module defines the Module, Dependency and Block data model
// (spec.md §3) and the external ModuleFactory/Module-behavior contracts
// (spec.md §6) that the rest of the compilation core is built against.
//
// Module itself is a concrete struct, not an interface: the bookkeeping
// fields (index, depth, id, hash, reasons, chunk membership...) belong to
// the compilation core, not to whatever parser produced the module, so
// there is nothing for an external implementation to override there. What
// *is* pluggable — how the module is built, rebuilt, and content-hashed —
// is factored out into the Builder interface, which a ModuleFactory
// attaches when it constructs a Module. This mirrors the teacher
// codebase's own FileParser/ExportParser/ManifestResolver split: small,
// focused interfaces for the genuinely swappable behavior, concrete
// structs for shared bookkeeping.
package module

import (
	"context"
	"hash"
	"sync"
	"time"

	"go.bundlecore.dev/compilation/internal/workqueue"
)

// UnassignedIndex is the sentinel for Index, Index2, Depth, and ID before
// GraphLabeller/IdAllocator assign them.
const UnassignedIndex = -1

// BuildOptions is the configuration the Builder's Build method receives.
// It intentionally exposes only what spec.md §6 lists as consulted by the
// core: the rest (parser options, loader configuration, ...) lives in
// whatever concrete Builder a ModuleFactory constructs, since those are
// out of scope for the compilation core itself.
type BuildOptions struct {
	Bail    bool
	Profile bool
}

// Builder is the pluggable part of a Module's behavior: parsing,
// transforming, rebuild detection and content hashing, all of which are
// explicitly out of scope for the compilation core (spec.md §1) and
// supplied by whatever ModuleFactory produced the Module.
type Builder interface {
	// Build parses/transforms the module's source, populating the
	// Module's Block (Dependencies/Variables/Blocks), Errors, Warnings,
	// FileDependencies and ContextDependencies. It must be safe to call
	// from a single goroutine per Module at a time; the BuildCoordinator
	// guarantees that.
	Build(ctx context.Context, opts BuildOptions, m *Module) error

	// Unbuild discards any state Build accumulated, e.g. because a cache
	// hit needed a rebuild and the stale cached instance must be reset
	// before being rebuilt in place.
	Unbuild(m *Module)

	// NeedRebuild reports whether a cached Module instance is stale given
	// the current file/context timestamps.
	NeedRebuild(m *Module, fileTimestamps, contextTimestamps map[string]time.Time) bool

	// UpdateHash folds the module's state into h. hash.Engine derives each
	// module's hash from this call alone, so anything that distinguishes
	// one module's hash from another's (identifier, source content) has to
	// be written here.
	UpdateHash(m *Module, h hash.Hash)

	// NameForCondition returns the name used by name-based matching rules
	// (e.g. optimization conditions keyed on file extension); may simply
	// return m.Identifier.
	NameForCondition(m *Module) string
}

// Profile is an optional per-module timing record.
type Profile struct {
	Factory  time.Duration
	Building time.Duration
	Restored bool
}

// Asset is a named output produced directly by a module (as opposed to by
// chunk rendering), e.g. an imported image or font.
type Asset struct {
	Name string
	Data []byte
}

// Module is a built compilation unit: the identity-bearing node of the
// module graph. See spec.md §3 for the full invariant list; the
// constructor-free zero value is not valid, use New.
type Module struct {
	Block

	Identifier     string
	Context        string
	ResolveOptions any
	Builder        Builder

	// Issuer is a weak back-reference to the Module that first caused this
	// Module's inclusion. It does not keep the issuer alive on its own
	// (Go's GC handles the resulting reference cycles; see SPEC_FULL.md
	// §3/EXPANSION).
	Issuer *Module

	Errors   []error
	Warnings []error

	FileDependencies    []string
	ContextDependencies []string

	Assets map[string]Asset

	// Index/Index2/Depth/ID start at UnassignedIndex and are filled in by
	// GraphLabeller and IdAllocator during seal.
	Index  int
	Index2 int
	Depth  int
	ID     int

	Hash         string
	RenderedHash string

	Profile *Profile

	mu      sync.Mutex
	reasons *workqueue.OrderedSet[Reason]
	chunks  *workqueue.OrderedSet[ChunkMember]
}

// ChunkMember is the minimal identity a Chunk exposes to Module, avoiding
// an import cycle between module and chunk (chunk imports module, not the
// reverse). The chunk package's *Chunk type satisfies this.
type ChunkMember interface {
	ChunkDebugID() uint64
}

// New constructs a Module ready for DependencyResolver to populate.
func New(identifier string, builder Builder) *Module {
	return &Module{
		Identifier: identifier,
		Builder:    builder,
		Index:      UnassignedIndex,
		Index2:     UnassignedIndex,
		Depth:      UnassignedIndex,
		ID:         UnassignedIndex,
		reasons:    workqueue.NewOrderedSet[Reason](),
		chunks:     workqueue.NewOrderedSet[ChunkMember](),
	}
}

// AddReason records that origin's dependency dep caused this module's
// inclusion.
func (m *Module) AddReason(origin *Module, dep Dependency) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons.Add(Reason{Origin: origin, Dep: dep})
}

// RemoveReason removes the (origin, dep) reason if present, reporting
// whether it was found.
func (m *Module) RemoveReason(origin *Module, dep Dependency) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reasons.Remove(Reason{Origin: origin, Dep: dep})
}

// HasReasons reports whether this module is still reachable through at
// least one reason. A reachable module must have reasons (spec.md §3);
// once this is false the module is a removal candidate.
func (m *Module) HasReasons() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reasons.Len() > 0
}

// Reasons returns a snapshot of the recorded reasons, in insertion order.
func (m *Module) Reasons() []Reason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reasons.Items()
}

// HasReasonForChunk reports whether any reason's origin module is a
// member of chunk, per spec property 4 (reason symmetry).
func (m *Module) HasReasonForChunk(inChunk func(*Module) bool) bool {
	for _, r := range m.Reasons() {
		if r.Origin != nil && inChunk(r.Origin) {
			return true
		}
	}
	return false
}

// AddChunk records chunk membership, reporting whether this is the first
// time (mirrors the spec's addChunk boolean return, used by
// ChunkGraphBuilder to decide whether to also record the reverse edge).
func (m *Module) AddChunk(c ChunkMember) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks.Add(c)
}

// RemoveChunk removes chunk membership, reporting whether it was present.
func (m *Module) RemoveChunk(c ChunkMember) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks.Remove(c)
}

// ForEachChunk calls fn once per chunk this module belongs to, in
// insertion order.
func (m *Module) ForEachChunk(fn func(ChunkMember)) {
	for _, c := range m.chunksSnapshot() {
		fn(c)
	}
}

func (m *Module) chunksSnapshot() []ChunkMember {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks.Items()
}

// ChunkCount reports how many chunks this module currently belongs to.
func (m *Module) ChunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks.Len()
}

// Disconnect clears transient graph edges (reasons, chunk membership)
// without discarding build output, used when ModuleStore reinstates a
// cached instance that passed NeedRebuild.
func (m *Module) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = workqueue.NewOrderedSet[Reason]()
	m.chunks = workqueue.NewOrderedSet[ChunkMember]()
	m.Issuer = nil
}

// Unseal resets seal-phase-assigned state so the module can participate
// in a subsequent seal after SealLifecycle.Unseal. It survives unseal;
// only chunks do not.
func (m *Module) Unseal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Index, m.Index2, m.Depth, m.ID = UnassignedIndex, UnassignedIndex, UnassignedIndex, UnassignedIndex
	m.Hash, m.RenderedHash = "", ""
	m.chunks = workqueue.NewOrderedSet[ChunkMember]()
}
