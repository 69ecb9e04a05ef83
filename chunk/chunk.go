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

// Package chunk defines the Chunk and Entrypoint data types (spec.md §3)
// and implements ChunkGraphBuilder's two-phase Module -> Chunk
// partitioning (spec.md §4.7).
package chunk

import (
	"go.bundlecore.dev/compilation/internal/workqueue"
	M "go.bundlecore.dev/compilation/module"
)

// Chunk is a unit of output: the partitioning target of ChunkGraphBuilder.
// modules/parents/children/blocks are backed by workqueue.OrderedSet so
// iteration (for hashing, rendering, and cleanup) is deterministic rather
// than following Go's unspecified map order (spec.md §3/EXPANSION).
type Chunk struct {
	Name         string
	ID           int
	IDs          []int
	Files        []string
	EntryModule  *M.Module
	Hash         string
	RenderedHash string

	// Runtime marks a chunk seeded directly from an entry (an "initial
	// chunk" in spec.md's terms) as opposed to one created by
	// ChunkGraphBuilder phase 1 for an async split point. HashEngine sorts
	// by this (non-runtime first, spec.md §4.9 step 3) since runtime
	// chunks fold in non-runtime chunk hashes.
	Runtime bool

	debugID uint64

	modules  *workqueue.OrderedSet[*M.Module]
	parents  *workqueue.OrderedSet[*Chunk]
	children *workqueue.OrderedSet[*Chunk]
	blocks   *workqueue.OrderedSet[*M.Block]
}

// New constructs a Chunk. debugID must be unique within a Compilation;
// callers get one from Builder.nextDebugID so ChunkDebugID can serve as
// module.ChunkMember's identity without module depending on chunk
// (which would cycle, since chunk imports module).
func New(name string, entryModule *M.Module, debugID uint64, runtime bool) *Chunk {
	return &Chunk{
		Name:        name,
		ID:          M.UnassignedIndex,
		EntryModule: entryModule,
		Runtime:     runtime,
		debugID:     debugID,
		modules:     workqueue.NewOrderedSet[*M.Module](),
		parents:     workqueue.NewOrderedSet[*Chunk](),
		children:    workqueue.NewOrderedSet[*Chunk](),
		blocks:      workqueue.NewOrderedSet[*M.Block](),
	}
}

// ChunkDebugID satisfies module.ChunkMember.
func (c *Chunk) ChunkDebugID() uint64 { return c.debugID }

// AddModule records module membership, reporting whether this is the
// first time (spec.md §4.7 phase 1's "chunk.addModule(refModule) returns
// true").
func (c *Chunk) AddModule(m *M.Module) bool { return c.modules.Add(m) }

// RemoveModule drops module membership, reporting whether it was present.
// Used when removeReasons empties a module's reasons and the chunk it
// reached this chunk through is no longer reachable (spec.md §4.11).
func (c *Chunk) RemoveModule(m *M.Module) bool { return c.modules.Remove(m) }

// Modules returns this chunk's modules in insertion order.
func (c *Chunk) Modules() []*M.Module { return c.modules.Items() }

// ModuleCount reports how many modules this chunk currently contains.
func (c *Chunk) ModuleCount() int { return c.modules.Len() }

// AddParent records a parent-chunk edge, reporting whether it is new.
func (c *Chunk) AddParent(p *Chunk) bool { return c.parents.Add(p) }

// RemoveParent removes a parent-chunk edge, reporting whether it was
// present.
func (c *Chunk) RemoveParent(p *Chunk) bool { return c.parents.Remove(p) }

// Parents returns this chunk's parent chunks in insertion order.
func (c *Chunk) Parents() []*Chunk { return c.parents.Items() }

// AddChild records a child-chunk edge, reporting whether it is new.
func (c *Chunk) AddChild(child *Chunk) bool { return c.children.Add(child) }

// Children returns this chunk's child chunks in insertion order.
func (c *Chunk) Children() []*Chunk { return c.children.Items() }

// AddBlock records that this chunk was created for (or reconnected to)
// block, reporting whether it is new (spec.md §4.7 phase 2's
// "depChunk.addBlock(block)").
func (c *Chunk) AddBlock(b *M.Block) bool { return c.blocks.Add(b) }

// HasRuntime reports whether this chunk carries the bundle runtime.
// HashEngine (spec.md §4.9) hashes non-runtime chunks first because
// runtime chunks fold in their hashes.
func (c *Chunk) HasRuntime() bool { return c.Runtime }

// Entrypoint is an ordered list of chunks for a named entry. It owns its
// chunks by reference; it does not own module data (spec.md §3).
type Entrypoint struct {
	Name   string
	Chunks []*Chunk
}
