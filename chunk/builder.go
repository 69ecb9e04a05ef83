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

package chunk

import (
	"fmt"

	"go.bundlecore.dev/compilation/internal/workqueue"
	M "go.bundlecore.dev/compilation/module"
)

// AsyncDependencyToInitialChunkWarning is fired when an async split point
// names a chunk that already exists as an initial (runtime-carrying)
// chunk: rather than create a second chunk for the same name, phase 1
// folds the split point into the existing initial chunk and warns.
type AsyncDependencyToInitialChunkWarning struct {
	Block     *M.Block
	ChunkName string
}

func (w *AsyncDependencyToInitialChunkWarning) Error() string {
	return fmt.Sprintf("async dependency on chunk %q folded into initial chunk", w.ChunkName)
}

// Recorder is how Builder reports AsyncDependencyToInitialChunkWarning
// without importing the compilation package.
type Recorder interface {
	RecordWarning(warning error)
}

type blockChunkEdge struct {
	block *M.Block
	chunk *Chunk
}

// Builder is ChunkGraphBuilder: Module -> Chunk partitioning via phase 1
// (basic chunk graph from async split points) and phase 2
// (availability-pruned connection), per spec.md §4.7.
type Builder struct {
	record Recorder

	namedChunks map[string]*Chunk
	allChunks   *workqueue.OrderedSet[*Chunk]
	nextDebugID uint64

	// blockOwningChunks replaces the spec's block.chunks field: tracking
	// which chunks a given async-split Block has been (re)connected to is
	// bookkeeping ChunkGraphBuilder owns, not the Module/Block data model
	// (see DESIGN.md — keeping this off Block avoids a module<->chunk
	// import cycle).
	blockOwningChunks map[*M.Block][]*Chunk
}

// New constructs an empty Builder.
func New(record Recorder) *Builder {
	return &Builder{
		record:            record,
		namedChunks:       make(map[string]*Chunk),
		allChunks:         workqueue.NewOrderedSet[*Chunk](),
		blockOwningChunks: make(map[*M.Block][]*Chunk),
	}
}

// NewInputChunk creates and registers one of the seed ("initial") chunks
// ProcessDependenciesBlocksForChunks partitions from — one per prepared
// entry. name may be empty for an unnamed entry.
func (b *Builder) NewInputChunk(name string, entryModule *M.Module) *Chunk {
	b.nextDebugID++
	c := New(name, entryModule, b.nextDebugID, true)
	if entryModule != nil {
		c.AddModule(entryModule)
		entryModule.AddChunk(c)
	}
	b.allChunks.Add(c)
	if name != "" {
		b.namedChunks[name] = c
	}
	return c
}

// NamedChunk looks up a chunk previously registered under name.
func (b *Builder) NamedChunk(name string) (*Chunk, bool) {
	c, ok := b.namedChunks[name]
	return c, ok
}

// Chunks returns every chunk still registered, in creation order.
func (b *Builder) Chunks() []*Chunk {
	return b.allChunks.Items()
}

func (b *Builder) addAsyncChunk(name string, entryModule *M.Module) *Chunk {
	b.nextDebugID++
	c := New(name, entryModule, b.nextDebugID, false)
	b.allChunks.Add(c)
	if name != "" {
		b.namedChunks[name] = c
	}
	return c
}

// ProcessDependenciesBlocksForChunks runs both phases over the given
// input (initial) chunks, then removes any chunk phase 1 created that
// ended up with no parent (spec.md §4.7's cleanup pass).
func (b *Builder) ProcessDependenciesBlocksForChunks(inputChunks []*Chunk) {
	created, chunkDeps := b.phase1(inputChunks)
	b.phase2(inputChunks, chunkDeps)
	b.cleanup(created)
}

type queueItem1 struct {
	block *M.Block
	chunk *Chunk
}

// phase1 implements spec.md §4.7's "basic chunk graph" pass.
func (b *Builder) phase1(inputChunks []*Chunk) ([]*Chunk, map[*Chunk][]blockChunkEdge) {
	chunkDeps := make(map[*Chunk][]blockChunkEdge)
	allCreated := workqueue.NewOrderedSet[*Chunk]()

	var queue []queueItem1
	for _, c := range inputChunks {
		queue = append(queue, queueItem1{block: &c.EntryModule.Block, chunk: c})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		block, c := item.block, item.chunk

		for _, dep := range block.AllDependencies() {
			ref := dep.GetReference()
			if ref == nil || ref.Module == nil || dep.Weak() {
				continue
			}
			if c.AddModule(ref.Module) {
				ref.Module.AddChunk(c)
				queue = append(queue, queueItem1{block: &ref.Module.Block, chunk: c})
			}
		}

		for _, nested := range block.Blocks {
			depChunk, existing := b.blockOwningChunks[nested]
			var dc *Chunk
			switch {
			case existing && len(depChunk) > 0:
				dc = depChunk[0]
			case b.namedChunks[nested.ChunkName] != nil && nested.ChunkName != "" && b.namedChunks[nested.ChunkName].HasRuntime():
				dc = b.namedChunks[nested.ChunkName]
				b.record.RecordWarning(&AsyncDependencyToInitialChunkWarning{Block: nested, ChunkName: nested.ChunkName})
			default:
				dc = b.addAsyncChunk(nested.ChunkName, nested.EntryModule)
				b.blockOwningChunks[nested] = []*Chunk{dc}
				allCreated.Add(dc)
			}
			chunkDeps[c] = append(chunkDeps[c], blockChunkEdge{block: nested, chunk: dc})
			queue = append(queue, queueItem1{block: nested, chunk: dc})
		}
	}

	return allCreated.Items(), chunkDeps
}

type queueItem2 struct {
	chunk     *Chunk
	available *workqueue.OrderedSet[*M.Module]
}

// phase2 implements spec.md §4.7's availability-pruned connection pass.
func (b *Builder) phase2(inputChunks []*Chunk, chunkDeps map[*Chunk][]blockChunkEdge) {
	minAvailable := make(map[*Chunk]*workqueue.OrderedSet[*M.Module])

	var queue []queueItem2
	for _, c := range inputChunks {
		queue = append(queue, queueItem2{chunk: c, available: workqueue.NewOrderedSet[*M.Module]()})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		c, available := item.chunk, item.available

		stored, seen := minAvailable[c]
		if !seen {
			stored = available.Clone()
			minAvailable[c] = stored
		} else if !stored.Intersect(available) {
			continue // no progress: this item's availability adds nothing new
		}

		edges := chunkDeps[c]
		if len(edges) == 0 {
			continue
		}

		newAvailable := stored.Clone()
		for _, m := range c.Modules() {
			newAvailable.Add(m)
		}

		next := workqueue.NewOrderedSet[*Chunk]()
		for _, e := range edges {
			if allModulesAvailable(e.chunk, newAvailable) {
				continue // fully available already: drop the edge, breaking cycles
			}
			if e.chunk.AddBlock(e.block) {
				b.blockOwningChunks[e.block] = append(b.blockOwningChunks[e.block], e.chunk)
			}
			if c.AddChild(e.chunk) {
				e.chunk.AddParent(c)
			}
			next.Add(e.chunk)
		}

		for _, dc := range next.Items() {
			queue = append(queue, queueItem2{chunk: dc, available: newAvailable.Clone()})
		}
	}
}

func allModulesAvailable(c *Chunk, available *workqueue.OrderedSet[*M.Module]) bool {
	for _, m := range c.Modules() {
		if !available.Has(m) {
			return false
		}
	}
	return true
}

// cleanup removes every chunk phase 1 created that ended up with no
// parent (spec.md §4.7's "a chunk with zero parents after partitioning
// that is not itself an input chunk is removed").
func (b *Builder) cleanup(created []*Chunk) {
	for _, c := range created {
		if len(c.Parents()) == 0 {
			b.removeChunk(c)
		}
	}
}

func (b *Builder) removeChunk(c *Chunk) {
	b.allChunks.Remove(c)
	if c.Name != "" && b.namedChunks[c.Name] == c {
		delete(b.namedChunks, c.Name)
	}
	for _, child := range c.Children() {
		child.RemoveParent(c)
	}
	for _, m := range c.Modules() {
		m.RemoveChunk(c)
	}
}
