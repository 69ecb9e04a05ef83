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
	"context"
	"sort"

	"go.bundlecore.dev/compilation/chunk"
	"go.bundlecore.dev/compilation/graph"
	"go.bundlecore.dev/compilation/hooks"
	"go.bundlecore.dev/compilation/ids"
)

// state is SealLifecycle's Building/Finished/Sealing/Sealed state machine
// (spec.md §4.12). The zero value is stateBuilding, matching a freshly
// constructed Compilation.
type state int

const (
	stateBuilding state = iota
	stateFinished
	stateSealing
	stateSealed
)

func (s state) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateFinished:
		return "finished"
	case stateSealing:
		return "sealing"
	case stateSealed:
		return "sealed"
	default:
		return "unknown"
	}
}

// transition moves the compilation from "from" to "to", rejecting the
// call if the current state is not "from" (spec.md §4.12's transition
// table: finish only from Building, seal only from Finished, unseal only
// from Sealed back to Building).
func (c *Compilation) transition(from, to state) error {
	var err error
	c.submit(func() {
		if c.state != from {
			err = &TransitionError{From: c.state, To: to, Want: from}
			return
		}
		c.state = to
	})
	return err
}

// Seal implements spec.md §4.12's seal(): optimize dependencies to a
// fixed point, partition the chunk graph, assign module/chunk ids,
// compute the compilation hash, render module and chunk assets, then run
// the asset-optimization pipeline. NeedAdditionalSeal may drive a further
// unseal/seal round before AfterSeal fires and the state settles on
// Sealed.
func (c *Compilation) Seal(ctx context.Context) error {
	if err := c.transition(stateFinished, stateSealing); err != nil {
		return err
	}

	c.Hooks.Seal.Call(c)

	for runFixedPoint(c, &c.Hooks.OptimizeDependenciesBasic, &c.Hooks.OptimizeDependencies, &c.Hooks.OptimizeDependenciesAdvanced) {
	}
	c.Hooks.AfterOptimizeDependencies.Call(c)

	c.buildChunkGraph()

	c.Hooks.Optimize.Call(c)
	for runFixedPoint(c, &c.Hooks.OptimizeModulesBasic, &c.Hooks.OptimizeModules, &c.Hooks.OptimizeModulesAdvanced) {
	}
	c.Hooks.AfterOptimizeModules.Call(c)
	for runFixedPoint(c, &c.Hooks.OptimizeChunksBasic, &c.Hooks.OptimizeChunks, &c.Hooks.OptimizeChunksAdvanced) {
	}
	c.Hooks.AfterOptimizeChunks.Call(c)

	if err := c.Hooks.OptimizeTree.CallAsyncSeries(ctx, c); err != nil {
		return err
	}
	c.Hooks.AfterOptimizeTree.Call(c)

	for runFixedPoint(c, &c.Hooks.OptimizeChunkModulesBasic, &c.Hooks.OptimizeChunkModules, &c.Hooks.OptimizeChunkModulesAdvanced) {
	}
	c.Hooks.AfterOptimizeChunkModules.Call(c)

	shouldRecord := truthyDefault(c.Hooks.ShouldRecord.Call(c))

	c.Hooks.ReviveModules.Call(c)
	c.Hooks.OptimizeModuleOrder.Call(c)
	c.Hooks.AdvancedOptimizeModuleOrder.Call(c)
	c.Hooks.BeforeModuleIds.Call(c)
	c.Hooks.ModuleIds.Call(c)
	ids.AssignModuleIds(c.modules, c.Options.UsedModuleIDs)
	c.Hooks.OptimizeModuleIds.Call(c)
	c.Hooks.AfterOptimizeModuleIds.Call(c)

	c.Hooks.ReviveChunks.Call(c)
	c.Hooks.OptimizeChunkOrder.Call(c)
	c.Hooks.BeforeChunkIds.Call(c)
	chunks := c.chunks.Chunks()
	ids.AssignChunkIds(chunks, c.Options.UsedChunkIDs)
	c.Hooks.OptimizeChunkIds.Call(c)
	c.Hooks.AfterOptimizeChunkIds.Call(c)

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	c.sortDiagnostics()

	if shouldRecord {
		c.Hooks.RecordModules.Call(c)
		c.Hooks.RecordChunks.Call(c)
	}

	c.Hooks.BeforeHash.Call(c)
	var childHashes []string
	for _, child := range c.children {
		childHashes = append(childHashes, child.FullHash)
	}
	messages := diagnosticMessages(c.errs, c.warnings)
	c.FullHash, c.Hash = c.hashEngine.CreateHash(c.modules, chunks, childHashes, messages, nil)
	c.Hooks.AfterHash.Call(c)
	if shouldRecord {
		c.Hooks.RecordHash.Call(c)
	}

	c.Hooks.BeforeModuleAssets.Call(c)
	if err := c.assets.CreateModuleAssets(c.modules); err != nil {
		c.RecordError(err)
	}

	if truthyDefault(c.Hooks.ShouldGenerateChunkAssets.Call(c)) {
		c.Hooks.BeforeChunkAssets.Call(c)
		for _, err := range c.assets.CreateChunkAssets(chunks) {
			c.RecordError(err)
		}
	}
	c.Hooks.AdditionalChunkAssets.Call(c)
	if shouldRecord {
		c.Hooks.Record.Call(c)
	}

	for _, h := range []func(context.Context, *Compilation) error{
		c.Hooks.AdditionalAssets.CallAsyncSeries,
		c.Hooks.OptimizeChunkAssets.CallAsyncSeries,
		c.Hooks.AfterOptimizeChunkAssets.CallAsyncSeries,
		c.Hooks.OptimizeAssets.CallAsyncSeries,
		c.Hooks.AfterOptimizeAssets.CallAsyncSeries,
	} {
		if err := h(ctx, c); err != nil {
			return err
		}
	}

	if truthy(c.Hooks.NeedAdditionalSeal.Call(c)) {
		c.unseal()
		return c.Seal(ctx)
	}

	c.Hooks.AfterSeal.Call(c)
	return c.transition(stateSealing, stateSealed)
}

// buildChunkGraph turns preparedChunks into initial chunks, partitions
// the chunk graph, labels the module graph, and sorts modules by Index —
// spec.md §4.12's chunk-graph-building steps between
// AfterOptimizeDependencies and Optimize.
func (c *Compilation) buildChunkGraph() {
	var input []*chunk.Chunk
	for _, slot := range c.preparedChunks {
		if slot == nil || slot.Module == nil {
			continue
		}
		ch := c.chunks.NewInputChunk(slot.Name, slot.Module)
		c.entrypoints[slot.Name] = &chunk.Entrypoint{Name: slot.Name, Chunks: []*chunk.Chunk{ch}}
		input = append(input, ch)

		c.labeller.AssignIndex(slot.Module)
		graph.AssignDepth(slot.Module)
	}

	c.chunks.ProcessDependenciesBlocksForChunks(input)
	c.sortModules()
}

func (c *Compilation) sortModules() {
	modules := c.store.Modules()
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Index < modules[j].Index })
	c.modules = modules
}

func (c *Compilation) sortDiagnostics() {
	sort.SliceStable(c.errs, func(i, j int) bool { return c.errs[i].Error() < c.errs[j].Error() })
	sort.SliceStable(c.warnings, func(i, j int) bool { return c.warnings[i].Error() < c.warnings[j].Error() })
}

func diagnosticMessages(errs, warnings []error) []string {
	out := make([]string, 0, len(errs)+len(warnings))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	for _, w := range warnings {
		out = append(out, w.Error())
	}
	return out
}

// runFixedPoint calls the basic/regular/advanced triad of a single
// optimize-* phase once, reporting whether any of the three bailed
// truthy: the spec's "loop the triad until none of its hooks return a
// truthy bail value" (spec.md §4.12).
func runFixedPoint(c *Compilation, basic, regular, advanced interface {
	Call(*Compilation) hooks.BailResult[bool]
}) bool {
	restart := false
	if truthy(basic.Call(c)) {
		restart = true
	}
	if truthy(regular.Call(c)) {
		restart = true
	}
	if truthy(advanced.Call(c)) {
		restart = true
	}
	return restart
}

// unseal implements spec.md §4.12's unseal(): fire the Unseal hook, reset
// every module's graph-derived labels, and move back to Building so a
// subsequent AddEntry/Finish/Seal cycle can run again.
func (c *Compilation) unseal() {
	c.Hooks.Unseal.Call(c)
	for _, m := range c.modules {
		m.Unseal()
	}
	_ = c.transition(stateSealing, stateBuilding)
}
