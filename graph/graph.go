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

// Package graph implements GraphLabeller (spec.md §4.6): assignIndex's
// pre/post-order module numbering and assignDepth's BFS-like distance
// labelling. Both traversals are iterative, using an explicit stack
// rather than recursion, so they don't overflow the goroutine stack on
// deep module graphs — the same reason the teacher's
// modulegraph.Collector walks its reference graph with an explicit
// worklist instead of recursive descent.
package graph

import (
	M "go.bundlecore.dev/compilation/module"
)

type stepKind int

const (
	stepEnterModule stepKind = iota
	stepLeaveModule
	stepEnterBlock
)

// step is the closed sum type spec.md §9 suggests as the stack-based
// equivalent of {Enter(m), Leave(m), Block(b)} with a colour map: colour
// is tracked directly on the Module (Index >= 0 means "entered").
type step struct {
	kind   stepKind
	module *M.Module
	block  *M.Block
}

// Labeller holds the monotonic index counters that must persist across
// assignIndex calls for every entry in a single seal, so modules reached
// from a later entry continue the numbering rather than restarting it.
type Labeller struct {
	nextIndex  int
	nextIndex2 int
}

// New constructs a Labeller with fresh counters, to be reused across
// every entry module in one SealLifecycle pass.
func New() *Labeller {
	return &Labeller{}
}

// AssignIndex performs the modified DFS described in spec.md §4.6: two
// pre/post orderings (index on first entry, index2 on leaving the
// subtree), skipping modules already labelled so cycles terminate.
func (l *Labeller) AssignIndex(root *M.Module) {
	stack := []step{{kind: stepEnterModule, module: root}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch s.kind {
		case stepEnterModule:
			if s.module.Index != M.UnassignedIndex {
				continue
			}
			s.module.Index = l.nextIndex
			l.nextIndex++
			stack = append(stack, step{kind: stepLeaveModule, module: s.module})
			stack = append(stack, step{kind: stepEnterBlock, block: &s.module.Block})

		case stepLeaveModule:
			s.module.Index2 = l.nextIndex2
			l.nextIndex2++

		case stepEnterBlock:
			pushBlockContents(&stack, s.block)
		}
	}
}

// pushBlockContents enqueues a block's children so that popping the
// stack visits dependency targets in array order and nested (async
// split) blocks in reverse array order — spec.md §4.6's explicit
// reversal trick for yielding left-to-right in-order DFS from a LIFO
// stack. Variables' dependencies are already inlined at the front by
// Block.AllDependencies.
func pushBlockContents(stack *[]step, block *M.Block) {
	for _, nested := range block.Blocks {
		*stack = append(*stack, step{kind: stepEnterBlock, block: nested})
	}
	deps := block.AllDependencies()
	for i := len(deps) - 1; i >= 0; i-- {
		if target := deps[i].Module(); target != nil {
			*stack = append(*stack, step{kind: stepEnterModule, module: target})
		}
	}
}

// AssignDepth performs the BFS-like labelling of spec.md §4.6: root's
// depth is 0, and every dependency target (including those nested in
// async-split blocks) gets min(d+1, existing) — relabelled whenever a
// shorter path is found, which is why this is BFS rather than a single
// pre-order pass.
func AssignDepth(root *M.Module) {
	root.Depth = 0
	queue := []*M.Module{root}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		d := m.Depth

		for _, dep := range m.AllDependenciesDeep() {
			target := dep.Module()
			if target == nil {
				continue
			}
			if target.Depth == M.UnassignedIndex || target.Depth > d+1 {
				target.Depth = d + 1
				queue = append(queue, target)
			}
		}
	}
}
