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

// Package ids implements IdAllocator (spec.md §4.8): assigning small,
// dense, reused integer ids to modules and chunks once a seal's graph
// shape is final.
package ids

import (
	"sort"

	"go.bundlecore.dev/compilation/chunk"
	M "go.bundlecore.dev/compilation/module"
)

// AssignModuleIds is applyModuleIds: every module without an id gets one,
// preferring to fill holes below the reserved high-water mark before
// handing out fresh ids. reserved is the caller's own pre-claimed id set
// (compilation.usedModuleIds); modules already carrying an id (e.g. a
// cached instance restored from a prior compilation) also count as used.
func AssignModuleIds(modules []*M.Module, reserved []int) {
	used := map[int]bool{}
	for _, id := range reserved {
		used[id] = true
	}
	for _, m := range modules {
		if m.ID != M.UnassignedIndex {
			used[m.ID] = true
		}
	}

	unused, nextFree := unusedBelow(used)

	for _, m := range modules {
		if m.ID != M.UnassignedIndex {
			continue
		}
		m.ID = popOrNext(&unused, &nextFree)
	}
}

// AssignChunkIds is applyChunkIds: analogous to AssignModuleIds, and
// additionally fills in chunk.IDs with []int{chunk.ID} for any chunk that
// has no explicit multi-id list (a chunk produced by merging named
// entries can carry more than one id; a plain chunk just wraps its own).
func AssignChunkIds(chunks []*chunk.Chunk, reserved []int) {
	used := map[int]bool{}
	for _, id := range reserved {
		used[id] = true
	}
	for _, c := range chunks {
		if c.ID != M.UnassignedIndex {
			used[c.ID] = true
		}
	}

	unused, nextFree := unusedBelow(used)

	for _, c := range chunks {
		if c.ID == M.UnassignedIndex {
			c.ID = popOrNext(&unused, &nextFree)
		}
		if len(c.IDs) == 0 {
			c.IDs = []int{c.ID}
		}
	}
}

// unusedBelow computes nextFreeId = max(used)+1 and the sorted-descending
// list of ids below it that are not in used, ready to be popped LIFO —
// i.e. smallest id first, since the last element of a descending slice is
// the smallest, matching spec.md §4.8's "pop from unusedIds (LIFO)"
// without reaching for container/heap (see SPEC_FULL.md §4.8/EXPANSION:
// the list is filled once up front, so a sorted slice gives the same
// smallest-first order a min-heap would).
func unusedBelow(used map[int]bool) ([]int, int) {
	if len(used) == 0 {
		return nil, 0
	}
	max := 0
	for id := range used {
		if id > max {
			max = id
		}
	}
	nextFree := max + 1

	var unused []int
	for i := 0; i < nextFree; i++ {
		if !used[i] {
			unused = append(unused, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(unused)))
	return unused, nextFree
}

func popOrNext(unused *[]int, nextFree *int) int {
	if n := len(*unused); n > 0 {
		id := (*unused)[n-1]
		*unused = (*unused)[:n-1]
		return id
	}
	id := *nextFree
	*nextFree++
	return id
}
