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
	stdhash "hash"

	"go.bundlecore.dev/compilation/asset"
	"go.bundlecore.dev/compilation/hash"
	"go.bundlecore.dev/compilation/internal/rebuild"
	M "go.bundlecore.dev/compilation/module"
	"go.bundlecore.dev/compilation/store"
)

// Template is the MainTemplate/ChunkTemplate contract a Compilation needs:
// both AssetRenderer's render-manifest production (spec.md §4.10) and
// HashEngine's content hashing (spec.md §4.9) — spec.md §6's "Template
// set" collapsed to the two concrete slots (main, chunk) this core
// actually drives plugins through.
type Template interface {
	asset.Template
	hash.ChunkTemplate
}

// Options fills in spec.md §6's "Configuration options consulted" list:
// output.hashFunction/hashDigest/hashDigestLength/hashSalt, parallelism,
// bail, profile, performance. Loading these from a config file or CLI
// flags remains out of scope.
type Options struct {
	HashFunction     func() stdhash.Hash
	HashDigest       hash.Digest
	HashDigestLength int
	HashSalt         string

	Parallelism int
	Bail        bool
	Profile     bool

	// PerformanceMaxAssetSize is the one knob spec.md's `performance`
	// option needs for this core: AssetRenderer does not itself enforce
	// it (enforcement is a host concern), but it is threaded through so a
	// host's own size-warning hook has something to compare against.
	PerformanceMaxAssetSize int64

	// Compiler is the compiler identity threaded into every
	// module.ContextInfo.Compiler (spec.md §6's Compiler.name).
	Compiler string

	// DependencyFactories resolves a dependency's constructor-tag to the
	// Factory that should handle it (spec.md §3's Compilation.
	// dependencyFactories).
	DependencyFactories map[string]M.Factory

	// ModuleTemplates seeds the compilation hash with each named
	// per-language module template's content, in sorted key order
	// (spec.md §4.9 step 1).
	ModuleTemplates map[string]hash.Template

	MainTemplate  Template
	ChunkTemplate Template

	// ModuleCache and AssetCache are the optional persistent side-tables
	// spec.md §6 calls "Persistent cache": module instances for
	// ModuleStore, rendered sources for AssetRenderer. Both default to an
	// internal/cachestore disk-backed instance when left nil.
	ModuleCache store.Cache
	AssetCache  asset.Cache

	// Rebuild, if set, is consulted once per AddEntry: its current
	// file/context timestamp snapshot is installed into ModuleStore via
	// SetTimestamps before resolution starts, so a cache hit's
	// Builder.NeedRebuild check (spec.md §4.3 step 2) has real timestamps
	// to compare against. Nil means no timestamps are installed, so that
	// check never runs and every cached entry is treated as stale: it is
	// unbuilt and the freshly created module is used instead (spec.md's
	// "If fileTimestamps and contextTimestamps are both available"
	// precondition being false).
	Rebuild *rebuild.Tracker

	// UsedModuleIDs/UsedChunkIDs are caller-provided id reservations fed
	// into IdAllocator alongside ids already present on modules/chunks
	// (spec.md §4.8).
	UsedModuleIDs []int
	UsedChunkIDs  []int
}
