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
	"go.bundlecore.dev/compilation/asset"
	"go.bundlecore.dev/compilation/build"
	"go.bundlecore.dev/compilation/hooks"
)

// Hooks composes every named phase of the ~19-step seal() sequence
// (spec.md §4.12) plus the build-phase hooks BuildCoordinator fires and
// the asset-phase hooks AssetRenderer fires, using the four invocation
// styles hooks.SyncHook/BailHook/WaterfallHook/AsyncSeriesHook implement
// (spec.md §4.2).
type Hooks struct {
	Build build.Hooks
	Asset asset.Hooks

	Seal          hooks.SyncHook[*Compilation]
	FinishModules hooks.SyncHook[*Compilation]
	Unseal        hooks.SyncHook[*Compilation]
	AfterSeal     hooks.SyncHook[*Compilation]

	OptimizeDependenciesBasic    hooks.BailHook[*Compilation, bool]
	OptimizeDependencies         hooks.BailHook[*Compilation, bool]
	OptimizeDependenciesAdvanced hooks.BailHook[*Compilation, bool]
	AfterOptimizeDependencies    hooks.SyncHook[*Compilation]

	Optimize                 hooks.SyncHook[*Compilation]
	OptimizeModulesBasic     hooks.BailHook[*Compilation, bool]
	OptimizeModules          hooks.BailHook[*Compilation, bool]
	OptimizeModulesAdvanced  hooks.BailHook[*Compilation, bool]
	AfterOptimizeModules     hooks.SyncHook[*Compilation]
	OptimizeChunksBasic      hooks.BailHook[*Compilation, bool]
	OptimizeChunks           hooks.BailHook[*Compilation, bool]
	OptimizeChunksAdvanced   hooks.BailHook[*Compilation, bool]
	AfterOptimizeChunks      hooks.SyncHook[*Compilation]

	OptimizeTree      hooks.AsyncSeriesHook[*Compilation]
	AfterOptimizeTree hooks.SyncHook[*Compilation]

	OptimizeChunkModulesBasic    hooks.BailHook[*Compilation, bool]
	OptimizeChunkModules         hooks.BailHook[*Compilation, bool]
	OptimizeChunkModulesAdvanced hooks.BailHook[*Compilation, bool]
	AfterOptimizeChunkModules    hooks.SyncHook[*Compilation]

	ShouldRecord hooks.BailHook[*Compilation, bool]

	ReviveModules              hooks.SyncHook[*Compilation]
	OptimizeModuleOrder        hooks.SyncHook[*Compilation]
	AdvancedOptimizeModuleOrder hooks.SyncHook[*Compilation]
	BeforeModuleIds            hooks.SyncHook[*Compilation]
	ModuleIds                  hooks.SyncHook[*Compilation]
	OptimizeModuleIds          hooks.SyncHook[*Compilation]
	AfterOptimizeModuleIds     hooks.SyncHook[*Compilation]

	ReviveChunks        hooks.SyncHook[*Compilation]
	OptimizeChunkOrder  hooks.SyncHook[*Compilation]
	BeforeChunkIds      hooks.SyncHook[*Compilation]
	OptimizeChunkIds    hooks.SyncHook[*Compilation]
	AfterOptimizeChunkIds hooks.SyncHook[*Compilation]

	RecordModules hooks.SyncHook[*Compilation]
	RecordChunks  hooks.SyncHook[*Compilation]

	BeforeHash hooks.SyncHook[*Compilation]
	AfterHash  hooks.SyncHook[*Compilation]
	RecordHash hooks.SyncHook[*Compilation]

	BeforeModuleAssets        hooks.SyncHook[*Compilation]
	ShouldGenerateChunkAssets hooks.BailHook[*Compilation, bool]
	BeforeChunkAssets         hooks.SyncHook[*Compilation]
	AdditionalChunkAssets     hooks.SyncHook[*Compilation]
	Record                    hooks.SyncHook[*Compilation]

	AdditionalAssets        hooks.AsyncSeriesHook[*Compilation]
	OptimizeChunkAssets     hooks.AsyncSeriesHook[*Compilation]
	AfterOptimizeChunkAssets hooks.AsyncSeriesHook[*Compilation]
	OptimizeAssets          hooks.AsyncSeriesHook[*Compilation]
	AfterOptimizeAssets     hooks.AsyncSeriesHook[*Compilation]

	NeedAdditionalSeal hooks.BailHook[*Compilation, bool]
}

func newHooks() *Hooks {
	return &Hooks{}
}

// truthy reports whether a BailHook.Call result should be treated as the
// spec's "truthy" short-circuit value: present and non-zero.
func truthy(r hooks.BailResult[bool]) bool {
	return r.Present && r.Value
}

// truthyDefault reports the spec's "bail(...) !== false" pattern: absent
// defaults to true, present defers to the handler's value.
func truthyDefault(r hooks.BailResult[bool]) bool {
	if !r.Present {
		return true
	}
	return r.Value
}
