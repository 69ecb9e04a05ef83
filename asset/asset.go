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

// Package asset implements AssetRenderer (spec.md §4.10):
// createModuleAssets and createChunkAssets, including the render-manifest
// cache consult-or-render step and install-time conflict detection.
package asset

import (
	"fmt"

	"go.bundlecore.dev/compilation/chunk"
	"go.bundlecore.dev/compilation/hooks"
	M "go.bundlecore.dev/compilation/module"
)

// Asset is an installed output: spec.md §3's compilation.assets entry.
type Asset struct {
	Source     CachedSource
	EmittedByC *chunk.Chunk // nil for a module asset
	EmittedByM *M.Module    // nil for a chunk asset
}

// CachedSource is the render cache's payload: a content hash alongside
// the rendered bytes, so a later render with an unchanged hash can reuse
// Data without re-invoking render() (spec.md §4.10's "CachedSource").
type CachedSource struct {
	Hash string
	Data []byte
}

// Cache is the render-manifest cache consulted by createChunkAssets,
// backed by internal/cachestore.DiskCache in the default wiring (its own
// DiskCache instance, rooted in a different directory from the one
// store.Cache uses, keyed by manifest identifier).
type Cache interface {
	Get(key string, dst any) bool
	Set(key string, value any)
}

// ManifestEntry is one render-manifest entry a ChunkTemplate/MainTemplate
// contributes for a given chunk (spec.md §4.10's
// "{identifier, hash, render, filenameTemplate, pathOptions}").
type ManifestEntry struct {
	Identifier       string
	Hash             string
	Render           func() ([]byte, error)
	FilenameTemplate string
	PathOptions      any
}

// Template is the render-manifest-producing half of MainTemplate/
// ChunkTemplate (spec.md §6); GetPath resolves a filenameTemplate +
// pathOptions into the final output path.
type Template interface {
	RenderManifest(c *chunk.Chunk) []ManifestEntry
	GetPath(filenameTemplate string, pathOptions any) string
}

// ConflictError reports that a chunk or module asset install collided
// with an already-installed asset of different content, per spec.md
// §4.10's "fail the chunk with a conflict error."
type ConflictError struct {
	File string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting asset at path %q", e.File)
}

// ChunkRenderError wraps every panic/error recovered while rendering a
// single chunk's assets into one chunk-level error, per spec.md §4.10's
// "all exceptions during a chunk are caught and recorded as a single
// chunk-render error."
type ChunkRenderError struct {
	Chunk *chunk.Chunk
	Cause error
}

func (e *ChunkRenderError) Error() string {
	return fmt.Sprintf("asset render failed for chunk %q: %s", e.Chunk.Name, e.Cause)
}
func (e *ChunkRenderError) Unwrap() error { return e.Cause }

// Hooks are the named hooks AssetRenderer fires.
type Hooks struct {
	ModuleAsset func(m *M.Module, name string)
	ChunkAsset  func(c *chunk.Chunk, file string)

	// AssetPath is spec.md's `applyPluginsWaterfall("asset-path", path,
	// assetInfo)`: each tapped handler may rewrite the path
	// Template.GetPath produced before it is used as the installed
	// asset's key. An empty handler set leaves the path unchanged.
	AssetPath hooks.WaterfallHook[string]
}

// Renderer is AssetRenderer.
type Renderer struct {
	MainTemplate  Template
	ChunkTemplate Template
	Cache         Cache
	Hooks         *Hooks

	assets map[string]Asset
}

// New constructs a Renderer with an empty asset table. A nil hooks is
// treated as an empty *Hooks.
func New(mainTemplate, chunkTemplate Template, cache Cache, hooks *Hooks) *Renderer {
	if hooks == nil {
		hooks = &Hooks{}
	}
	return &Renderer{
		MainTemplate:  mainTemplate,
		ChunkTemplate: chunkTemplate,
		Cache:         cache,
		Hooks:         hooks,
		assets:        make(map[string]Asset),
	}
}

// Assets returns the installed asset table.
func (r *Renderer) Assets() map[string]Asset { return r.assets }

// CreateModuleAssets installs each module's own named assets (e.g. an
// imported image), one per spec.md §4.10's createModuleAssets.
func (r *Renderer) CreateModuleAssets(modules []*M.Module) error {
	for _, m := range modules {
		for name, a := range m.Assets {
			file := name // getPath(name) is the identity transform here: a bare module asset carries no filenameTemplate/pathOptions to resolve.
			if existing, ok := r.assets[file]; ok && !bytesEqual(existing.Source.Data, a.Data) {
				return &ConflictError{File: file}
			}
			r.assets[file] = Asset{Source: CachedSource{Data: a.Data}, EmittedByM: m}
			if r.Hooks.ModuleAsset != nil {
				r.Hooks.ModuleAsset(m, name)
			}
		}
	}
	return nil
}

// CreateChunkAssets renders every chunk's manifest entries, consulting
// Cache by hash before invoking Render, and installs the result — or, on
// any error during one chunk, records a single ChunkRenderError for it
// and continues with the remaining chunks.
func (r *Renderer) CreateChunkAssets(chunks []*chunk.Chunk) []error {
	var errs []error
	for _, c := range chunks {
		if err := r.renderChunk(c); err != nil {
			errs = append(errs, &ChunkRenderError{Chunk: c, Cause: err})
		}
	}
	return errs
}

func (r *Renderer) renderChunk(c *chunk.Chunk) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	tmpl := r.ChunkTemplate
	if c.HasRuntime() {
		tmpl = r.MainTemplate
	}
	if tmpl == nil {
		return nil
	}

	for _, entry := range tmpl.RenderManifest(c) {
		source, err := r.resolveSource(entry)
		if err != nil {
			return err
		}

		file := r.Hooks.AssetPath.Call(tmpl.GetPath(entry.FilenameTemplate, entry.PathOptions))
		if existing, ok := r.assets[file]; ok && !bytesEqual(existing.Source.Data, source.Data) {
			return &ConflictError{File: file}
		}

		r.assets[file] = Asset{Source: source, EmittedByC: c}
		c.Files = append(c.Files, file)
		if r.Hooks.ChunkAsset != nil {
			r.Hooks.ChunkAsset(c, file)
		}
	}
	return nil
}

func (r *Renderer) resolveSource(entry ManifestEntry) (CachedSource, error) {
	if r.Cache != nil {
		var cached CachedSource
		if r.Cache.Get(entry.Identifier, &cached) && cached.Hash == entry.Hash {
			return cached, nil
		}
	}

	data, err := entry.Render()
	if err != nil {
		return CachedSource{}, err
	}
	source := CachedSource{Hash: entry.Hash, Data: data}
	if r.Cache != nil {
		r.Cache.Set(entry.Identifier, source)
	}
	return source, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
