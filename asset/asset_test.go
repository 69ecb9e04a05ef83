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
package asset_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bundlecore.dev/compilation/asset"
	"go.bundlecore.dev/compilation/chunk"
	M "go.bundlecore.dev/compilation/module"
)

type stubTemplate struct {
	entries func(c *chunk.Chunk) []asset.ManifestEntry
}

func (t *stubTemplate) RenderManifest(c *chunk.Chunk) []asset.ManifestEntry { return t.entries(c) }
func (t *stubTemplate) GetPath(filenameTemplate string, _ any) string       { return filenameTemplate }

type memCache struct {
	entries map[string]asset.CachedSource
	hits    int
}

func newMemCache() *memCache { return &memCache{entries: map[string]asset.CachedSource{}} }

func (c *memCache) Get(key string, dst any) bool {
	v, ok := c.entries[key]
	if !ok {
		return false
	}
	*dst.(*asset.CachedSource) = v
	c.hits++
	return true
}
func (c *memCache) Set(key string, value any) { c.entries[key] = value.(asset.CachedSource) }

func TestRenderer_CreateModuleAssets_InstallsEachAsset(t *testing.T) {
	m := M.New("a.js", nil)
	m.Assets = map[string]M.Asset{"logo.png": {Name: "logo.png", Data: []byte("png-bytes")}}

	r := asset.New(nil, nil, nil, &asset.Hooks{})
	require.NoError(t, r.CreateModuleAssets([]*M.Module{m}))

	got, ok := r.Assets()["logo.png"]
	require.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), got.Source.Data)
	assert.Same(t, m, got.EmittedByM)
}

func TestRenderer_CreateModuleAssets_ConflictingContentErrors(t *testing.T) {
	a := M.New("a.js", nil)
	a.Assets = map[string]M.Asset{"shared.png": {Data: []byte("one")}}
	b := M.New("b.js", nil)
	b.Assets = map[string]M.Asset{"shared.png": {Data: []byte("two")}}

	r := asset.New(nil, nil, nil, &asset.Hooks{})
	err := r.CreateModuleAssets([]*M.Module{a, b})

	var conflict *asset.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "shared.png", conflict.File)
}

func TestRenderer_CreateChunkAssets_RendersAndInstallsFiles(t *testing.T) {
	c := chunk.New("main", nil, 1, true)
	tmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		return []asset.ManifestEntry{{
			Identifier:       "main.js",
			Hash:             "h1",
			Render:           func() ([]byte, error) { return []byte("console.log(1)"), nil },
			FilenameTemplate: "main.js",
		}}
	}}

	r := asset.New(tmpl, tmpl, nil, &asset.Hooks{})
	errs := r.CreateChunkAssets([]*chunk.Chunk{c})

	require.Empty(t, errs)
	got, ok := r.Assets()["main.js"]
	require.True(t, ok)
	assert.Equal(t, []byte("console.log(1)"), got.Source.Data)
	assert.Equal(t, []string{"main.js"}, c.Files)
}

func TestRenderer_CreateChunkAssets_CacheHitSkipsRender(t *testing.T) {
	c := chunk.New("main", nil, 1, true)
	cache := newMemCache()
	cache.entries["main.js"] = asset.CachedSource{Hash: "h1", Data: []byte("cached")}

	renderCalls := 0
	tmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		return []asset.ManifestEntry{{
			Identifier: "main.js",
			Hash:       "h1",
			Render: func() ([]byte, error) {
				renderCalls++
				return []byte("fresh"), nil
			},
			FilenameTemplate: "main.js",
		}}
	}}

	r := asset.New(tmpl, tmpl, cache, &asset.Hooks{})
	errs := r.CreateChunkAssets([]*chunk.Chunk{c})

	require.Empty(t, errs)
	assert.Equal(t, 0, renderCalls, "matching hash must reuse the cached source instead of re-rendering")
	assert.Equal(t, []byte("cached"), r.Assets()["main.js"].Source.Data)
}

func TestRenderer_CreateChunkAssets_HashMismatchReRenders(t *testing.T) {
	c := chunk.New("main", nil, 1, true)
	cache := newMemCache()
	cache.entries["main.js"] = asset.CachedSource{Hash: "stale", Data: []byte("old")}

	tmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		return []asset.ManifestEntry{{
			Identifier:       "main.js",
			Hash:             "fresh-hash",
			Render:           func() ([]byte, error) { return []byte("new"), nil },
			FilenameTemplate: "main.js",
		}}
	}}

	r := asset.New(tmpl, tmpl, cache, &asset.Hooks{})
	require.Empty(t, r.CreateChunkAssets([]*chunk.Chunk{c}))

	assert.Equal(t, []byte("new"), r.Assets()["main.js"].Source.Data)
}

func TestRenderer_CreateChunkAssets_RenderErrorBecomesChunkRenderError(t *testing.T) {
	c := chunk.New("main", nil, 1, true)
	boom := errors.New("boom")
	tmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		return []asset.ManifestEntry{{
			Identifier: "main.js",
			Render:     func() ([]byte, error) { return nil, boom },
		}}
	}}

	r := asset.New(tmpl, tmpl, nil, &asset.Hooks{})
	errs := r.CreateChunkAssets([]*chunk.Chunk{c})

	require.Len(t, errs, 1)
	var renderErr *asset.ChunkRenderError
	require.ErrorAs(t, errs[0], &renderErr)
	assert.Same(t, c, renderErr.Chunk)
	assert.ErrorIs(t, renderErr, boom)
}

func TestRenderer_CreateChunkAssets_AssetPathWaterfallRewritesFilename(t *testing.T) {
	c := chunk.New("main", nil, 1, true)
	tmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		return []asset.ManifestEntry{{
			Identifier:       "main.js",
			Hash:             "h1",
			Render:           func() ([]byte, error) { return []byte("console.log(1)"), nil },
			FilenameTemplate: "main.js",
		}}
	}}

	h := &asset.Hooks{}
	h.AssetPath.Tap("add-hash-prefix", func(path string) string { return "static/" + path })

	r := asset.New(tmpl, tmpl, nil, h)
	require.Empty(t, r.CreateChunkAssets([]*chunk.Chunk{c}))

	_, ok := r.Assets()["main.js"]
	assert.False(t, ok, "the unrewritten path must not be installed")
	got, ok := r.Assets()["static/main.js"]
	require.True(t, ok)
	assert.Equal(t, []byte("console.log(1)"), got.Source.Data)
	assert.Equal(t, []string{"static/main.js"}, c.Files)
}

func TestRenderer_CreateChunkAssets_NonRuntimeChunkUsesChunkTemplate(t *testing.T) {
	var usedMain, usedChunk bool
	mainTmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		usedMain = true
		return nil
	}}
	chunkTmpl := &stubTemplate{entries: func(c *chunk.Chunk) []asset.ManifestEntry {
		usedChunk = true
		return nil
	}}

	lazy := chunk.New("lazy", nil, 1, false)
	r := asset.New(mainTmpl, chunkTmpl, nil, &asset.Hooks{})
	require.Empty(t, r.CreateChunkAssets([]*chunk.Chunk{lazy}))

	assert.False(t, usedMain)
	assert.True(t, usedChunk)
}
