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

// Package hash implements HashEngine (spec.md §4.9): compilation-wide,
// per-module and per-chunk content hashing, seeded from templates and
// folded together in a fixed order so the result is reproducible across
// runs over identical input (spec property 6).
//
// Grounded on the teacher's own repeated crypto/sha256 use in
// generate/session.go, generate/session_deps.go and
// generate/session_watch.go, all three of which hash file or module
// content with sha256.New()/sha256.Sum256 to detect change — Engine's
// NewFunc plays the same role their sha256.New() call does, just made
// swappable.
package hash

import (
	"encoding/base64"
	"encoding/hex"
	"hash"
	"sort"

	"go.bundlecore.dev/compilation/chunk"
	M "go.bundlecore.dev/compilation/module"
)

// Digest selects the text encoding HashEngine renders a sum through —
// spec.md §4.9's output.hashDigest option.
type Digest int

const (
	DigestHex Digest = iota
	DigestBase64
)

// Template is the minimal slice of MainTemplate/ChunkTemplate/
// ModuleTemplate spec.md §6 requires HashEngine to consult: folding
// template-specific state (e.g. runtime bootstrap version) into a hash
// before any module- or chunk-specific content is added.
type Template interface {
	UpdateHash(h hash.Hash)
}

// ChunkTemplate additionally knows how to fold a specific chunk's
// identity into a hash, distinguishing the runtime (main) template from
// the plain chunk template per spec.md §4.9 step 4.
type ChunkTemplate interface {
	Template
	UpdateHashForChunk(h hash.Hash, c *chunk.Chunk)
}

// Engine is HashEngine: digest backend (NewFunc) and encoding (Digest,
// DigestLength) are both configuration, mirroring
// compilation.Options.HashFunction/HashDigest/HashDigestLength.
type Engine struct {
	NewFunc     func() hash.Hash
	DigestKind  Digest
	DigestLength int // 0 means "no truncation" for renderedHash
	Salt        string

	MainTemplate  ChunkTemplate
	ChunkTemplate ChunkTemplate

	// ModuleTemplates is consulted in sorted key order (spec.md §4.9 step
	// 1: "each moduleTemplates[k].updateHash ... in sorted key order").
	ModuleTemplates map[string]Template
}

// ChunkHashHook is fired once per chunk, after that chunk's content and
// template state have been fed into its hasher but before the digest is
// finalised into Chunk.Hash and folded into the compilation hash — spec.md
// §4.9 step 4's "chunk-hash" hook.
type ChunkHashHook func(c *chunk.Chunk)

// CreateHash runs the full spec.md §4.9 procedure over modules (insertion
// order) and chunks, returning the finished compilation hash and its
// truncated renderedHash form. childHashes and messages are folded in
// verbatim, in the order the caller supplies them (spec.md step 1: child
// compilation hashes, then warning/error messages).
func (e *Engine) CreateHash(modules []*M.Module, chunks []*chunk.Chunk, childHashes []string, messages []string, onChunkHash ChunkHashHook) (fullHash, renderedHash string) {
	h := e.NewFunc()
	if e.Salt != "" {
		h.Write([]byte(e.Salt))
	}
	if e.MainTemplate != nil {
		e.MainTemplate.UpdateHash(h)
	}
	if e.ChunkTemplate != nil {
		e.ChunkTemplate.UpdateHash(h)
	}
	for _, k := range sortedKeys(e.ModuleTemplates) {
		e.ModuleTemplates[k].UpdateHash(h)
	}
	for _, child := range childHashes {
		h.Write([]byte(child))
	}
	for _, msg := range messages {
		h.Write([]byte(msg))
	}

	e.hashModules(modules)
	e.hashChunks(h, chunks, onChunkHash)

	fullHash = e.encode(h.Sum(nil))
	return fullHash, truncate(fullHash, e.DigestLength)
}

func (e *Engine) hashModules(modules []*M.Module) {
	for _, m := range modules {
		h := e.NewFunc()
		if m.Builder != nil {
			m.Builder.UpdateHash(m, h)
		}
		m.Hash = e.encode(h.Sum(nil))
		m.RenderedHash = truncate(m.Hash, e.DigestLength)
	}
}

// hashChunks implements spec.md §4.9 steps 3-4: non-runtime chunks are
// hashed before runtime chunks because a runtime chunk's hash folds in
// the (already-finalised) hashes of the non-runtime chunks it depends on.
func (e *Engine) hashChunks(compilationHash hash.Hash, chunks []*chunk.Chunk, onChunkHash ChunkHashHook) {
	ordered := make([]*chunk.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return !ordered[i].HasRuntime() && ordered[j].HasRuntime()
	})

	for _, c := range ordered {
		h := e.NewFunc()
		if e.Salt != "" {
			h.Write([]byte(e.Salt))
		}
		for _, m := range c.Modules() {
			h.Write([]byte(m.Hash))
		}
		tmpl := e.ChunkTemplate
		if c.HasRuntime() {
			tmpl = e.MainTemplate
		}
		if tmpl != nil {
			tmpl.UpdateHashForChunk(h, c)
		}
		if onChunkHash != nil {
			onChunkHash(c)
		}
		sum := h.Sum(nil)
		c.Hash = e.encode(sum)
		c.RenderedHash = truncate(c.Hash, e.DigestLength)
		compilationHash.Write(sum)
	}
}

// ModifyHash implements spec.md §4.9's modifyHash(update): re-digesting
// fullHash || update to produce a new fullHash/hash pair, without
// recomputing any module or chunk hash.
func (e *Engine) ModifyHash(fullHash, update string) (newFullHash, newRenderedHash string) {
	h := e.NewFunc()
	h.Write([]byte(fullHash))
	h.Write([]byte(update))
	newFullHash = e.encode(h.Sum(nil))
	return newFullHash, truncate(newFullHash, e.DigestLength)
}

func (e *Engine) encode(sum []byte) string {
	if e.DigestKind == DigestBase64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

func truncate(s string, n int) string {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

func sortedKeys(m map[string]Template) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
