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

// Package cachestore is the disk-backed key/value cache shared by
// store.Cache (cached Module instances) and asset.Cache (rendered chunk
// sources), both modelled on spec.md §6's single compilation.cache
// contract. It adapts the teacher's workspace.HTTPCache: the same
// gregjones/httpcache/diskcache.New(dir) on-disk byte store, rooted by
// default at adrg/xdg.CacheHome the way workspace/remote.go and
// validate/validate.go do, but serving arbitrary gob-encoded values
// instead of cached HTTP responses.
package cachestore

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/gregjones/httpcache/diskcache"

	M "go.bundlecore.dev/compilation/module"
)

// byteCache is the subset of diskcache.Cache this package depends on,
// named locally so tests can substitute an in-memory double without
// touching disk.
type byteCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, responseBytes []byte)
	Delete(key string)
}

// DiskCache is a gob-encoding key/value cache over a byteCache, used as
// both store.Cache and asset.Cache's backing: each caller registers its
// own Go type with gob.Register and decodes into a pointer of that type.
type DiskCache struct {
	mu    sync.Mutex
	cache byteCache
}

// DefaultDir returns the default root directory for a named cache
// instance (one per concern: "modules", "assets"), rooted at
// xdg.CacheHome the way the teacher's workspace/remote.go does for
// package caches.
func DefaultDir(name string) string {
	return filepath.Join(xdg.CacheHome, "bundlecore", name)
}

// NewDisk constructs a DiskCache rooted at dir, creating it (and any
// missing parents) as gregjones/httpcache/diskcache.New does internally.
func NewDisk(dir string) *DiskCache {
	return &DiskCache{cache: diskcache.New(dir)}
}

// Get decodes the value stored under key into dst (a pointer), reporting
// whether an entry was found and successfully decoded.
func (c *DiskCache) Get(key string, dst any) bool {
	c.mu.Lock()
	raw, ok := c.cache.Get(key)
	c.mu.Unlock()
	if !ok {
		return false
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(dst); err != nil {
		return false
	}
	return true
}

// Set gob-encodes value and stores it under key. Encoding failures are
// swallowed: a persistent cache is an optimization, never a correctness
// requirement (spec.md §6 lists it as "optional").
func (c *DiskCache) Set(key string, value any) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(key, buf.Bytes())
}

// Delete removes the entry stored under key, if any.
func (c *DiskCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(key)
}

// ModuleCache adapts a DiskCache to store.Cache's *module.Module-shaped
// Get/Set, since store.Store needs a typed cache rather than DiskCache's
// generic Get(key, dst any)/Set(key, value any) (which asset.Renderer
// consumes directly, unadapted, as asset.Cache).
type ModuleCache struct {
	*DiskCache
}

// NewModuleCache wraps a DiskCache rooted at dir for use as store.Cache.
func NewModuleCache(dir string) *ModuleCache {
	return &ModuleCache{DiskCache: NewDisk(dir)}
}

// Get decodes the module cached under key, if any. A module whose
// Builder (or dependency set) holds a concrete type this process never
// gob.Register-ed simply never got cached in the first place, since Set
// swallows encode errors the same way DiskCache.Set does.
func (c *ModuleCache) Get(key string) (*M.Module, bool) {
	var m M.Module
	if !c.DiskCache.Get(key, &m) {
		return nil, false
	}
	return &m, true
}

// Set caches m under key, best-effort (see Get).
func (c *ModuleCache) Set(key string, m *M.Module) {
	c.DiskCache.Set(key, m)
}
