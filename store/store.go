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

// Package store implements ModuleStore: the identity-keyed module table
// and the content cache with timestamp-based invalidation (spec.md §4.3).
package store

import (
	"sync"
	"time"

	M "go.bundlecore.dev/compilation/module"
)

// Cache is the optional side-table ModuleStore consults before building a
// module from scratch, keyed by cache group plus module identifier.
// compilation.New backs it with the disk-backed cachestore.ModuleCache
// (gob-encoded Module instances) when no cache is supplied; MemoryCache
// keeps live instances in process instead.
type Cache interface {
	Get(key string) (*M.Module, bool)
	Set(key string, m *M.Module)
}

// MemoryCache is an in-process Cache implementation.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*M.Module
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]*M.Module)}
}

func (c *MemoryCache) Get(key string) (*M.Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.items[key]
	return m, ok
}

func (c *MemoryCache) Set(key string, m *M.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = m
}

// Outcome is the three-valued result of AddModule. Spec.md §9 explicitly
// warns against collapsing this to a bool: Duplicate and CacheHit both
// mean "don't use the module instance you passed in", but for different
// reasons and with different instances to use instead.
type Outcome int

const (
	// Inserted means module was new and is now the instance of record.
	Inserted Outcome = iota
	// Duplicate means another module already holds this identifier; the
	// caller must look it up via Store.Get and discard the one it passed.
	Duplicate
	// CacheHit means a previously cached instance for this identifier is
	// still fresh and has been reinstated; the caller must use Result.Module
	// instead of the one it passed in.
	CacheHit
)

// AddResult is AddModule's return value.
type AddResult struct {
	Outcome Outcome
	// Module is populated for CacheHit; for Inserted it echoes the module
	// that was passed in for convenience.
	Module *M.Module
}

// Store is ModuleStore: `_modules` (identifier -> Module), `modules`
// (insertion order), and an optional Cache.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*M.Module
	ordered []*M.Module

	cache Cache

	fileTimestamps    map[string]time.Time
	contextTimestamps map[string]time.Time
}

// New constructs a Store. cache may be nil (no caching).
func New(cache Cache) *Store {
	return &Store{
		byID:  make(map[string]*M.Module),
		cache: cache,
	}
}

// SetTimestamps installs the file/context timestamp maps NeedRebuild is
// checked against. Until both are set, AddModule skips the NeedRebuild
// check and treats every cached entry as stale: it is unbuilt and the
// passed-in module is inserted instead (spec.md §4.3 step 2: "If
// fileTimestamps and contextTimestamps are both available...").
func (s *Store) SetTimestamps(fileTimestamps, contextTimestamps map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileTimestamps = fileTimestamps
	s.contextTimestamps = contextTimestamps
}

func cacheName(cacheGroup, identifier string) string {
	if cacheGroup == "" {
		cacheGroup = "m"
	}
	return cacheGroup + identifier
}

// AddModule implements spec.md §4.3's addModule. See Outcome for the
// three-valued contract.
func (s *Store) AddModule(m *M.Module, cacheGroup string) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[m.Identifier]; exists {
		return AddResult{Outcome: Duplicate, Module: s.byID[m.Identifier]}
	}

	if s.cache != nil {
		name := cacheName(cacheGroup, m.Identifier)
		if cached, ok := s.cache.Get(name); ok {
			if s.fileTimestamps != nil && s.contextTimestamps != nil &&
				(cached.Builder == nil || !cached.Builder.NeedRebuild(cached, s.fileTimestamps, s.contextTimestamps)) {
				cached.Disconnect()
				s.insertLocked(cached)
				return AddResult{Outcome: CacheHit, Module: cached}
			}
			if cached.Builder != nil {
				cached.Builder.Unbuild(cached)
			}
			// Fall through: the stale cached instance is discarded, m is
			// inserted fresh and will overwrite the cache entry below.
		}
		s.insertLocked(m)
		s.cache.Set(name, m)
		return AddResult{Outcome: Inserted, Module: m}
	}

	s.insertLocked(m)
	return AddResult{Outcome: Inserted, Module: m}
}

func (s *Store) insertLocked(m *M.Module) {
	s.byID[m.Identifier] = m
	s.ordered = append(s.ordered, m)
}

// Get looks up a module by identifier.
func (s *Store) Get(identifier string) (*M.Module, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[identifier]
	return m, ok
}

// Modules returns every inserted module in insertion order. Once
// SealLifecycle's sortModules runs, callers should prefer the
// Compilation's own modules slice (sorted by Index) over this one.
func (s *Store) Modules() []*M.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*M.Module, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len reports how many modules have been inserted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ordered)
}
