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

// Package rebuild provides the fileTimestamps/contextTimestamps maps
// Builder.NeedRebuild consults (spec.md §6). It is a plain snapshot
// provider, not a watch loop: incremental watch across compilations is
// an explicit Non-goal of the compilation core (spec.md §1), so nothing
// here drives a seal/unseal cycle itself — a caller that wants
// file-watch-triggered rebuilds owns that loop and calls Snapshot()
// before each one. Adapted from the teacher's
// internal/platform.FSNotifyFileWatcher: same fsnotify.Watcher plumbing,
// repurposed from "push a FileWatchEvent" to "update a timestamp
// snapshot the next Snapshot() call reads."
package rebuild

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tracker watches a set of paths (files or directories standing in for
// webpack's "context" dependencies) and maintains the most recent
// modification time seen for each, ready to hand to Builder.NeedRebuild
// as fileTimestamps/contextTimestamps.
type Tracker struct {
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	files    map[string]time.Time
	contexts map[string]time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTracker starts an fsnotify watcher with no paths added yet; call
// AddFile or AddContext for each file/context dependency a build reports.
func NewTracker() (*Tracker, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		watcher:  w,
		files:    make(map[string]time.Time),
		contexts: make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t, nil
}

// AddFile begins tracking a file dependency, stamping it with the current
// time immediately so a build that never changes still has a baseline to
// compare against.
func (t *Tracker) AddFile(path string) error {
	return t.add(path, t.files)
}

// AddContext begins tracking a context (directory) dependency.
func (t *Tracker) AddContext(path string) error {
	return t.add(path, t.contexts)
}

func (t *Tracker) add(path string, into map[string]time.Time) error {
	if err := t.watcher.Add(path); err != nil {
		return err
	}
	t.mu.Lock()
	if _, tracked := into[path]; !tracked {
		into[path] = time.Now()
	}
	t.mu.Unlock()
	return nil
}

// Snapshot returns copies of the current file and context timestamp
// maps, safe to hand to Builder.NeedRebuild without further locking.
func (t *Tracker) Snapshot() (files, contexts map[string]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneTimes(t.files), cloneTimes(t.contexts)
}

// Close stops the underlying fsnotify watcher and its event-translation
// goroutine.
func (t *Tracker) Close() error {
	close(t.done)
	t.wg.Wait()
	return t.watcher.Close()
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.touch(event.Name)
		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *Tracker) touch(name string) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, tracked := t.files[name]; tracked {
		t.files[name] = now
	}
	if _, tracked := t.contexts[name]; tracked {
		t.contexts[name] = now
	}
}

func cloneTimes(m map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
