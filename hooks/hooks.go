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

// Package hooks implements the four plugin-invocation styles the
// compilation core's ~30 named phases are built from: sync, bail,
// waterfall, and async-series. Each style is its own generic type with
// its own Tap/Call method signature, rather than one untyped dispatcher,
// so a handler's contract (does it short-circuit? does it transform a
// value? can it fail?) is visible at the call site.
package hooks

import (
	"context"
	"sync"
)

// handler pairs a registered callback with the name it was tapped under,
// purely for diagnostics (a stuck or panicking hook can be attributed to
// the plugin that registered it).
type handler[F any] struct {
	name string
	fn   F
}

// SyncHook invokes every tapped handler, in registration order, discarding
// return values. Used for fire-and-forget lifecycle notifications like
// "seal" or "succeed-module".
type SyncHook[T any] struct {
	mu       sync.Mutex
	handlers []handler[func(T)]
}

// Tap registers fn under name.
func (h *SyncHook[T]) Tap(name string, fn func(T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler[func(T)]{name, fn})
}

// Call invokes every handler with arg, in registration order.
func (h *SyncHook[T]) Call(arg T) {
	h.mu.Lock()
	hs := make([]handler[func(T)], len(h.handlers))
	copy(hs, h.handlers)
	h.mu.Unlock()

	for _, hd := range hs {
		hd.fn(arg)
	}
}

// BailResult is the return value of a BailHook handler: a handler that
// does not want to short-circuit returns Present=false (the "undefined"
// the specification contrasts with a real short-circuiting value).
type BailResult[R any] struct {
	Value   R
	Present bool
}

// Bail constructs a short-circuiting BailResult.
func Bail[R any](value R) BailResult[R] {
	return BailResult[R]{Value: value, Present: true}
}

// NoBail constructs a BailResult that lets the next handler run.
func NoBail[R any]() BailResult[R] {
	return BailResult[R]{}
}

// BailHook invokes handlers in order; the first one to return a Present
// result short-circuits the remaining handlers and is returned. An empty
// handler set (or one where every handler abstains) returns a non-Present
// zero value, matching spec.md's "empty bail returns undefined".
type BailHook[T any, R any] struct {
	mu       sync.Mutex
	handlers []handler[func(T) BailResult[R]]
}

// Tap registers fn under name.
func (h *BailHook[T, R]) Tap(name string, fn func(T) BailResult[R]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler[func(T) BailResult[R]]{name, fn})
}

// Call invokes handlers in order until one returns Present=true.
func (h *BailHook[T, R]) Call(arg T) BailResult[R] {
	h.mu.Lock()
	hs := make([]handler[func(T) BailResult[R]], len(h.handlers))
	copy(hs, h.handlers)
	h.mu.Unlock()

	for _, hd := range hs {
		if r := hd.fn(arg); r.Present {
			return r
		}
	}
	return BailResult[R]{}
}

// WaterfallHook invokes handlers in order, threading each return value as
// the next handler's input. An empty handler set returns the seed
// unchanged.
type WaterfallHook[T any] struct {
	mu       sync.Mutex
	handlers []handler[func(T) T]
}

// Tap registers fn under name.
func (h *WaterfallHook[T]) Tap(name string, fn func(T) T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler[func(T) T]{name, fn})
}

// Call threads seed through every handler in registration order.
func (h *WaterfallHook[T]) Call(seed T) T {
	h.mu.Lock()
	hs := make([]handler[func(T) T], len(h.handlers))
	copy(hs, h.handlers)
	h.mu.Unlock()

	value := seed
	for _, hd := range hs {
		value = hd.fn(value)
	}
	return value
}

// AsyncSeriesHook invokes handlers sequentially; each may block or return
// an error. The first error short-circuits the remaining handlers. An
// empty handler set completes immediately with a nil error. ctx
// cancellation is honored between handlers even if an individual handler
// ignores it.
type AsyncSeriesHook[T any] struct {
	mu       sync.Mutex
	handlers []handler[func(context.Context, T) error]
}

// Tap registers fn under name.
func (h *AsyncSeriesHook[T]) Tap(name string, fn func(context.Context, T) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler[func(context.Context, T) error]{name, fn})
}

// CallAsyncSeries invokes handlers in order, stopping at the first error
// or at ctx cancellation.
func (h *AsyncSeriesHook[T]) CallAsyncSeries(ctx context.Context, arg T) error {
	h.mu.Lock()
	hs := make([]handler[func(context.Context, T) error], len(h.handlers))
	copy(hs, h.handlers)
	h.mu.Unlock()

	for _, hd := range hs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := hd.fn(ctx, arg); err != nil {
			return err
		}
	}
	return nil
}
