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

// Package semaphore implements the bounded-concurrency permit gate that
// guards every factory.create and module.build invocation in the
// compilation core. Default capacity is 100, matching the parallelism
// budget used by the rest of the pipeline.
package semaphore

import "context"

// DefaultCapacity is the permit count used when none is configured.
const DefaultCapacity = 100

// Semaphore is a counting permit gate. Waiters are served in roughly FIFO
// order (the order in which their acquire reached the front of the
// underlying channel's buffer), per the "FIFO of the waiter queue"
// guarantee in the specification; there is no stronger fairness promise.
type Semaphore struct {
	permits chan struct{}
}

// New creates a Semaphore with the given capacity. A non-positive capacity
// is replaced by DefaultCapacity.
func New(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Semaphore{permits: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is available or ctx is cancelled. On
// success it returns a release function that must be called exactly once,
// on every exit path (including error paths), to return the permit.
func (s *Semaphore) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.permits <- struct{}{}:
		return s.releaseOnce(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire attempts to acquire a permit without blocking. It reports
// whether a permit was obtained; already-scheduled work that cannot be
// cancelled in-band (per the concurrency model's no-cancellation note)
// uses this to avoid blocking a shutdown path on a full semaphore.
func (s *Semaphore) TryAcquire() (release func(), ok bool) {
	select {
	case s.permits <- struct{}{}:
		return s.releaseOnce(), true
	default:
		return nil, false
	}
}

func (s *Semaphore) releaseOnce() func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-s.permits
	}
}

// Capacity returns the configured permit count.
func (s *Semaphore) Capacity() int {
	return cap(s.permits)
}

// InUse returns the number of permits currently held.
func (s *Semaphore) InUse() int {
	return len(s.permits)
}
