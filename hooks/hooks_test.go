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
package hooks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bundlecore.dev/compilation/hooks"
)

func TestSyncHook_InvokesInOrder(t *testing.T) {
	var h hooks.SyncHook[int]
	var order []int
	h.Tap("a", func(v int) { order = append(order, v+1) })
	h.Tap("b", func(v int) { order = append(order, v+2) })

	h.Call(10)

	assert.Equal(t, []int{11, 12}, order)
}

func TestSyncHook_EmptyIsNoop(t *testing.T) {
	var h hooks.SyncHook[string]
	h.Call("x") // must not panic
}

func TestBailHook_FirstPresentWins(t *testing.T) {
	var h hooks.BailHook[int, string]
	var calledThird bool
	h.Tap("skip", func(int) hooks.BailResult[string] { return hooks.NoBail[string]() })
	h.Tap("hit", func(v int) hooks.BailResult[string] { return hooks.Bail("matched") })
	h.Tap("never", func(int) hooks.BailResult[string] {
		calledThird = true
		return hooks.NoBail[string]()
	})

	res := h.Call(1)
	require.True(t, res.Present)
	assert.Equal(t, "matched", res.Value)
	assert.False(t, calledThird, "bail should short-circuit remaining handlers")
}

func TestBailHook_EmptyReturnsAbsent(t *testing.T) {
	var h hooks.BailHook[int, bool]
	res := h.Call(1)
	assert.False(t, res.Present)
}

func TestWaterfallHook_ThreadsValueThroughHandlers(t *testing.T) {
	var h hooks.WaterfallHook[int]
	h.Tap("double", func(v int) int { return v * 2 })
	h.Tap("plusOne", func(v int) int { return v + 1 })

	assert.Equal(t, 7, h.Call(3)) // (3*2)+1
}

func TestWaterfallHook_EmptyReturnsSeed(t *testing.T) {
	var h hooks.WaterfallHook[string]
	assert.Equal(t, "seed", h.Call("seed"))
}

func TestAsyncSeriesHook_StopsAtFirstError(t *testing.T) {
	var h hooks.AsyncSeriesHook[int]
	boom := errors.New("boom")
	var ranThird bool
	h.Tap("ok", func(context.Context, int) error { return nil })
	h.Tap("fail", func(context.Context, int) error { return boom })
	h.Tap("never", func(context.Context, int) error {
		ranThird = true
		return nil
	})

	err := h.CallAsyncSeries(context.Background(), 0)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ranThird)
}

func TestAsyncSeriesHook_EmptySucceeds(t *testing.T) {
	var h hooks.AsyncSeriesHook[int]
	require.NoError(t, h.CallAsyncSeries(context.Background(), 0))
}

func TestAsyncSeriesHook_RespectsCancelledContext(t *testing.T) {
	var h hooks.AsyncSeriesHook[int]
	h.Tap("noop", func(context.Context, int) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.CallAsyncSeries(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
