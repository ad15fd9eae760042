// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package coalesce de-duplicates concurrent work by key: for any key with a
// call already in flight, later callers become followers and observe the
// leader's result instead of re-running the producer.
//
// golang.org/x/sync/singleflight solves the same problem for the teacher's
// hardlink index cache (internal/services/automations/hardlink_index.go),
// but its Do/DoChan calls are not generic and a follower cannot opt out
// early on its own context cancellation without also racing the leader's
// completion by hand. Group below is shaped the same way (one map entry per
// in-flight key, removed as soon as the leader finishes) but is generic
// over both the key and value types and lets each follower race its own
// context against the shared result.
package coalesce

import (
	"context"
	"sync"

	"github.com/getlantern/replica-search/internal/apperr"
)

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Group coalesces concurrent Work calls sharing the same key so the
// producer function runs at most once per in-flight key.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

// NewGroup constructs an empty Group.
func NewGroup[K comparable, V any]() *Group[K, V] {
	return &Group[K, V]{calls: make(map[K]*call[V])}
}

// Work runs producer for key if no call is currently in flight for it,
// otherwise waits for the in-flight call's result. All callers sharing a
// leader receive the exact same value and error. The in-flight entry is
// removed as soon as the leader's producer returns, so the next call for
// key starts a fresh flight.
//
// If ctx is cancelled while this caller is a follower, Work returns a
// kind-Cancelled error without affecting the leader or other followers. If
// ctx is cancelled while this caller is the leader, that cancellation is
// expected to surface through producer's own error return, which followers
// then observe as the shared result.
func (g *Group[K, V]) Work(ctx context.Context, key K, producer func(context.Context) (V, error)) (V, error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		return await(ctx, c)
	}

	c := &call[V]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = producer(ctx)
	close(c.done)

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()

	return c.val, c.err
}

func await[V any](ctx context.Context, c *call[V]) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, apperr.Wrap(apperr.Cancelled, "coalesce.Work", ctx.Err())
	}
}
