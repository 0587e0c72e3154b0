// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// EventHub is a synchronous publish/subscribe channel. Publish fans an
// event out to every subscriber on the calling goroutine; delivery is
// at-least-once, so listeners must be idempotent. Subscribing and
// unsubscribing are safe under concurrent publishes, and a listener may
// itself publish as long as the chain terminates.
type EventHub[T any] struct {
	seq  atomic.Uint64
	subs *xsync.MapOf[uint64, func(T)]
}

// NewEventHub returns an empty hub.
func NewEventHub[T any]() *EventHub[T] {
	return &EventHub[T]{subs: xsync.NewMapOf[uint64, func(T)]()}
}

// Subscribe registers fn and returns a cancel function that removes it.
// Cancel is idempotent.
func (h *EventHub[T]) Subscribe(fn func(T)) (cancel func()) {
	token := h.seq.Add(1)
	h.subs.Store(token, fn)
	return func() { h.subs.Delete(token) }
}

// Publish delivers ev to every current subscriber.
func (h *EventHub[T]) Publish(ev T) {
	h.subs.Range(func(_ uint64, fn func(T)) bool {
		fn(ev)
		return true
	})
}

// Len returns the number of live subscribers.
func (h *EventHub[T]) Len() int { return h.subs.Size() }

// CacheAction discriminates cache invalidation events.
type CacheAction int

// Constant cache actions.
const (
	// ActionInvalidate evicts one element, addressed by (type, id).
	ActionInvalidate CacheAction = iota

	// ActionInvalidateType evicts every element of one type.
	ActionInvalidateType

	// ActionCleared announces that a peer cleared the shared caches;
	// receivers clear locally without re-notifying.
	ActionCleared
)

func (a CacheAction) String() string {
	switch a {
	case ActionInvalidate:
		return "invalidate"
	case ActionInvalidateType:
		return "invalidate-type"
	case ActionCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// CacheEvent is the payload published on a connection's cache hub when
// schema metadata changes. Type and ID are meaningful for the
// invalidate actions only.
type CacheEvent struct {
	Action CacheAction
	Type   SchemaType
	ID     ID
}
