// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package reactive provides the small broadcaster primitives that every
// component in the core uses to publish state to whichever presentation
// layer is attached: a value-with-listeners cell and a keyed notifier.
// Both are adapted from the gomuks store package's EventDispatcher and
// MultiNotifier, generalized for reuse outside the client-state store
// they originated in.
package reactive

import (
	"sync"

	"go.mau.fi/util/exslices"
)

// Broadcaster holds a current value of type T and notifies any registered
// listeners whenever a new value is Emitted. Current() is always safe to
// call and never blocks on a slow listener.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners []*func(T)
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

func NewBroadcasterWithValue[T any](initial T) *Broadcaster[T] {
	return &Broadcaster[T]{value: initial}
}

// Emit stores val as the current value and synchronously invokes every
// listener. Listeners must not block for long; callers that need
// asynchronous fan-out should have their listener hand off to a channel.
func (b *Broadcaster[T]) Emit(val T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = val
	for _, l := range b.listeners {
		(*l)(val)
	}
}

// Current returns the most recently Emitted value (or the zero value of T
// if Emit has never been called).
func (b *Broadcaster[T]) Current() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

// SetCurrent overwrites the stored value without notifying listeners. It
// exists for callers that need to reconcile the cached value with a
// separately-delivered update before deciding whether that update is
// notification-worthy (see rooms.RoomInfo).
func (b *Broadcaster[T]) SetCurrent(val T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = val
}

// Listen registers listener and returns a function that removes it. The
// returned function is idempotent.
func (b *Broadcaster[T]) Listen(listener func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ptr := &listener
	b.listeners = append(b.listeners, ptr)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listeners = exslices.FastDeleteItem(b.listeners, ptr)
	}
}

// MultiNotifier fans out parameterless notifications keyed by an
// arbitrary comparable key, for components (like per-room state caches)
// that need many independent "this changed" signals without carrying a
// value.
type MultiNotifier[Key comparable] struct {
	mu          sync.RWMutex
	subscribers map[Key][]*func()
}

func (mn *MultiNotifier[Key]) Notify(key Key) {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	for _, sub := range mn.subscribers[key] {
		(*sub)()
	}
}

func (mn *MultiNotifier[Key]) Listen(key Key, listener func()) (unsubscribe func()) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	if mn.subscribers == nil {
		mn.subscribers = make(map[Key][]*func())
	}
	ptr := &listener
	mn.subscribers[key] = append(mn.subscribers[key], ptr)
	return func() {
		mn.mu.Lock()
		defer mn.mu.Unlock()
		mn.subscribers[key] = exslices.FastDeleteItem(mn.subscribers[key], ptr)
		if len(mn.subscribers[key]) == 0 {
			delete(mn.subscribers, key)
		}
	}
}
