// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package profilecache implements the Profile Cache (C2): the same
// coalescing Requested/Loaded/Failed pattern as mediacache, keyed by user
// ID instead of MXC URI, with each entry additionally carrying a per-room
// membership map so room-scoped lookups (display name overrides, power
// levels) don't require a second fetch.
package profilecache

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/notify"
)

// Status mirrors mediacache.Status for a profile entry.
type Status int

const (
	StatusRequested Status = iota
	StatusLoaded
	StatusFailed
)

// Entry is one cached profile, plus whatever per-room membership details
// have been learned for it so far.
type Entry struct {
	mu      sync.RWMutex
	status  Status
	profile model.UserProfile
	err     error
	members map[model.RoomID]model.RoomMember
}

// Snapshot is an immutable copy of an Entry's state.
type Snapshot struct {
	Status  Status
	Profile model.UserProfile
	Err     error
}

func (e *Entry) snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{Status: e.status, Profile: e.profile, Err: e.err}
}

// Member returns the cached membership for roomID, if any was recorded via
// SetMember.
func (e *Entry) Member(roomID model.RoomID) (model.RoomMember, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.members[roomID]
	return m, ok
}

// SetMember records per-room membership learned from a FetchRoomMembers
// request, answering later CheckCanUserSendMessage-style lookups without
// a refetch (spec §4.5).
func (e *Entry) SetMember(roomID model.RoomID, member model.RoomMember) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.members == nil {
		e.members = make(map[model.RoomID]model.RoomMember)
	}
	e.members[roomID] = member
}

func (e *Entry) complete(profile model.UserProfile, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status = StatusFailed
		e.err = err
		return
	}
	e.status = StatusLoaded
	e.profile = profile
}

// Cache is the Profile Cache (C2).
type Cache struct {
	log        zerolog.Logger
	dispatcher *dispatch.Dispatcher

	mu      sync.Mutex
	entries map[model.UserID]*Entry
}

// New constructs an empty Cache.
func New(log zerolog.Logger, dispatcher *dispatch.Dispatcher) *Cache {
	return &Cache{
		log:        log.With().Str("component", "profilecache").Logger(),
		dispatcher: dispatcher,
		entries:    make(map[model.UserID]*Entry),
	}
}

// Entry returns the cache entry for userID, creating an empty one if
// absent, so SetMember can be called for a user whose profile has not yet
// been fetched.
func (c *Cache) Entry(userID model.UserID) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		e = &Entry{}
		c.entries[userID] = e
	}
	return e
}

// TryGet is the non-blocking accessor.
func (c *Cache) TryGet(userID model.UserID) (Snapshot, bool) {
	c.mu.Lock()
	entry, ok := c.entries[userID]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return entry.snapshot(), true
}

// TryGetOrFetch mirrors mediacache.Cache.TryGetOrFetch: insert Requested
// before dispatching so a racing second call coalesces onto the same
// fetch. roomID/localOnly are forwarded to GetUserProfileRequest exactly
// as spec §4.1 names them.
func (c *Cache) TryGetOrFetch(userID model.UserID, roomID model.RoomID, localOnly bool) Snapshot {
	c.mu.Lock()
	entry, existed := c.entries[userID]
	if !existed {
		entry = &Entry{status: StatusRequested}
		c.entries[userID] = entry
	}
	c.mu.Unlock()
	if existed {
		return entry.snapshot()
	}

	c.dispatcher.Submit(dispatch.GetUserProfileRequest{
		UserID:    userID,
		RoomID:    roomID,
		LocalOnly: localOnly,
	})
	return entry.snapshot()
}

// Complete is called by the GetUserProfileRequest handler once the
// homeserver (or local cache, for LocalOnly lookups) has answered.
func (c *Cache) Complete(userID model.UserID, profile model.UserProfile, err error) {
	entry := c.Entry(userID)
	entry.complete(profile, err)
	notify.Signal("", "")
}
