// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rooms

import (
	"context"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/timeline"
)

// TimelineFeed opens the per-room batched diff stream a new room's C6 task
// should consume. It is supplied by whatever owns the sync connection;
// the reconciler itself is agnostic to how that stream is produced.
type TimelineFeed func(ctx context.Context, roomID model.RoomID) <-chan timeline.DiffBatch

// ListUpdateKind enumerates the room-list changes the reconciler reports
// through onListUpdate, a restriction of spec.md §6's RoomsListUpdate
// tagged union to the variants this reconciler's diff-application logic
// actually distinguishes (Tags/Status/NotLoaded have no producer here; see
// DESIGN.md's Open Question entry on this simplification).
type ListUpdateKind int

const (
	ListUpdateRoomAdded ListUpdateKind = iota
	ListUpdateRoomAvatarChanged
	ListUpdateRoomNameChanged
	ListUpdateRoomLatestEventChanged
	ListUpdateRoomRemoved
	ListUpdateCleared
	ListUpdateLoaded
)

// Reconciler is the Room-List Reconciler (C5): it consumes an ordered
// stream of diffs over a vector of opaque room summaries and keeps the
// Registry and its published room list in sync.
type Reconciler struct {
	registry   *Registry
	dispatcher *dispatch.Dispatcher
	feed       TimelineFeed
	onUpdate   func(kind ListUpdateKind, roomID model.RoomID, room *model.Room, numRooms int)

	allKnownRooms []model.RoomSummary
}

// NewReconciler constructs a Reconciler bound to registry. feed is called
// once per newly-learned room to obtain that room's timeline diff stream.
// onUpdate, if non-nil, is invoked for every discrete room-list change so
// a presentation layer wanting deltas (rather than the full RoomList()
// snapshot the reconciler already maintains) has a real producer to
// subscribe to.
func NewReconciler(registry *Registry, dispatcher *dispatch.Dispatcher, feed TimelineFeed, onUpdate func(kind ListUpdateKind, roomID model.RoomID, room *model.Room, numRooms int)) *Reconciler {
	return &Reconciler{registry: registry, dispatcher: dispatcher, feed: feed, onUpdate: onUpdate}
}

func (rc *Reconciler) notify(kind ListUpdateKind, roomID model.RoomID, room *model.Room) {
	if rc.onUpdate == nil {
		return
	}
	rc.onUpdate(kind, roomID, room, len(rc.allKnownRooms))
}

// Run consumes diffs until ctx is cancelled or in is closed. Stream
// termination without cancellation is fatal per spec §4.3 and is reported
// through onFatal so the session orchestrator can mark the session
// errored.
func (rc *Reconciler) Run(ctx context.Context, in <-chan []model.Diff[model.RoomSummary], onFatal func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-in:
			if !ok {
				if onFatal != nil {
					onFatal(errStreamClosed)
				}
				return
			}
			rc.applyBatch(ctx, batch)
		}
	}
}

var errStreamClosed = roomListStreamClosed{}

type roomListStreamClosed struct{}

func (roomListStreamClosed) Error() string { return "room list diff stream terminated" }

// applyBatch applies one batch of vector diffs to allKnownRooms, applying
// the Remove+Insert peephole optimization described in spec §4.3 before
// dispatching each resulting change to add/update/remove helpers.
func (rc *Reconciler) applyBatch(ctx context.Context, batch []model.Diff[model.RoomSummary]) {
	order := make([]model.RoomID, 0, len(rc.allKnownRooms))
	changed := false

	i := 0
	for i < len(batch) {
		d := batch[i]
		if d.Kind == model.DiffRemove && i+1 < len(batch) && batch[i+1].Kind == model.DiffInsert {
			removed := rc.allKnownRooms[d.Index]
			next := batch[i+1]
			if removed.RoomID == next.Value.RoomID {
				rc.updateRoom(ctx, removed, next.Value)
				rc.allKnownRooms = model.Apply(rc.allKnownRooms, d)
				rc.allKnownRooms = model.Apply(rc.allKnownRooms, next)
				changed = true
				i += 2
				continue
			}
		}

		switch d.Kind {
		case model.DiffReset, model.DiffClear:
			for _, existing := range rc.allKnownRooms {
				rc.removeRoom(existing)
			}
			rc.notify(ListUpdateCleared, "", nil)
		case model.DiffRemove:
			if d.Index >= 0 && d.Index < len(rc.allKnownRooms) {
				rc.removeRoom(rc.allKnownRooms[d.Index])
			}
		case model.DiffSet:
			if d.Index >= 0 && d.Index < len(rc.allKnownRooms) {
				rc.updateRoom(ctx, rc.allKnownRooms[d.Index], d.Value)
			}
		case model.DiffInsert, model.DiffPushFront, model.DiffPushBack:
			rc.addNewRoom(ctx, d.Value)
		case model.DiffAppend:
			for _, v := range d.Values {
				rc.addNewRoom(ctx, v)
			}
		}
		rc.allKnownRooms = model.Apply(rc.allKnownRooms, d)
		changed = true
		i++
	}

	if !changed {
		return
	}
	for _, summary := range rc.allKnownRooms {
		order = append(order, summary.RoomID)
	}
	rc.registry.mu.RLock()
	snapshot := rc.registry.snapshotLocked(order)
	rc.registry.mu.RUnlock()
	rc.registry.roomList.Emit(snapshot)
}

// addNewRoom registers a brand-new room: it builds the initial snapshot,
// opens the room's timeline feed, spawns its Subscriber, and schedules an
// avatar fetch.
func (rc *Reconciler) addNewRoom(ctx context.Context, summary model.RoomSummary) {
	room := &model.Room{
		ID:          summary.RoomID,
		DisplayName: summary.Name,
		JoinState:   summary.JoinState,
		Tombstone:   summary.Tombstone,
		Inviter:     summary.Inviter,
		LatestEvent: summary.LatestEvent,
	}
	if summary.Avatar != "" {
		room.Avatar = model.ImageAvatar(summary.Avatar)
	}
	room.UnreadCounts = summary.UnreadCounts

	subCtx, cancel := context.WithCancel(ctx)
	diffsIn := rc.feed(subCtx, summary.RoomID)
	sub, updates, pagination := timeline.NewSubscriber(summary.RoomID, rc.dispatcher, rc.registry.log, diffsIn, func(model.TimelineItem) {
		rc.dispatcher.Submit(dispatch.CheckCanUserSendMessageRequest{RoomID: summary.RoomID})
	})
	go sub.Run(subCtx)

	info := &RoomInfo{
		Room:             room,
		subscriber:       sub,
		updates:          updates,
		pagination:       pagination,
		cancelSubscriber: cancel,
	}
	rc.registry.insert(ctx, info)

	if summary.Avatar != "" {
		rc.dispatcher.Submit(dispatch.FetchAvatarRequest{URI: summary.Avatar})
	}
	rc.notify(ListUpdateRoomAdded, room.ID, room)
}

// updateRoom applies a changed summary to an already-known room's
// registry entry in place.
func (rc *Reconciler) updateRoom(ctx context.Context, old, updated model.RoomSummary) {
	rc.registry.mu.Lock()
	info, ok := rc.registry.rooms[old.RoomID]
	rc.registry.mu.Unlock()
	if !ok {
		rc.addNewRoom(ctx, updated)
		return
	}
	room := info.Room
	avatarChanged := room.Avatar.URI != updated.Avatar
	room.DisplayName = updated.Name
	room.JoinState = updated.JoinState
	room.Tombstone = updated.Tombstone
	room.Inviter = updated.Inviter
	room.UnreadCounts = updated.UnreadCounts
	if updated.LatestEvent != nil {
		room.LatestEvent = updated.LatestEvent
	}
	if updated.Avatar != "" {
		room.Avatar = model.ImageAvatar(updated.Avatar)
	}
	if avatarChanged && updated.Avatar != "" {
		rc.dispatcher.Submit(dispatch.FetchAvatarRequest{URI: updated.Avatar})
		rc.notify(ListUpdateRoomAvatarChanged, room.ID, room)
	}
	if old.Name != updated.Name {
		rc.notify(ListUpdateRoomNameChanged, room.ID, room)
	}
	if updated.LatestEvent != nil {
		rc.notify(ListUpdateRoomLatestEventChanged, room.ID, room)
	}
}

// removeRoom tears down a room that has left the vector: its registry
// entry, its C6 task, and its channels.
func (rc *Reconciler) removeRoom(summary model.RoomSummary) {
	rc.registry.remove(summary.RoomID)
	rc.notify(ListUpdateRoomRemoved, summary.RoomID, nil)
}
