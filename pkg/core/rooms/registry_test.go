// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rooms

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/timeline"
)

func newTestRoomInfo(id model.RoomID) *RoomInfo {
	updates := make(chan timeline.Update)
	pagination := make(chan []timeline.BackwardsPaginateUntilEventRequest)
	return &RoomInfo{
		Room:       &model.Room{ID: id},
		updates:    updates,
		pagination: pagination,
	}
}

func TestTakeTimelineEndpointsIsAtMostOnce(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.insert(context.Background(), newTestRoomInfo("!a:example.org"))

	if _, ok := r.TakeTimelineEndpoints("!a:example.org"); !ok {
		t.Fatal("first take should succeed")
	}
	if _, ok := r.TakeTimelineEndpoints("!a:example.org"); ok {
		t.Fatal("second take should fail: endpoints are at-most-once")
	}
}

func TestTakeTimelineEndpointsUnknownRoom(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	if _, ok := r.TakeTimelineEndpoints("!missing:example.org"); ok {
		t.Fatal("expected failure for a room never inserted")
	}
}

func TestRemoveRecordsTombstoneForUnseenSuccessor(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	info := newTestRoomInfo("!old:example.org")
	info.Room.Tombstone = &model.TombstoneRef{SuccessorRoomID: "!new:example.org"}
	r.insert(context.Background(), info)
	r.remove("!old:example.org")

	r.mu.RLock()
	predecessor, ok := r.tombstoned["!new:example.org"]
	r.mu.RUnlock()
	if !ok || predecessor != "!old:example.org" {
		t.Fatalf("expected tombstone mapping new->old, got %q, ok=%v", predecessor, ok)
	}
}

func TestRemoveDropsRoomAndCancelsSubscriber(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	info := newTestRoomInfo("!a:example.org")
	cancelled := false
	info.cancelSubscriber = func() { cancelled = true }
	r.insert(context.Background(), info)

	r.remove("!a:example.org")

	if !cancelled {
		t.Fatal("expected cancelSubscriber to be invoked")
	}
	if r.Get("!a:example.org") != nil {
		t.Fatal("expected room to be gone from the registry")
	}
}

func TestSnapshotLockedOrdersAndClonesRooms(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.insert(context.Background(), newTestRoomInfo("!a:example.org"))
	r.insert(context.Background(), newTestRoomInfo("!b:example.org"))

	r.mu.RLock()
	snapshot := r.snapshotLocked([]model.RoomID{"!b:example.org", "!a:example.org"})
	r.mu.RUnlock()

	if len(snapshot) != 2 || snapshot[0].ID != "!b:example.org" || snapshot[1].ID != "!a:example.org" {
		t.Fatalf("got %+v", snapshot)
	}
	// Mutating the snapshot must not affect the registry's own copy.
	snapshot[0].DisplayName = "mutated"
	if r.Get("!b:example.org").DisplayName == "mutated" {
		t.Fatal("snapshot should be a clone, not a live reference")
	}
}
