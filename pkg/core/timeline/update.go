// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package timeline implements the per-room Timeline Subscriber: one
// goroutine per room that applies the homeserver's diff stream to a local
// item vector and fans out higher-level updates to at most one
// presentation-side subscriber.
package timeline

import (
	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
)

// Update is the tagged union of everything a room's Subscriber can emit.
type Update interface {
	isUpdate()
}

// NewItems reports the result of applying one batch of timeline diffs.
type NewItems struct {
	NewItems     []model.TimelineItem
	ChangedFrom  int
	ChangedTo    int
	ClearCache   bool
	IsAppend     bool
}

func (NewItems) isUpdate() {}

// TargetEventFound reports that a previously-awaited pagination target has
// been located in the local timeline, always emitted after the NewItems
// batch that introduced it (spec §5, ordering).
type TargetEventFound struct {
	EventID model.EventID
	Index   int
}

func (TargetEventFound) isUpdate() {}

// PaginationRunning reports that a backwards/forwards pagination request
// has been submitted and is in flight.
type PaginationRunning struct{ Direction dispatch.Direction }

func (PaginationRunning) isUpdate() {}

// PaginationIdle reports that pagination in a direction has settled,
// either because it ran out of history/hit the live edge (FullyPaginated)
// or simply has nothing in flight right now.
type PaginationIdle struct {
	Direction      dispatch.Direction
	FullyPaginated bool
}

func (PaginationIdle) isUpdate() {}

// PaginationError reports a failed pagination attempt.
type PaginationError struct {
	Direction dispatch.Direction
	Err       error
}

func (PaginationError) isUpdate() {}

// EventDetailsFetched reports the result of a FetchDetailsForEvent
// request.
type EventDetailsFetched struct {
	EventID model.EventID
	Item    model.TimelineItem
	Err     error
}

func (EventDetailsFetched) isUpdate() {}

// RoomMembersFetched reports that FetchRoomMembers completed.
type RoomMembersFetched struct{}

func (RoomMembersFetched) isUpdate() {}

// TypingUsers reports the current set of users typing in the room, for
// subscribers that opted in via SubscribeToTypingNoticesRequest.
type TypingUsers struct{ Users []model.UserID }

func (TypingUsers) isUpdate() {}

// CanUserSendMessage reports the local user's current send permission,
// recomputed whenever the room's power levels change.
type CanUserSendMessage struct{ Allowed bool }

func (CanUserSendMessage) isUpdate() {}

// MediaFetched reports that a media or avatar fetch this subscriber was
// registered as the update channel for has completed.
type MediaFetched struct {
	URI model.ContentURI
	Err error
}

func (MediaFetched) isUpdate() {}

// LinksDetected reports URLs found in a newly-arrived message event,
// emitted alongside NewItems so a presentation layer can kick off
// link-preview fetches without re-scanning every event body itself.
type LinksDetected struct {
	EventID model.EventID
	Links   []string
}

func (LinksDetected) isUpdate() {}
