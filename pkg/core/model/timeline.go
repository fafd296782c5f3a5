// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package model

import "time"

// TimelineItem is one element of a room's ordered timeline. It is either
// an Event (an applied message-like or state event) or a VirtualSeparator
// (a day divider, read marker, or typing separator synthesized locally).
type TimelineItem interface {
	isTimelineItem()
}

// ContentKind distinguishes the event-content variants the core cares
// about for state-change detection (§4.4) without requiring callers to
// inspect raw event JSON.
type ContentKind int

const (
	ContentUnknown ContentKind = iota
	ContentMessage
	ContentRedacted
	ContentRoomName
	ContentRoomAvatar
	ContentRoomPowerLevels
	ContentMembership
	ContentReaction
)

// EventItem is a timeline item backed by a server (or locally-echoed)
// event.
type EventItem struct {
	// EventID is empty until the server has acknowledged the event (i.e.
	// while it is a local echo / pending send).
	EventID   EventID
	Sender    UserID
	Timestamp time.Time
	Kind      ContentKind
	Preview   string
	Pending   bool
	// RoomAvatarURL is populated only when Kind is ContentRoomAvatar, so
	// the timeline subscriber can re-request that exact image without a
	// round trip back through room state.
	RoomAvatarURL ContentURI
	// GroupWithPrevious is true when this event was sent by the same
	// sender as the previous item within a short window, letting a
	// presentation layer collapse repeated sender headers/avatars. It is
	// a derived display hint, not part of the server-acknowledged state.
	GroupWithPrevious bool
}

func (*EventItem) isTimelineItem() {}

// SeparatorKind enumerates the virtual (locally synthesized) separators
// that can appear between events.
type SeparatorKind int

const (
	SeparatorDayDivider SeparatorKind = iota
	SeparatorReadMarker
	SeparatorTypingNotice
)

// VirtualSeparator is a timeline item synthesized locally rather than
// delivered by the server.
type VirtualSeparator struct {
	Kind SeparatorKind
	// Label carries the rendered divider text (e.g. a formatted date) for
	// SeparatorDayDivider; it is empty for other kinds.
	Label string
}

func (*VirtualSeparator) isTimelineItem() {}
