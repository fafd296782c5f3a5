// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package model

import (
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// JoinState is the caller's relationship to a room.
type JoinState int

const (
	JoinStateJoined JoinState = iota
	JoinStateInvited
	JoinStateKnocked
	JoinStateLeft
	JoinStateBanned
)

func (j JoinState) String() string {
	switch j {
	case JoinStateJoined:
		return "joined"
	case JoinStateInvited:
		return "invited"
	case JoinStateKnocked:
		return "knocked"
	case JoinStateLeft:
		return "left"
	case JoinStateBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// Avatar is either a fetchable image or a deterministic text fallback.
// Exactly one of the two constructors below should be used to build one.
type Avatar struct {
	// URI is set when the avatar is a real image; IsText is false.
	URI ContentURI
	// Grapheme and Color are set when the room/user has no avatar image;
	// IsText is true. Grapheme is a single extended grapheme cluster
	// (see avatarfallback.Grapheme), Color a deterministic RGB fallback
	// (see avatarfallback.Color).
	Grapheme string
	Color    colorful.Color
	IsText   bool
}

func ImageAvatar(uri ContentURI) Avatar {
	return Avatar{URI: uri}
}

func TextAvatar(grapheme string, color colorful.Color) Avatar {
	return Avatar{Grapheme: grapheme, Color: color, IsText: true}
}

// TombstoneRef links a room to the room that replaced it.
type TombstoneRef struct {
	SuccessorRoomID RoomID
	Reason          string
}

// InviterInfo describes who invited the local user to a room.
type InviterInfo struct {
	UserID      UserID
	DisplayName string
	Avatar      *Avatar
}

// UnreadCounts tracks a room's notification state.
type UnreadCounts struct {
	UnreadMessages int
	UnreadMentions int
	MarkedUnread   bool
}

// LatestEventSummary is the rendered preview of a room's most recent event,
// used for room-list previews without requiring the full timeline to be
// loaded.
type LatestEventSummary struct {
	EventID   EventID
	Sender    UserID
	Timestamp time.Time
	Preview   string
}

// Room is the authoritative, registry-owned description of one room. A
// room is represented exactly once in the Room Registry; its identity is
// its RoomID.
type Room struct {
	ID          RoomID
	DisplayName string
	SearchName  string
	Avatar      Avatar
	Tags        map[string]struct{}
	JoinState   JoinState
	Tombstone   *TombstoneRef
	Inviter     *InviterInfo
	UnreadCounts
	LatestEvent *LatestEventSummary
}

// Clone returns a deep-enough copy of r suitable for handing to a
// presentation layer without it observing further registry mutation.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Tags != nil {
		clone.Tags = make(map[string]struct{}, len(r.Tags))
		for t := range r.Tags {
			clone.Tags[t] = struct{}{}
		}
	}
	if r.Tombstone != nil {
		tombstone := *r.Tombstone
		clone.Tombstone = &tombstone
	}
	if r.Inviter != nil {
		inviter := *r.Inviter
		clone.Inviter = &inviter
	}
	if r.LatestEvent != nil {
		latest := *r.LatestEvent
		clone.LatestEvent = &latest
	}
	return &clone
}

// RoomSummary is the opaque, SDK-sourced representation of a room as it
// appears in the room-list diff stream (§4.3). It carries just enough
// information for the reconciler to decide whether a room changed.
type RoomSummary struct {
	RoomID            RoomID
	Name              string
	Avatar            ContentURI
	JoinState         JoinState
	Tombstone         *TombstoneRef
	PredecessorRoomID RoomID
	Inviter           *InviterInfo
	LatestEvent       *LatestEventSummary
	UnreadCounts
}
