// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package model

// AvatarState tracks how much is known about a user's avatar: nothing yet
// (Unknown), an MXC URI that hasn't been fetched (Known), or fetched bytes
// (Loaded). This is distinct from mediacache.CacheEntry, which tracks the
// fetch of one specific (URI, format) pair; AvatarState tracks what the
// profile cache currently believes a user's avatar URI to be.
type AvatarState struct {
	Status AvatarStatus
	URI    ContentURI
	Data   []byte
}

type AvatarStatus int

const (
	AvatarUnknown AvatarStatus = iota
	AvatarKnown
	AvatarLoaded
)

// UserProfile is a user's cross-room identity. It is created lazily on
// first observation and updated by explicit profile fetches and by
// room-member events.
type UserProfile struct {
	UserID      UserID
	DisplayName string
	Avatar      AvatarState
}

// RoomMember is a per-(RoomID, UserID) membership record.
type RoomMember struct {
	RoomID      RoomID
	UserID      UserID
	PowerLevel  int
	DisplayName string
	Avatar      AvatarState
	Ignored     bool
}
