// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package model defines the data types shared by the room registry, the
// room-list reconciler, the per-room timelines, and the media/profile
// caches. Identifiers are aliases over the underlying SDK's types so that
// core code and SDK code pass the same values without conversion.
package model

import (
	"maunium.net/go/mautrix/id"
)

type (
	RoomID     = id.RoomID
	UserID     = id.UserID
	EventID    = id.EventID
	DeviceID   = id.DeviceID
	ContentURI = id.ContentURI
)
