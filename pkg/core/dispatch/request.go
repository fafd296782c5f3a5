// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dispatch implements the single-producer/many-consumer request
// queue described as the Request Dispatcher: every operation the core
// performs against a homeserver enters through Submit, which routes it to
// the appropriate handler running on its own goroutine.
package dispatch

import (
	"maunium.net/go/mautrix/event"

	"github.com/project-robius/robrix-core/pkg/core/model"
)

// Direction selects which end of a room's timeline a pagination request
// extends.
type Direction int

const (
	Backwards Direction = iota
	Forwards
)

// Request is a tagged union of every operation the dispatcher accepts.
// Exactly one concrete type below satisfies it at a time; handlers type
// switch on the concrete type rather than on a discriminant field.
type Request interface {
	isRequest()
}

// LoginRequest carries one of the three login entry paths (spec §4.7): a
// restored session has only RestoreOnly set, password login has Username
// and Password, SSO login has UseSSO set with an optional IdentityProvider.
type LoginRequest struct {
	Homeserver string
	Username   string
	Password   string
	UseSSO     bool
	IdentityProvider string
	RestoreOnly bool
}

func (LoginRequest) isRequest() {}

// PaginateRoomTimelineRequest asks C6 for the room to fetch num older/newer
// timeline events.
type PaginateRoomTimelineRequest struct {
	RoomID    model.RoomID
	NumEvents int
	Direction Direction
}

func (PaginateRoomTimelineRequest) isRequest() {}

// FetchDetailsForEventRequest asks the homeserver to re-fetch a single
// event, used when a redaction or edit reference points at an event not
// locally cached.
type FetchDetailsForEventRequest struct {
	RoomID  model.RoomID
	EventID model.EventID
}

func (FetchDetailsForEventRequest) isRequest() {}

// FetchRoomMembersRequest asks C6 to populate the room's member list.
type FetchRoomMembersRequest struct {
	RoomID model.RoomID
}

func (FetchRoomMembersRequest) isRequest() {}

// GetUserProfileRequest asks C2 to resolve a user's display name/avatar,
// optionally scoped to a room's membership event rather than the global
// profile, and optionally restricted to already-cached data.
type GetUserProfileRequest struct {
	UserID    model.UserID
	RoomID    model.RoomID
	LocalOnly bool
}

func (GetUserProfileRequest) isRequest() {}

// IgnoreUserRequest adds or removes a user from the account-wide ignore
// list.
type IgnoreUserRequest struct {
	Ignore bool
	Member model.UserID
	RoomID model.RoomID
}

func (IgnoreUserRequest) isRequest() {}

// ResolveRoomAliasRequest resolves a room alias to a room ID via the
// homeserver directory.
type ResolveRoomAliasRequest struct {
	Alias string
}

func (ResolveRoomAliasRequest) isRequest() {}

// FetchAvatarRequest fetches a small image (a room or user avatar) and
// invokes OnFetched with the result.
type FetchAvatarRequest struct {
	URI       model.ContentURI
	OnFetched func(data []byte, err error)
}

func (FetchAvatarRequest) isRequest() {}

// MediaDestination selects what a fetched media blob is used for, which in
// turn controls thumbnailing behavior in the mediacache pipeline.
type MediaDestination int

const (
	DestinationTimeline MediaDestination = iota
	DestinationFullView
)

// FetchMediaRequest fetches a full media item (e.g. an image or file
// attachment referenced from a timeline event).
type FetchMediaRequest struct {
	Request       event.MessageEventContent
	Destination   MediaDestination
	OnFetched     func(data []byte, err error)
	UpdateChannel chan<- any
}

func (FetchMediaRequest) isRequest() {}

// SendMessageRequest submits a new message to a room, optionally as a
// reply to an existing event.
type SendMessageRequest struct {
	RoomID    model.RoomID
	Content   *event.MessageEventContent
	RepliedTo model.EventID
}

func (SendMessageRequest) isRequest() {}

// SendTypingNoticeRequest starts or stops the local user's typing
// indicator in a room.
type SendTypingNoticeRequest struct {
	RoomID  model.RoomID
	Typing  bool
}

func (SendTypingNoticeRequest) isRequest() {}

// SpawnSsoServerRequest starts the loopback HTTP server used during SSO
// login (spec §4.7, extended in SPEC_FULL §4.9 with OIDC token
// validation).
type SpawnSsoServerRequest struct {
	Brand            string
	Homeserver       string
	IdentityProvider string
}

func (SpawnSsoServerRequest) isRequest() {}

// SubscribeToTypingNoticesRequest toggles whether the caller receives
// TypingUsers updates for a room.
type SubscribeToTypingNoticesRequest struct {
	RoomID    model.RoomID
	Subscribe bool
}

func (SubscribeToTypingNoticesRequest) isRequest() {}

// ReadReceiptRequest sends a (non-fully-read) read receipt for an event.
type ReadReceiptRequest struct {
	RoomID  model.RoomID
	EventID model.EventID
}

func (ReadReceiptRequest) isRequest() {}

// FullyReadReceiptRequest sends a fully-read marker for an event.
type FullyReadReceiptRequest struct {
	RoomID  model.RoomID
	EventID model.EventID
}

func (FullyReadReceiptRequest) isRequest() {}

// CheckCanUserSendMessageRequest re-evaluates the local user's power level
// against the room's current power-level event.
type CheckCanUserSendMessageRequest struct {
	RoomID model.RoomID
}

func (CheckCanUserSendMessageRequest) isRequest() {}

// FetchRoomPreviewRequest resolves a room ID or alias the local user has
// not joined into a RoomPreview, surfaced on the action bus as
// RoomPreviewAction::Fetched (SPEC_FULL §4.3's Room-List Reconciler
// extension).
type FetchRoomPreviewRequest struct {
	RoomIDOrAlias string
}

func (FetchRoomPreviewRequest) isRequest() {}
