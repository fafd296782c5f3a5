// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/rooms"
	"github.com/project-robius/robrix-core/pkg/core/timeline"
)

// HomeserverAPI is the narrow seam between the Request Dispatcher's
// handler switch and the underlying SDK, following the same shape
// session.HomeserverClient and verification.CryptoEngine already use: the
// router below drives control flow and response routing for every
// dispatch.Request variant, HomeserverAPI performs the actual
// client-server API calls. This is the Go analogue of the original's
// json-commands.go handleJSONCommand switch, which calls directly into a
// live mautrix client; here that call-site is abstracted behind an
// interface so the switch logic itself is independently testable.
type HomeserverAPI interface {
	// SendMessage submits content to roomID, optionally in reply to
	// repliedTo, and returns the server-assigned event ID and timestamp.
	SendMessage(ctx context.Context, roomID model.RoomID, content *event.MessageEventContent, repliedTo model.EventID) (model.EventID, time.Time, error)
	// PaginateRoomTimeline asks the homeserver for num additional events
	// in dir; resulting diff batches surface through the room's ordinary
	// TimelineFeed, not through this call's return value.
	PaginateRoomTimeline(ctx context.Context, roomID model.RoomID, num int, dir dispatch.Direction) error
	FetchEventDetails(ctx context.Context, roomID model.RoomID, eventID model.EventID) (model.TimelineItem, error)
	FetchRoomMembers(ctx context.Context, roomID model.RoomID) ([]model.RoomMember, error)
	GetUserProfile(ctx context.Context, userID model.UserID, roomID model.RoomID, localOnly bool) (model.UserProfile, error)
	ResolveRoomAlias(ctx context.Context, alias string) (model.RoomID, error)
	FetchRoomPreview(ctx context.Context, roomIDOrAlias string) (rooms.RoomPreview, error)
	FetchMedia(ctx context.Context, req dispatch.FetchMediaRequest) ([]byte, error)
	FetchAvatar(ctx context.Context, uri model.ContentURI) ([]byte, error)
	SendTypingNotice(ctx context.Context, roomID model.RoomID, typing bool) error
	// SubscribeTypingNotices registers onUsers to be called (from an
	// internal goroutine) every time roomID's typing set changes, until
	// the returned unsubscribe func is called.
	SubscribeTypingNotices(ctx context.Context, roomID model.RoomID, onUsers func([]model.UserID)) (unsubscribe func(), err error)
	SendReadReceipt(ctx context.Context, roomID model.RoomID, eventID model.EventID) error
	SendFullyReadReceipt(ctx context.Context, roomID model.RoomID, eventID model.EventID) error
	CanUserSendMessage(ctx context.Context, roomID model.RoomID) (bool, error)
	SetIgnoredUsers(ctx context.Context, userIDs []model.UserID) error
}

// requestRouter owns the per-Context mutable state a stateless handler
// switch can't: the live typing-notice unsubscribe funcs keyed by room.
type requestRouter struct {
	ctx     *Context
	api     HomeserverAPI
	openURL func(string) error

	mu          sync.Mutex
	typingUnsub map[model.RoomID]func()
}

func newRequestRouter(ctx *Context, api HomeserverAPI, openURL func(string) error) *requestRouter {
	return &requestRouter{
		ctx:         ctx,
		api:         api,
		openURL:     openURL,
		typingUnsub: make(map[model.RoomID]func()),
	}
}

// handle is the Request Dispatcher's (C3) handler: it type switches on
// req's concrete type and drives the matching HomeserverAPI call, exactly
// as spec.md §4.1 describes ("handles each request by spawning an
// independent task... responses propagate asynchronously via (a) room
// fan-out channels, (b) per-request callback closures, or (c) a
// process-wide action posting mechanism").
func (r *requestRouter) handle(ctx context.Context, req dispatch.Request) {
	c := r.ctx
	switch v := req.(type) {
	case dispatch.LoginRequest:
		r.handleLogin(ctx, v)
	case dispatch.SpawnSsoServerRequest:
		r.handleSpawnSso(ctx, v)
	case dispatch.SendMessageRequest:
		r.handleSendMessage(ctx, v)
	case dispatch.PaginateRoomTimelineRequest:
		if err := r.api.PaginateRoomTimeline(ctx, v.RoomID, v.NumEvents, v.Direction); err != nil {
			c.Rooms.PostTimelineUpdate(v.RoomID, timeline.PaginationError{Direction: v.Direction, Err: err})
		} else {
			c.Rooms.PostTimelineUpdate(v.RoomID, timeline.PaginationIdle{Direction: v.Direction})
		}
	case dispatch.FetchDetailsForEventRequest:
		item, err := r.api.FetchEventDetails(ctx, v.RoomID, v.EventID)
		c.Rooms.PostTimelineUpdate(v.RoomID, timeline.EventDetailsFetched{EventID: v.EventID, Item: item, Err: err})
	case dispatch.FetchRoomMembersRequest:
		r.handleFetchRoomMembers(ctx, v)
	case dispatch.GetUserProfileRequest:
		profile, err := r.api.GetUserProfile(ctx, v.UserID, v.RoomID, v.LocalOnly)
		c.ProfileCache.Complete(v.UserID, profile, err)
	case dispatch.IgnoreUserRequest:
		r.handleIgnoreUser(ctx, v)
	case dispatch.ResolveRoomAliasRequest:
		roomID, err := r.api.ResolveRoomAlias(ctx, v.Alias)
		c.PostAction(RoomAliasResolved{Alias: v.Alias, RoomID: roomID, Err: err})
	case dispatch.FetchRoomPreviewRequest:
		preview, err := r.api.FetchRoomPreview(ctx, v.RoomIDOrAlias)
		if err == nil {
			c.Previews.Put(preview)
		}
		c.PostAction(RoomPreviewAction{Preview: preview, Err: err})
	case dispatch.FetchAvatarRequest:
		data, err := r.api.FetchAvatar(ctx, v.URI)
		if v.OnFetched != nil {
			v.OnFetched(data, err)
		}
	case dispatch.FetchMediaRequest:
		data, err := r.api.FetchMedia(ctx, v)
		if v.OnFetched != nil {
			v.OnFetched(data, err)
		}
	case dispatch.SendTypingNoticeRequest:
		if err := r.api.SendTypingNotice(ctx, v.RoomID, v.Typing); err != nil {
			c.Log.Err(err).Stringer("room_id", v.RoomID).Msg("Failed to send typing notice")
		}
	case dispatch.SubscribeToTypingNoticesRequest:
		r.handleSubscribeTyping(ctx, v)
	case dispatch.ReadReceiptRequest:
		if err := r.api.SendReadReceipt(ctx, v.RoomID, v.EventID); err != nil {
			c.Log.Err(err).Stringer("room_id", v.RoomID).Msg("Failed to send read receipt")
		}
	case dispatch.FullyReadReceiptRequest:
		if err := r.api.SendFullyReadReceipt(ctx, v.RoomID, v.EventID); err != nil {
			c.Log.Err(err).Stringer("room_id", v.RoomID).Msg("Failed to send fully-read marker")
		}
	case dispatch.CheckCanUserSendMessageRequest:
		allowed, err := r.api.CanUserSendMessage(ctx, v.RoomID)
		if err != nil {
			c.Log.Err(err).Stringer("room_id", v.RoomID).Msg("Failed to check send permission")
			return
		}
		c.Rooms.PostTimelineUpdate(v.RoomID, timeline.CanUserSendMessage{Allowed: allowed})
	default:
		c.Log.Error().Str("request_type", fmt.Sprintf("%T", req)).Msg("No handler registered for request type")
	}
}

// handleLogin implements login entry paths 1 (restore) and 2 (password);
// entry path 3 (SSO) is driven through SpawnSsoServerRequest instead,
// since that is the request carrying the loopback-server lifecycle the
// presentation layer needs a URL from.
func (r *requestRouter) handleLogin(ctx context.Context, req dispatch.LoginRequest) {
	c := r.ctx
	var userID model.UserID
	var err error
	switch {
	case req.RestoreOnly:
		userID, err = c.Session.RestoreLatestSession(ctx)
	case req.UseSSO:
		err = fmt.Errorf("SSO login must be started via SpawnSsoServerRequest, not LoginRequest")
	default:
		userID, err = c.Session.LoginWithPassword(ctx, req.Homeserver, req.Username, req.Password)
	}
	if err != nil {
		c.PostAction(LoginResult{Err: err})
		return
	}
	if userID == "" {
		// RestoreOnly with no persisted session is not an error.
		return
	}
	c.setUserID(userID)
	c.PostAction(LoginResult{UserID: string(userID)})
}

func (r *requestRouter) handleSpawnSso(ctx context.Context, req dispatch.SpawnSsoServerRequest) {
	c := r.ctx
	c.PostAction(LoginStatusAction{Status: "sso_pending"})
	openURL := r.openURL
	userID, err := c.Session.LoginWithSSO(ctx, req.Homeserver, req.Brand, req.IdentityProvider, openURL)
	if err != nil {
		c.PostAction(LoginResult{Err: err})
		return
	}
	c.setUserID(userID)
	c.PostAction(LoginResult{UserID: string(userID)})
}

// handleSendMessage implements spec.md §8 S1: on success, the
// server-acknowledged event is delivered as a NewItems batch on the
// room's fan-out channel, exactly as if it had arrived via the ordinary
// sync diff stream (local-echo-before-ack is a presentation-layer
// concern this headless core doesn't model).
func (r *requestRouter) handleSendMessage(ctx context.Context, req dispatch.SendMessageRequest) {
	c := r.ctx
	eventID, ts, err := r.api.SendMessage(ctx, req.RoomID, req.Content, req.RepliedTo)
	if err != nil {
		c.Log.Err(err).Stringer("room_id", req.RoomID).Msg("Failed to send message")
		return
	}
	item := &model.EventItem{
		EventID:   eventID,
		Sender:    c.LocalUserID(),
		Timestamp: ts,
		Kind:      model.ContentMessage,
		Preview:   req.Content.Body,
	}
	c.Rooms.PostTimelineUpdate(req.RoomID, timeline.NewItems{
		NewItems:    []model.TimelineItem{item},
		ChangedFrom: -1,
		ChangedTo:   -1,
		IsAppend:    true,
	})
}

func (r *requestRouter) handleFetchRoomMembers(ctx context.Context, req dispatch.FetchRoomMembersRequest) {
	c := r.ctx
	members, err := r.api.FetchRoomMembers(ctx, req.RoomID)
	if err == nil {
		for _, m := range members {
			c.ProfileCache.Entry(m.UserID).SetMember(req.RoomID, m)
		}
	} else {
		c.Log.Err(err).Stringer("room_id", req.RoomID).Msg("Failed to fetch room members")
	}
	c.Rooms.PostTimelineUpdate(req.RoomID, timeline.RoomMembersFetched{})
}

// handleIgnoreUser implements spec.md §7/§8 S4: updating the ignore list
// on the homeserver clears every timeline, so the only way to rehydrate
// is a 50-event backward pagination of every joined room.
func (r *requestRouter) handleIgnoreUser(ctx context.Context, req dispatch.IgnoreUserRequest) {
	c := r.ctx
	users := c.IgnoredUsers.Apply(req.Ignore, req.Member)
	if err := r.api.SetIgnoredUsers(ctx, users); err != nil {
		c.Log.Err(err).Stringer("user_id", req.Member).Msg("Failed to update ignored-user list")
		// Roll back the local set so it doesn't diverge from what the
		// homeserver actually has.
		c.IgnoredUsers.Apply(!req.Ignore, req.Member)
		return
	}
	c.PostAction(IgnoredUsersUpdated{Users: users})
	for _, roomID := range c.Rooms.AllRoomIDs() {
		c.Dispatcher.Submit(dispatch.PaginateRoomTimelineRequest{
			RoomID:    roomID,
			NumEvents: 50,
			Direction: dispatch.Backwards,
		})
	}
}

func (r *requestRouter) handleSubscribeTyping(ctx context.Context, req dispatch.SubscribeToTypingNoticesRequest) {
	c := r.ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if !req.Subscribe {
		if unsub, ok := r.typingUnsub[req.RoomID]; ok {
			unsub()
			delete(r.typingUnsub, req.RoomID)
		}
		return
	}
	if _, already := r.typingUnsub[req.RoomID]; already {
		return
	}
	unsub, err := r.api.SubscribeTypingNotices(ctx, req.RoomID, func(users []model.UserID) {
		c.Rooms.PostTimelineUpdate(req.RoomID, timeline.TypingUsers{Users: users})
	})
	if err != nil {
		c.Log.Err(err).Stringer("room_id", req.RoomID).Msg("Failed to subscribe to typing notices")
		return
	}
	r.typingUnsub[req.RoomID] = unsub
}
