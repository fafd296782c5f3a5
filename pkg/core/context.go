// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package core wires the eight components (C1-C8) into a single
// aggregate root, Context, constructed once in main and threaded through
// every constructor instead of relying on package-level globals.
package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	coreconfig "github.com/project-robius/robrix-core/pkg/core/config"
	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/mediacache"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/profilecache"
	"github.com/project-robius/robrix-core/pkg/core/rooms"
	"github.com/project-robius/robrix-core/pkg/core/session"
	"github.com/project-robius/robrix-core/pkg/core/verification"
)

// Action is the tagged union posted to the process-wide action stream:
// the mechanism by which components whose output isn't naturally a
// per-room or per-request channel (login results, verification events,
// session errors) reach the presentation layer.
type Action interface {
	isAction()
}

// LoginResult reports the outcome of any of the three login entry paths.
type LoginResult struct {
	UserID string
	Err    error
}

func (LoginResult) isAction() {}

// SessionErrored reports that the sync service could not be recovered and
// the session should be considered dead.
type SessionErrored struct{ Err error }

func (SessionErrored) isAction() {}

// VerificationAction wraps a verification.Action for the shared bus.
type VerificationAction struct{ Inner verification.Action }

func (VerificationAction) isAction() {}

// LoginStatusAction reports an in-progress login milestone that precedes a
// terminal LoginResult: collapses spec.md §6's LoginAction::{Status,
// SsoPending, IdentityProvider} into one status string, since none of the
// three carries data beyond what the presentation layer shows verbatim
// (recorded in DESIGN.md as an Open Question decision).
type LoginStatusAction struct{ Status string }

func (LoginStatusAction) isAction() {}

// RoomsListUpdateKind enumerates spec.md §6's RoomsListUpdate variants.
type RoomsListUpdateKind int

const (
	RoomAdded RoomsListUpdateKind = iota
	RoomAvatarUpdated
	RoomNameUpdated
	RoomLatestEventUpdated
	RoomRemoved
	RoomListCleared
	RoomListLoaded
)

// RoomsListUpdateAction reports one change the Room-List Reconciler (C5)
// applied, posted alongside (not instead of) the full-snapshot
// Registry.RoomList() broadcast the reconciler already maintains: the
// snapshot remains the mechanism C6/the reference CLI actually consume,
// this action exists so a presentation layer that wants deltas instead of
// snapshots has a real producer to subscribe to.
type RoomsListUpdateAction struct {
	Kind    RoomsListUpdateKind
	RoomID  model.RoomID
	Room    *model.Room
	NumRooms int
}

func (RoomsListUpdateAction) isAction() {}

// roomsListUpdateKindFrom translates rooms.ListUpdateKind (the reconciler's
// internal enum, which package rooms cannot name RoomsListUpdateKind
// itself without importing core) into the exported action's kind.
func roomsListUpdateKindFrom(kind rooms.ListUpdateKind) RoomsListUpdateKind {
	switch kind {
	case rooms.ListUpdateRoomAvatarChanged:
		return RoomAvatarUpdated
	case rooms.ListUpdateRoomNameChanged:
		return RoomNameUpdated
	case rooms.ListUpdateRoomLatestEventChanged:
		return RoomLatestEventUpdated
	case rooms.ListUpdateRoomRemoved:
		return RoomRemoved
	case rooms.ListUpdateCleared:
		return RoomListCleared
	case rooms.ListUpdateLoaded:
		return RoomListLoaded
	default:
		return RoomAdded
	}
}

// RoomPreviewAction reports that a FetchRoomPreviewRequest resolved,
// fulfilling RoomPreviewAction::Fetched (SPEC_FULL §4.3).
type RoomPreviewAction struct {
	Preview rooms.RoomPreview
	Err     error
}

func (RoomPreviewAction) isAction() {}

// IgnoredUsersUpdated reports that the account-wide ignore list changed,
// the "ignored-user-list update arrives" half of spec.md §8's S4 scenario.
type IgnoredUsersUpdated struct {
	Users []model.UserID
}

func (IgnoredUsersUpdated) isAction() {}

// RoomAliasResolved reports the outcome of a ResolveRoomAliasRequest. The
// request itself carries no callback, so the result is reported via the
// action bus — one of the three response mechanisms spec.md §4.1 names.
type RoomAliasResolved struct {
	Alias  string
	RoomID model.RoomID
	Err    error
}

func (RoomAliasResolved) isAction() {}

// Context is the aggregate root: it owns every component and the action
// bus connecting them to the presentation layer attached to this process.
type Context struct {
	Log zerolog.Logger

	Config       *coreconfig.Config
	Dispatcher   *dispatch.Dispatcher
	Rooms        *rooms.Registry
	Reconciler   *rooms.Reconciler
	MediaCache   *mediacache.Cache
	ProfileCache *profilecache.Cache
	Session      *session.Orchestrator
	SessionStore *session.Store
	Verification *verification.Coordinator
	IgnoredUsers *rooms.IgnoredUsers
	Previews     *rooms.PreviewCache

	mu        sync.RWMutex
	listeners []*func(Action)

	userMu sync.RWMutex
	userID model.UserID

	cancel context.CancelFunc
}

// New constructs a Context and every component it owns, but does not
// start any background goroutine; call Start for that. api is the narrow
// seam (see router.go) the Request Dispatcher's handler drives every
// homeserver-facing operation through, the same pattern
// session.HomeserverClient and verification.CryptoEngine already use for
// C8 and C7.
func New(log zerolog.Logger, cfg *coreconfig.Config, api HomeserverAPI, cryptoEngine verification.CryptoEngine, hsClient session.HomeserverClient, feed rooms.TimelineFeed, openURL func(string) error) *Context {
	c := &Context{
		Log:          log,
		Config:       cfg,
		SessionStore: session.NewStore(cfg.Dir),
		IgnoredUsers: rooms.NewIgnoredUsers(),
		Previews:     rooms.NewPreviewCache(),
	}
	// handler closes over c rather than its individual fields: by the time
	// any request actually reaches it (after Start), every field below has
	// been populated, even though dispatch.New (which only stores the
	// closure, never calls it) runs before the rest of this constructor.
	router := newRequestRouter(c, api, openURL)
	c.Dispatcher = dispatch.New(log, router.handle)
	c.Rooms = rooms.NewRegistry(log)
	c.Reconciler = rooms.NewReconciler(c.Rooms, c.Dispatcher, feed, func(kind rooms.ListUpdateKind, roomID model.RoomID, room *model.Room, numRooms int) {
		c.PostAction(RoomsListUpdateAction{Kind: roomsListUpdateKindFrom(kind), RoomID: roomID, Room: room, NumRooms: numRooms})
	})
	c.MediaCache = mediacache.New(log, c.Dispatcher)
	c.ProfileCache = profilecache.New(log, c.Dispatcher)
	c.Session = session.New(log, c.SessionStore, hsClient, func(err error) {
		c.PostAction(SessionErrored{Err: err})
	})
	c.Verification = verification.New(log, cryptoEngine, func(a verification.Action) {
		c.PostAction(VerificationAction{Inner: a})
	})
	return c
}

// setUserID records the logged-in user, used to attribute locally-echoed
// sent messages (spec.md §8 S1) without a round trip through the SDK.
func (c *Context) setUserID(userID model.UserID) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.userID = userID
}

// LocalUserID returns the currently logged-in user, or "" before login
// completes.
func (c *Context) LocalUserID() model.UserID {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	return c.userID
}

// Start runs the dispatcher's consumer loop and the room-list reconciler
// until Stop is called. It blocks, so callers typically invoke it in its
// own goroutine.
func (c *Context) Start(ctx context.Context, roomListDiffs <-chan []model.Diff[model.RoomSummary]) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.Dispatcher.Run()
	go c.Reconciler.Run(runCtx, roomListDiffs, func(err error) {
		c.PostAction(SessionErrored{Err: err})
	})
	<-runCtx.Done()
}

// Stop cancels the reconciler and drains the dispatcher.
func (c *Context) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.Dispatcher.Close()
}

// Listen registers a callback invoked for every posted Action.
func (c *Context) Listen(cb func(Action)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ptr := &cb
	c.listeners = append(c.listeners, ptr)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l == ptr {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// PostAction publishes a to every registered listener.
func (c *Context) PostAction(a Action) {
	c.mu.RLock()
	snapshot := make([]*func(Action), len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.RUnlock()
	for _, l := range snapshot {
		(*l)(a)
	}
}
