// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"

	coreconfig "github.com/project-robius/robrix-core/pkg/core/config"
	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/rooms"
	"github.com/project-robius/robrix-core/pkg/core/session"
	"github.com/project-robius/robrix-core/pkg/core/timeline"
	"github.com/project-robius/robrix-core/pkg/core/verification"
)

// fakeSession satisfies session.HomeserverClient without ever being driven
// in these tests; only Context construction requires one.
type fakeSession struct{}

func (fakeSession) SupportsPasswordLogin(ctx context.Context, homeserver string) (bool, error) {
	return true, nil
}
func (fakeSession) LoginPassword(ctx context.Context, homeserver, username, password string) (json.RawMessage, model.UserID, error) {
	return nil, "", nil
}
func (fakeSession) RestoreSession(ctx context.Context, cs session.ClientSession, userSession json.RawMessage) (model.UserID, error) {
	return "", nil
}
func (fakeSession) StartSyncService(ctx context.Context) error    { return nil }
func (fakeSession) SyncServiceErrors() <-chan error               { return nil }
func (fakeSession) SsoLoginURL(ctx context.Context, homeserver, brand, idp, callback string) (string, error) {
	return "", nil
}
func (fakeSession) ExchangeSSOToken(ctx context.Context, homeserver, loginToken string) (json.RawMessage, model.UserID, error) {
	return nil, "", nil
}

// fakeCryptoEngine satisfies verification.CryptoEngine without being driven.
type fakeCryptoEngine struct{}

func (fakeCryptoEngine) AcceptRequest(ctx context.Context, req verification.RequestHandle) error {
	return nil
}
func (fakeCryptoEngine) CancelRequest(ctx context.Context, req verification.RequestHandle) error {
	return nil
}
func (fakeCryptoEngine) RequestStates(req verification.RequestHandle) <-chan verification.RequestState {
	return nil
}
func (fakeCryptoEngine) AcceptSas(ctx context.Context, sas verification.SasHandle) error { return nil }
func (fakeCryptoEngine) ConfirmSas(ctx context.Context, sas verification.SasHandle) error {
	return nil
}
func (fakeCryptoEngine) CancelSas(ctx context.Context, sas verification.SasHandle) error { return nil }
func (fakeCryptoEngine) SasStates(sas verification.SasHandle) <-chan verification.SasStateValue {
	return nil
}

// fakeAPI is a scriptable HomeserverAPI. Every method not explicitly
// exercised by a test returns a zero value, matching the fakeEngine style
// already used in pkg/core/verification's tests.
type fakeAPI struct {
	mu sync.Mutex

	sentEventID  model.EventID
	paginations  []model.RoomID
	ignoredCalls [][]model.UserID
}

func (f *fakeAPI) SendMessage(ctx context.Context, roomID model.RoomID, content *event.MessageEventContent, repliedTo model.EventID) (model.EventID, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentEventID = "$sent1"
	return f.sentEventID, time.Unix(1700000000, 0), nil
}

func (f *fakeAPI) PaginateRoomTimeline(ctx context.Context, roomID model.RoomID, num int, dir dispatch.Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paginations = append(f.paginations, roomID)
	return nil
}

func (f *fakeAPI) FetchEventDetails(ctx context.Context, roomID model.RoomID, eventID model.EventID) (model.TimelineItem, error) {
	return nil, nil
}
func (f *fakeAPI) FetchRoomMembers(ctx context.Context, roomID model.RoomID) ([]model.RoomMember, error) {
	return nil, nil
}
func (f *fakeAPI) GetUserProfile(ctx context.Context, userID model.UserID, roomID model.RoomID, localOnly bool) (model.UserProfile, error) {
	return model.UserProfile{}, nil
}
func (f *fakeAPI) ResolveRoomAlias(ctx context.Context, alias string) (model.RoomID, error) {
	return "", nil
}
func (f *fakeAPI) FetchRoomPreview(ctx context.Context, roomIDOrAlias string) (rooms.RoomPreview, error) {
	return rooms.RoomPreview{}, nil
}
func (f *fakeAPI) FetchMedia(ctx context.Context, req dispatch.FetchMediaRequest) ([]byte, error) {
	return nil, nil
}
func (f *fakeAPI) FetchAvatar(ctx context.Context, uri model.ContentURI) ([]byte, error) {
	return nil, nil
}
func (f *fakeAPI) SendTypingNotice(ctx context.Context, roomID model.RoomID, typing bool) error {
	return nil
}
func (f *fakeAPI) SubscribeTypingNotices(ctx context.Context, roomID model.RoomID, onUsers func([]model.UserID)) (func(), error) {
	return func() {}, nil
}
func (f *fakeAPI) SendReadReceipt(ctx context.Context, roomID model.RoomID, eventID model.EventID) error {
	return nil
}
func (f *fakeAPI) SendFullyReadReceipt(ctx context.Context, roomID model.RoomID, eventID model.EventID) error {
	return nil
}
func (f *fakeAPI) CanUserSendMessage(ctx context.Context, roomID model.RoomID) (bool, error) {
	return true, nil
}
func (f *fakeAPI) SetIgnoredUsers(ctx context.Context, userIDs []model.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignoredCalls = append(f.ignoredCalls, userIDs)
	return nil
}

func noopFeed(ctx context.Context, roomID model.RoomID) <-chan timeline.DiffBatch {
	return make(chan timeline.DiffBatch)
}

// newTestContext constructs and starts a Context wired to api, returning it
// and a func to register a joined room by pushing a room-list diff and
// waiting for it to reach the registry.
func newTestContext(t *testing.T, api *fakeAPI) (*Context, func(roomID model.RoomID)) {
	t.Helper()
	cfg := &coreconfig.Config{Dir: t.TempDir()}
	c := New(zerolog.Nop(), cfg, api, fakeCryptoEngine{}, fakeSession{}, noopFeed, nil)

	roomListDiffs := make(chan []model.Diff[model.RoomSummary], 4)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Start(ctx, roomListDiffs)
	t.Cleanup(func() {
		cancel()
		c.Stop()
	})

	addRoom := func(roomID model.RoomID) {
		roomListDiffs <- []model.Diff[model.RoomSummary]{model.PushBack(model.RoomSummary{RoomID: roomID, JoinState: model.JoinStateJoined})}
		deadline := time.After(time.Second)
		for {
			if c.Rooms.Get(roomID) != nil {
				return
			}
			select {
			case <-deadline:
				t.Fatalf("room %s never appeared in the registry", roomID)
			case <-time.After(time.Millisecond):
			}
		}
	}
	return c, addRoom
}

// TestSendMessageRoundTrip implements spec.md §8 S1: sending a message
// succeeds and the server-acknowledged event arrives as a NewItems batch
// on the room's own fan-out channel.
func TestSendMessageRoundTrip(t *testing.T) {
	api := &fakeAPI{}
	c, addRoom := newTestContext(t, api)
	const roomID model.RoomID = "!room:example.org"
	addRoom(roomID)

	endpoints, ok := c.Rooms.TakeTimelineEndpoints(roomID)
	if !ok {
		t.Fatal("expected to take timeline endpoints for the newly joined room")
	}

	c.Dispatcher.Submit(dispatch.SendMessageRequest{
		RoomID:  roomID,
		Content: &event.MessageEventContent{MsgType: event.MsgText, Body: "hello"},
	})

	select {
	case u := <-endpoints.Updates:
		items, ok := u.(timeline.NewItems)
		if !ok {
			t.Fatalf("expected NewItems, got %#v", u)
		}
		if !items.IsAppend || len(items.NewItems) != 1 {
			t.Fatalf("expected one appended item, got %#v", items)
		}
		evt, ok := items.NewItems[0].(*model.EventItem)
		if !ok {
			t.Fatalf("expected *model.EventItem, got %#v", items.NewItems[0])
		}
		if evt.EventID != "$sent1" || evt.Preview != "hello" {
			t.Fatalf("unexpected echoed item: %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the send's local-echo NewItems batch")
	}
}

// TestIgnoreUserTriggersFullResync implements spec.md §7/§8 S4: ignoring a
// user updates the account-wide ignore list and triggers a 50-event
// backward pagination of every joined room.
func TestIgnoreUserTriggersFullResync(t *testing.T) {
	api := &fakeAPI{}
	c, addRoom := newTestContext(t, api)
	roomA := model.RoomID("!a:example.org")
	roomB := model.RoomID("!b:example.org")
	addRoom(roomA)
	addRoom(roomB)

	var ignoredAction IgnoredUsersUpdated
	var got bool
	var mu sync.Mutex
	unsubscribe := c.Listen(func(a Action) {
		if v, ok := a.(IgnoredUsersUpdated); ok {
			mu.Lock()
			ignoredAction = v
			got = true
			mu.Unlock()
		}
	})
	defer unsubscribe()

	const eve model.UserID = "@eve:example.org"
	c.Dispatcher.Submit(dispatch.IgnoreUserRequest{Ignore: true, Member: eve})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := got
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for IgnoredUsersUpdated action")
		case <-time.After(time.Millisecond):
		}
	}

	if !c.IgnoredUsers.Contains(eve) {
		t.Fatal("expected the ignore list to contain the newly ignored user")
	}
	mu.Lock()
	if len(ignoredAction.Users) != 1 || ignoredAction.Users[0] != eve {
		t.Fatalf("unexpected action payload: %+v", ignoredAction)
	}
	mu.Unlock()

	deadline = time.After(2 * time.Second)
	for {
		api.mu.Lock()
		n := len(api.paginations)
		api.mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for pagination sweep, got %d so far", n)
		case <-time.After(time.Millisecond):
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	seen := map[model.RoomID]bool{}
	for _, r := range api.paginations {
		seen[r] = true
	}
	if !seen[roomA] || !seen[roomB] {
		t.Fatalf("expected a pagination for every joined room, got %v", api.paginations)
	}
}
