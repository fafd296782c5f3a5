// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mxclient is the concrete adapter wrapping a real
// maunium.net/go/mautrix Client to satisfy the two narrow seams the core
// depends on: session.HomeserverClient (login/sync lifecycle) and
// core.HomeserverAPI (every other homeserver-facing request). Grounded
// directly on the call shapes pkg/hicli/{commands,json-commands,send}.go
// use against the same SDK.
package mxclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/rooms"
	"github.com/project-robius/robrix-core/pkg/core/session"
)

// Client wraps a live *mautrix.Client. It implements both
// session.HomeserverClient and core.HomeserverAPI from a single connection,
// since both seams ultimately drive the same SDK handle; the split exists
// at the interface boundary, not in the concrete type.
type Client struct {
	Client *mautrix.Client

	transport *http.Transport

	syncErrs chan error
	syncStop context.CancelFunc
}

// New constructs a Client for homeserver, dialing through transport (see
// config.Config.HTTPTransport).
func New(homeserver string, transport *http.Transport) (*Client, error) {
	cli, err := mautrix.NewClient(homeserver, "", "")
	if err != nil {
		return nil, fmt.Errorf("constructing mautrix client: %w", err)
	}
	cli.Client = &http.Client{Transport: transport, Timeout: 2 * time.Minute}
	return &Client{Client: cli, transport: transport, syncErrs: make(chan error, 1)}, nil
}

// --- session.HomeserverClient -----------------------------------------

var _ session.HomeserverClient = (*Client)(nil)

func (c *Client) SupportsPasswordLogin(ctx context.Context, homeserver string) (bool, error) {
	flows, err := c.Client.GetLoginFlows(mautrix.WithMaxRetries(ctx, 2))
	if err != nil {
		return false, fmt.Errorf("fetching login flows: %w", err)
	}
	for _, flow := range flows.Flows {
		if flow.Type == mautrix.AuthTypePassword {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) LoginPassword(ctx context.Context, homeserver, username, password string) (json.RawMessage, model.UserID, error) {
	resp, err := c.Client.Login(mautrix.WithMaxRetries(ctx, 0), &mautrix.ReqLogin{
		Type:                     mautrix.AuthTypePassword,
		Identifier:               mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: username},
		Password:                 password,
		InitialDeviceDisplayName: "robrix-core",
		StoreCredentials:         true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("password login: %w", err)
	}
	userSession, err := json.Marshal(resp)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling login response: %w", err)
	}
	return userSession, model.UserID(resp.UserID), nil
}

func (c *Client) RestoreSession(ctx context.Context, clientSession session.ClientSession, userSession json.RawMessage) (model.UserID, error) {
	var resp mautrix.RespLogin
	if err := json.Unmarshal(userSession, &resp); err != nil {
		return "", fmt.Errorf("parsing persisted session: %w", err)
	}
	c.Client.UserID = resp.UserID
	c.Client.AccessToken = resp.AccessToken
	c.Client.DeviceID = resp.DeviceID
	return model.UserID(resp.UserID), nil
}

// StartSyncService runs the SDK's blocking Sync loop on its own goroutine,
// the plain mautrix.Client equivalent of hicli's higher-level SyncService
// state machine: spec §4.7 only requires that a failed sync be observable
// and restartable, which a bare DefaultSyncer error callback already gives
// us without needing hicli's full state machine.
func (c *Client) StartSyncService(ctx context.Context) error {
	syncCtx, cancel := context.WithCancel(ctx)
	c.syncStop = cancel
	syncer, ok := c.Client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		syncer = mautrix.NewDefaultSyncer()
		c.Client.Syncer = syncer
	}
	go func() {
		if err := c.Client.SyncWithContext(syncCtx); err != nil && syncCtx.Err() == nil {
			select {
			case c.syncErrs <- err:
			default:
			}
		}
	}()
	return nil
}

func (c *Client) SyncServiceErrors() <-chan error { return c.syncErrs }

func (c *Client) SsoLoginURL(ctx context.Context, homeserver, brand, idp, callback string) (string, error) {
	u := c.Client.BuildURL(mautrix.SyncReq{}.ClientURLPath("login", "sso", "redirect"))
	if idp != "" {
		u = c.Client.BuildURL(mautrix.SyncReq{}.ClientURLPath("login", "sso", "redirect", idp))
	}
	return fmt.Sprintf("%s?redirectUrl=%s", u, callback), nil
}

func (c *Client) ExchangeSSOToken(ctx context.Context, homeserver, loginToken string) (json.RawMessage, model.UserID, error) {
	resp, err := c.Client.Login(mautrix.WithMaxRetries(ctx, 0), &mautrix.ReqLogin{
		Type:                     mautrix.AuthTypeToken,
		Token:                    loginToken,
		InitialDeviceDisplayName: "robrix-core",
		StoreCredentials:         true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("exchanging SSO token: %w", err)
	}
	userSession, err := json.Marshal(resp)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling login response: %w", err)
	}
	return userSession, model.UserID(resp.UserID), nil
}

// --- core.HomeserverAPI -------------------------------------------------

func (c *Client) SendMessage(ctx context.Context, roomID model.RoomID, content *event.MessageEventContent, repliedTo model.EventID) (model.EventID, time.Time, error) {
	if repliedTo != "" {
		content.RelatesTo = &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: id.EventID(repliedTo)}}
	}
	resp, err := c.Client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content, mautrix.ReqSendEvent{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sending message: %w", err)
	}
	return model.EventID(resp.EventID), time.Now(), nil
}

func (c *Client) PaginateRoomTimeline(ctx context.Context, roomID model.RoomID, num int, dir dispatch.Direction) error {
	dirParam := mautrix.DirectionBackward
	if dir == dispatch.Forwards {
		dirParam = mautrix.DirectionForward
	}
	_, err := c.Client.Messages(ctx, id.RoomID(roomID), "", "", dirParam, nil, num)
	if err != nil {
		return fmt.Errorf("paginating room %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) FetchEventDetails(ctx context.Context, roomID model.RoomID, eventID model.EventID) (model.TimelineItem, error) {
	evt, err := c.Client.GetEvent(mautrix.WithMaxRetries(ctx, 2), id.RoomID(roomID), id.EventID(eventID))
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	return eventToItem(evt), nil
}

func (c *Client) FetchRoomMembers(ctx context.Context, roomID model.RoomID) ([]model.RoomMember, error) {
	resp, err := c.Client.Members(ctx, id.RoomID(roomID))
	if err != nil {
		return nil, fmt.Errorf("fetching members of %s: %w", roomID, err)
	}
	members := make([]model.RoomMember, 0, len(resp.Chunk))
	for _, evt := range resp.Chunk {
		content, ok := evt.Content.Parsed.(*event.MemberEventContent)
		if !ok {
			continue
		}
		members = append(members, model.RoomMember{
			RoomID:      roomID,
			UserID:      model.UserID(evt.Sender),
			DisplayName: content.Displayname,
		})
	}
	return members, nil
}

func (c *Client) GetUserProfile(ctx context.Context, userID model.UserID, roomID model.RoomID, localOnly bool) (model.UserProfile, error) {
	if localOnly {
		ctx = mautrix.WithMaxRetries(ctx, 0)
	}
	resp, err := c.Client.GetProfile(ctx, id.UserID(userID))
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("fetching profile for %s: %w", userID, err)
	}
	profile := model.UserProfile{UserID: userID, DisplayName: resp.DisplayName}
	if resp.AvatarURL != "" {
		profile.Avatar = model.AvatarState{Status: model.AvatarKnown, URI: resp.AvatarURL.ParseOrIgnore()}
	}
	return profile, nil
}

func (c *Client) ResolveRoomAlias(ctx context.Context, alias string) (model.RoomID, error) {
	resp, err := c.Client.ResolveAlias(ctx, id.RoomAlias(alias))
	if err != nil {
		return "", fmt.Errorf("resolving alias %s: %w", alias, err)
	}
	return model.RoomID(resp.RoomID), nil
}

func (c *Client) FetchRoomPreview(ctx context.Context, roomIDOrAlias string) (rooms.RoomPreview, error) {
	resp, err := c.Client.GetRoomSummary(mautrix.WithMaxRetries(ctx, 2), roomIDOrAlias)
	if err != nil {
		return rooms.RoomPreview{}, fmt.Errorf("fetching preview for %s: %w", roomIDOrAlias, err)
	}
	preview := rooms.RoomPreview{
		RoomID:        model.RoomID(resp.RoomID),
		Name:          resp.Name,
		Topic:         resp.Topic,
		NumMembers:    resp.NumJoinedMembers,
		WorldReadable: resp.WorldReadable,
	}
	if resp.AvatarURL != "" {
		preview.Avatar = resp.AvatarURL.ParseOrIgnore()
	}
	return preview, nil
}

func (c *Client) FetchMedia(ctx context.Context, req dispatch.FetchMediaRequest) ([]byte, error) {
	mxc, err := req.Request.URL.Parse()
	if err != nil {
		return nil, fmt.Errorf("parsing media URL: %w", err)
	}
	return c.downloadContentURI(ctx, model.ContentURI(mxc))
}

func (c *Client) FetchAvatar(ctx context.Context, uri model.ContentURI) ([]byte, error) {
	return c.downloadContentURI(ctx, uri)
}

func (c *Client) downloadContentURI(ctx context.Context, uri model.ContentURI) ([]byte, error) {
	resp, err := c.Client.Download(mautrix.WithMaxRetries(ctx, 0), id.ContentURI(uri))
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", uri, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return data, nil
}

func (c *Client) SendTypingNotice(ctx context.Context, roomID model.RoomID, typing bool) error {
	timeout := 0 * time.Second
	if typing {
		timeout = 20 * time.Second
	}
	_, err := c.Client.UserTyping(ctx, id.RoomID(roomID), typing, timeout)
	if err != nil {
		return fmt.Errorf("sending typing notice to %s: %w", roomID, err)
	}
	return nil
}

// SubscribeTypingNotices registers onUsers against the shared
// DefaultSyncer's ephemeral-event callback, filtered to roomID, until
// unsubscribe is called. The SDK has no per-room typing subscription
// primitive of its own, so this mirrors the sync-event-dispatch idiom
// pkg/hicli uses for its own ephemeral event handling.
func (c *Client) SubscribeTypingNotices(ctx context.Context, roomID model.RoomID, onUsers func([]model.UserID)) (func(), error) {
	syncer, ok := c.Client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return func() {}, fmt.Errorf("syncer not initialized; call StartSyncService first")
	}
	removeFn := syncer.OnEventType(event.EphemeralEventTyping, func(_ mautrix.EventSource, evt *event.Event) {
		if evt.RoomID != id.RoomID(roomID) {
			return
		}
		content, ok := evt.Content.Parsed.(*event.TypingEventContent)
		if !ok {
			return
		}
		users := make([]model.UserID, len(content.UserIDs))
		for i, u := range content.UserIDs {
			users[i] = model.UserID(u)
		}
		onUsers(users)
	})
	return removeFn, nil
}

func (c *Client) SendReadReceipt(ctx context.Context, roomID model.RoomID, eventID model.EventID) error {
	err := c.Client.SendReceipt(ctx, id.RoomID(roomID), id.EventID(eventID), event.ReceiptTypeRead, nil)
	if err != nil {
		return fmt.Errorf("sending read receipt in %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) SendFullyReadReceipt(ctx context.Context, roomID model.RoomID, eventID model.EventID) error {
	content := map[string]any{"m.fully_read": map[string]string{"event_id": string(eventID)}}
	err := c.Client.SetReadMarkers(ctx, id.RoomID(roomID), content)
	if err != nil {
		return fmt.Errorf("sending fully-read marker in %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) CanUserSendMessage(ctx context.Context, roomID model.RoomID) (bool, error) {
	levels, err := c.Client.PowerLevels(ctx, id.RoomID(roomID))
	if err != nil {
		return false, fmt.Errorf("fetching power levels for %s: %w", roomID, err)
	}
	return levels.GetUserLevel(c.Client.UserID) >= levels.GetEventLevel(event.EventMessage), nil
}

func (c *Client) SetIgnoredUsers(ctx context.Context, userIDs []model.UserID) error {
	ignored := make(map[id.UserID]struct{}, len(userIDs))
	for _, u := range userIDs {
		ignored[id.UserID(u)] = struct{}{}
	}
	content := event.IgnoredUserListEventContent{IgnoredUsers: ignored}
	err := c.Client.SetAccountData(ctx, event.AccountDataIgnoredUserList.Type, &content)
	if err != nil {
		return fmt.Errorf("updating ignored user list: %w", err)
	}
	return nil
}

// eventToItem converts a raw SDK event into the core's TimelineItem model,
// the same narrow translation send.go performs when building local echoes.
func eventToItem(evt *event.Event) model.TimelineItem {
	item := &model.EventItem{
		EventID:   model.EventID(evt.ID),
		Sender:    model.UserID(evt.Sender),
		Timestamp: time.UnixMilli(evt.Timestamp),
		Kind:      model.ContentUnknown,
	}
	if content, ok := evt.Content.Parsed.(*event.MessageEventContent); ok {
		item.Kind = model.ContentMessage
		item.Preview = content.Body
	}
	return item
}
