// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mxclient

import (
	"context"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/timeline"
)

// feedState tracks the room-list order mxclient has already announced, so
// that later updates can be expressed as index-addressed Set diffs rather
// than a full Reset (which the reconciler treats as a pure clear, not a
// resync — see rooms.Reconciler.applyBatch).
type feedState struct {
	mu    sync.Mutex
	order []id.RoomID
}

func (s *feedState) indexOf(roomID id.RoomID) int {
	for i, r := range s.order {
		if r == roomID {
			return i
		}
	}
	return -1
}

// RoomListDiffs registers sync callbacks on c.Client's DefaultSyncer and
// translates join/invite/leave sections of each sync response into the
// room-list diff stream the Room-List Reconciler (C5) consumes. Must be
// called after StartSyncService has installed a *mautrix.DefaultSyncer.
func (c *Client) RoomListDiffs(ctx context.Context) <-chan []model.Diff[model.RoomSummary] {
	out := make(chan []model.Diff[model.RoomSummary], 16)
	syncer, ok := c.Client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		close(out)
		return out
	}
	state := &feedState{}
	syncer.OnSync(func(_ context.Context, resp *mautrix.RespSync, since string) error {
		state.mu.Lock()
		defer state.mu.Unlock()
		var batch []model.Diff[model.RoomSummary]
		for roomID, joined := range resp.Rooms.Join {
			summary := model.RoomSummary{RoomID: model.RoomID(roomID), JoinState: model.JoinStateJoined}
			applyStateToSummary(&summary, joined.State.Events)
			applyStateToSummary(&summary, joined.Timeline.Events)
			if idx := state.indexOf(roomID); idx >= 0 {
				batch = append(batch, model.Set(idx, summary))
			} else {
				state.order = append(state.order, roomID)
				batch = append(batch, model.PushBack(summary))
			}
		}
		for roomID := range resp.Rooms.Invite {
			summary := model.RoomSummary{RoomID: model.RoomID(roomID), JoinState: model.JoinStateInvited}
			if idx := state.indexOf(roomID); idx >= 0 {
				batch = append(batch, model.Set(idx, summary))
			} else {
				state.order = append(state.order, roomID)
				batch = append(batch, model.PushBack(summary))
			}
		}
		for roomID := range resp.Rooms.Leave {
			if idx := state.indexOf(roomID); idx >= 0 {
				batch = append(batch, model.Remove[model.RoomSummary](idx))
				state.order = append(state.order[:idx], state.order[idx+1:]...)
			}
		}
		if len(batch) == 0 {
			return nil
		}
		select {
		case out <- batch:
		case <-ctx.Done():
		}
		return nil
	})
	return out
}

// applyStateToSummary folds name/avatar/tombstone state events into
// summary, the minimal subset of room state spec §4.3 says the reconciler
// needs to decide whether a room changed.
func applyStateToSummary(summary *model.RoomSummary, events []*event.Event) {
	for _, evt := range events {
		switch evt.Type {
		case event.StateRoomName:
			if content, ok := evt.Content.Parsed.(*event.RoomNameEventContent); ok {
				summary.Name = content.Name
			}
		case event.StateRoomAvatar:
			if content, ok := evt.Content.Parsed.(*event.RoomAvatarEventContent); ok {
				summary.Avatar = content.URL.ParseOrIgnore()
			}
		case event.StateTombstone:
			if content, ok := evt.Content.Parsed.(*event.TombstoneEventContent); ok {
				summary.Tombstone = &model.TombstoneRef{SuccessorRoomID: model.RoomID(content.ReplacementRoom), Reason: content.Body}
			}
		case event.EventMessage:
			if content, ok := evt.Content.Parsed.(*event.MessageEventContent); ok {
				summary.LatestEvent = &model.LatestEventSummary{
					EventID: model.EventID(evt.ID),
					Sender:  model.UserID(evt.Sender),
					Preview: content.Body,
				}
			}
		}
	}
}

// TimelineFeed matches rooms.TimelineFeed: it registers a sync callback
// scoped to roomID and translates new timeline events into Append diffs,
// the minimal subset of §4.4's batched-diff contract a live sync
// connection can drive without hicli's full local event store.
func (c *Client) TimelineFeed(ctx context.Context, roomID model.RoomID) <-chan timeline.DiffBatch {
	out := make(chan timeline.DiffBatch, 16)
	syncer, ok := c.Client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		close(out)
		return out
	}
	removeFn := syncer.OnEventType(event.EventMessage, func(_ mautrix.EventSource, evt *event.Event) {
		if evt.RoomID != id.RoomID(roomID) {
			return
		}
		content, ok := evt.Content.Parsed.(*event.MessageEventContent)
		if !ok {
			return
		}
		item := &model.EventItem{
			EventID:   model.EventID(evt.ID),
			Sender:    model.UserID(evt.Sender),
			Timestamp: time.UnixMilli(evt.Timestamp),
			Kind:      model.ContentMessage,
			Preview:   content.Body,
		}
		select {
		case out <- timeline.DiffBatch{model.Append([]model.TimelineItem{item})}:
		case <-ctx.Done():
		}
	})
	go func() {
		<-ctx.Done()
		removeFn()
		close(out)
	}()
	return out
}
