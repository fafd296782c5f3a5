// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/textutil"
)

// groupWindow bounds same-sender grouping (room_events_group.rs): events
// from the same sender within this window of the previous event collapse
// under it in the presentation layer.
const groupWindow = 5 * time.Minute

// DiffBatch is one batch of ordered vector diffs over a room's timeline
// item vector, as emitted by the underlying sync machinery.
type DiffBatch []model.Diff[model.TimelineItem]

// Subscriber is the Timeline Subscriber (C6): one goroutine per room,
// owning a local vector of model.TimelineItem and consuming two inputs
// with pagination requests taking priority over timeline diffs.
type Subscriber struct {
	roomID     model.RoomID
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger

	items []model.TimelineItem

	diffsIn    <-chan DiffBatch
	pagination chan watchEnvelope[[]BackwardsPaginateUntilEventRequest]
	updates    chan Update

	target *BackwardsPaginateUntilEventRequest

	onLatestEventChanged func(item model.TimelineItem)
}

// watchEnvelope carries a watch-channel's latest value; sending overwrites
// whatever was pending, giving the same latest-value-wins semantics a
// tokio watch channel has.
type watchEnvelope[T any] struct{ value T }

// NewSubscriber constructs a Subscriber for roomID. diffsIn is the
// per-room batched diff stream the sync loop feeds; onLatestEventChanged,
// if non-nil, is invoked (from the Subscriber's own goroutine) whenever
// the room's newest event changes, so the Room Registry/Reconciler can
// refresh its room-list preview without a second copy of the timeline.
//
// It returns the Subscriber plus the two endpoints take_timeline_endpoints
// hands out to the presentation layer: the update fan-out receiver and the
// pagination-request sender.
func NewSubscriber(
	roomID model.RoomID,
	dispatcher *dispatch.Dispatcher,
	log zerolog.Logger,
	diffsIn <-chan DiffBatch,
	onLatestEventChanged func(item model.TimelineItem),
) (sub *Subscriber, updates <-chan Update, paginationRequests chan<- []BackwardsPaginateUntilEventRequest) {
	sub = &Subscriber{
		roomID:               roomID,
		dispatcher:           dispatcher,
		log:                  log.With().Str("room_id", roomID.String()).Logger(),
		diffsIn:              diffsIn,
		pagination:           make(chan watchEnvelope[[]BackwardsPaginateUntilEventRequest], 1),
		updates:              make(chan Update, 64),
		onLatestEventChanged: onLatestEventChanged,
	}
	return sub, sub.updates, sub.paginationSendAdapter()
}

// paginationSendAdapter returns a channel presentation code can send
// directly to; Run drains it with watch (latest-value) semantics.
func (s *Subscriber) paginationSendAdapter() chan<- []BackwardsPaginateUntilEventRequest {
	in := make(chan []BackwardsPaginateUntilEventRequest)
	go func() {
		for v := range in {
			select {
			case <-s.pagination:
			default:
			}
			s.pagination <- watchEnvelope[[]BackwardsPaginateUntilEventRequest]{value: v}
		}
	}()
	return in
}

// PostExternalUpdate lets a request handler running outside this
// Subscriber's own goroutine (e.g. the dispatcher's FetchRoomMembers,
// SendMessage, or typing-notice handlers) deliver an Update on this room's
// fan-out channel once its homeserver call completes.
func (s *Subscriber) PostExternalUpdate(u Update) {
	s.updates <- u
}

// Run is the room's C6 task. It exits when ctx is cancelled (room removed
// from the registry) or diffsIn is closed (stream termination, which per
// spec §4.3 is otherwise fatal at the reconciler level, not here).
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.updates)
	for {
		// Biased select: check the pagination-request channel first,
		// non-blocking, so a pending target takes priority over whatever
		// diff batch is also ready.
		select {
		case env := <-s.pagination:
			s.handlePaginationRequest(env.value)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.pagination:
			if !ok {
				return
			}
			s.handlePaginationRequest(env.value)
		case batch, ok := <-s.diffsIn:
			if !ok {
				return
			}
			s.applyBatch(ctx, batch)
		}
	}
}

// handlePaginationRequest implements the target-event search spec §4.4
// describes: compute an effective starting index, search backwards for
// the event, and either report it found or request more history and keep
// watching.
func (s *Subscriber) handlePaginationRequest(reqs []BackwardsPaginateUntilEventRequest) {
	if len(reqs) == 0 {
		s.target = nil
		return
	}
	req := reqs[len(reqs)-1]
	startIndex := req.StartingIndex
	if req.CurrentTimelineLen != len(s.items) {
		startIndex = len(s.items)
	}
	if startIndex > len(s.items) {
		startIndex = len(s.items)
	}
	for i := startIndex - 1; i >= 0; i-- {
		if id, ok := eventIDOf(s.items[i]); ok && id == req.TargetEventID {
			s.updates <- TargetEventFound{EventID: req.TargetEventID, Index: i}
			s.target = nil
			return
		}
	}
	s.target = &req
	s.updates <- PaginationRunning{Direction: dispatch.Backwards}
	s.dispatcher.Submit(dispatch.PaginateRoomTimelineRequest{
		RoomID:    s.roomID,
		NumEvents: 50,
		Direction: dispatch.Backwards,
	})
}

// applyBatch applies one batch of diffs to the local item vector, tracking
// the changed range, whether the whole cache must be discarded, and
// whether the currently-awaited target event newly appears, per spec
// §4.4's per-batch bookkeeping.
func (s *Subscriber) applyBatch(ctx context.Context, batch DiffBatch) {
	if len(batch) == 0 {
		return
	}
	changedFrom, changedTo := len(s.items), -1
	clearCache := false
	isAppend := true
	var foundTarget *TargetEventFound

	for _, d := range batch {
		before := len(s.items)
		switch d.Kind {
		case model.DiffAppend:
			changedFrom = min(changedFrom, before)
			changedTo = max(changedTo, before+len(d.Values)-1)
		case model.DiffClear, model.DiffReset:
			clearCache = true
			isAppend = false
		default:
			isAppend = false
			idx := d.Index
			changedFrom = min(changedFrom, idx)
			changedTo = max(changedTo, idx)
		}
		s.items = model.Apply(s.items, d)
	}
	if s.target != nil {
		for i := changedFrom; i <= changedTo && i >= 0 && i < len(s.items); i++ {
			if id, ok := eventIDOf(s.items[i]); ok && id == s.target.TargetEventID {
				foundTarget = &TargetEventFound{EventID: id, Index: i}
				s.target = nil
				break
			}
		}
	}

	update := NewItems{
		ChangedFrom: changedFrom,
		ChangedTo:   changedTo,
		ClearCache:  clearCache,
		IsAppend:    isAppend,
	}
	if changedFrom >= 0 && changedFrom <= changedTo {
		for i := changedFrom; i <= changedTo && i < len(s.items); i++ {
			s.recomputeGrouping(i)
			update.NewItems = append(update.NewItems, s.items[i])
		}
	}
	s.updates <- update
	for _, item := range update.NewItems {
		s.emitLinksIfMessage(item)
	}
	if foundTarget != nil {
		s.updates <- *foundTarget
	}

	if len(s.items) == 0 {
		return
	}
	latest := s.items[len(s.items)-1]
	s.detectStateChanges(latest)
	if s.onLatestEventChanged != nil {
		s.onLatestEventChanged(latest)
	}
}

// detectStateChanges submits follow-up self-requests when the newest
// timeline item is a state event that invalidates cached derived data
// (spec §4.4: room name/avatar/power-level changes).
func (s *Subscriber) detectStateChanges(latest model.TimelineItem) {
	item, ok := latest.(*model.EventItem)
	if !ok {
		return
	}
	switch item.Kind {
	case model.ContentRoomAvatar:
		s.dispatcher.Submit(dispatch.FetchAvatarRequest{URI: item.RoomAvatarURL})
	case model.ContentRoomPowerLevels:
		s.dispatcher.Submit(dispatch.CheckCanUserSendMessageRequest{RoomID: s.roomID})
	}
}

// emitLinksIfMessage scans a newly-arrived message event's preview text for
// URLs, letting a presentation layer drive link-preview fetches off the
// timeline stream instead of re-scanning every event itself.
func (s *Subscriber) emitLinksIfMessage(item model.TimelineItem) {
	ev, ok := item.(*model.EventItem)
	if !ok || ev.Kind != model.ContentMessage {
		return
	}
	if links := textutil.ExtractLinks(ev.Preview); len(links) > 0 {
		s.updates <- LinksDetected{EventID: ev.EventID, Links: links}
	}
}

// recomputeGrouping sets s.items[i]'s GroupWithPrevious flag based on the
// item directly before it, implementing the 5-minute same-sender grouping
// extension (room_events_group.rs). A no-op for non-event items or when i
// is the first item in the timeline.
func (s *Subscriber) recomputeGrouping(i int) {
	if i <= 0 || i >= len(s.items) {
		return
	}
	cur, ok := s.items[i].(*model.EventItem)
	if !ok {
		return
	}
	prev, ok := s.items[i-1].(*model.EventItem)
	if !ok {
		cur.GroupWithPrevious = false
		return
	}
	gap := cur.Timestamp.Sub(prev.Timestamp)
	cur.GroupWithPrevious = cur.Sender == prev.Sender && gap >= 0 && gap <= groupWindow
}

func eventIDOf(item model.TimelineItem) (model.EventID, bool) {
	if ev, ok := item.(*model.EventItem); ok {
		return ev.EventID, true
	}
	return "", false
}
