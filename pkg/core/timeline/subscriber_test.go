// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
)

func newTestSubscriber(t *testing.T, diffsIn <-chan DiffBatch) (*Subscriber, <-chan Update, chan<- []BackwardsPaginateUntilEventRequest, func()) {
	t.Helper()
	submitted := make(chan dispatch.Request, 16)
	d := dispatch.New(zerolog.Nop(), func(ctx context.Context, req dispatch.Request) {
		submitted <- req
	})
	go d.Run()

	sub, updates, pagination := NewSubscriber("!room:example.org", d, zerolog.Nop(), diffsIn, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go sub.Run(ctx)
	return sub, updates, pagination, func() {
		cancel()
		d.Close()
	}
}

func recvUpdate(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
		return nil
	}
}

func TestSubscriberAppliesAppendAndEmitsNewItems(t *testing.T) {
	diffsIn := make(chan DiffBatch, 1)
	_, updates, _, cleanup := newTestSubscriber(t, diffsIn)
	defer cleanup()

	item := &model.EventItem{EventID: "$a", Kind: model.ContentMessage, Preview: "hello"}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{item})}

	u := recvUpdate(t, updates).(NewItems)
	if len(u.NewItems) != 1 || !u.IsAppend {
		t.Fatalf("got %+v", u)
	}
}

func TestSubscriberDetectsLinksInMessageBody(t *testing.T) {
	diffsIn := make(chan DiffBatch, 1)
	_, updates, _, cleanup := newTestSubscriber(t, diffsIn)
	defer cleanup()

	item := &model.EventItem{EventID: "$a", Kind: model.ContentMessage, Preview: "see https://example.org/page for details"}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{item})}

	_ = recvUpdate(t, updates) // NewItems

	u := recvUpdate(t, updates).(LinksDetected)
	if u.EventID != "$a" || len(u.Links) != 1 || u.Links[0] != "https://example.org/page" {
		t.Fatalf("got %+v", u)
	}
}

func TestSubscriberGroupsConsecutiveSameSenderEventsWithinWindow(t *testing.T) {
	diffsIn := make(chan DiffBatch, 1)
	_, updates, _, cleanup := newTestSubscriber(t, diffsIn)
	defer cleanup()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	first := &model.EventItem{EventID: "$a", Sender: "@alice:example.org", Kind: model.ContentMessage, Timestamp: base}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{first})}
	u := recvUpdate(t, updates).(NewItems)
	if u.NewItems[0].(*model.EventItem).GroupWithPrevious {
		t.Fatal("first item in the timeline must never be grouped")
	}

	withinWindow := &model.EventItem{EventID: "$b", Sender: "@alice:example.org", Kind: model.ContentMessage, Timestamp: base.Add(time.Minute)}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{withinWindow})}
	u = recvUpdate(t, updates).(NewItems)
	if !u.NewItems[0].(*model.EventItem).GroupWithPrevious {
		t.Fatal("expected same-sender event within the grouping window to be grouped")
	}

	otherSender := &model.EventItem{EventID: "$c", Sender: "@bob:example.org", Kind: model.ContentMessage, Timestamp: base.Add(2 * time.Minute)}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{otherSender})}
	u = recvUpdate(t, updates).(NewItems)
	if u.NewItems[0].(*model.EventItem).GroupWithPrevious {
		t.Fatal("expected a different sender to break grouping")
	}

	tooLate := &model.EventItem{EventID: "$d", Sender: "@bob:example.org", Kind: model.ContentMessage, Timestamp: base.Add(20 * time.Minute)}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{tooLate})}
	u = recvUpdate(t, updates).(NewItems)
	if u.NewItems[0].(*model.EventItem).GroupWithPrevious {
		t.Fatal("expected an event outside the grouping window to break grouping")
	}
}

func TestSubscriberPaginationRequestsWhenTargetNotYetPresent(t *testing.T) {
	diffsIn := make(chan DiffBatch, 1)
	submitted := make(chan dispatch.Request, 16)
	d := dispatch.New(zerolog.Nop(), func(ctx context.Context, req dispatch.Request) {
		submitted <- req
	})
	go d.Run()
	defer d.Close()

	sub, updates, pagination := NewSubscriber("!room:example.org", d, zerolog.Nop(), diffsIn, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	pagination <- []BackwardsPaginateUntilEventRequest{{RoomID: "!room:example.org", TargetEventID: "$missing", StartingIndex: 0, CurrentTimelineLen: 0}}

	u := recvUpdate(t, updates)
	if _, ok := u.(PaginationRunning); !ok {
		t.Fatalf("expected PaginationRunning, got %+v", u)
	}

	select {
	case req := <-submitted:
		if _, ok := req.(dispatch.PaginateRoomTimelineRequest); !ok {
			t.Fatalf("expected PaginateRoomTimelineRequest, got %#v", req)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pagination request to be submitted")
	}
}

func TestSubscriberFindsTargetAlreadyInTimeline(t *testing.T) {
	diffsIn := make(chan DiffBatch, 1)
	_, updates, pagination, cleanup := newTestSubscriber(t, diffsIn)
	defer cleanup()

	item := &model.EventItem{EventID: "$a", Kind: model.ContentMessage}
	diffsIn <- DiffBatch{model.Append([]model.TimelineItem{item})}
	_ = recvUpdate(t, updates) // NewItems

	pagination <- []BackwardsPaginateUntilEventRequest{{RoomID: "!room:example.org", TargetEventID: "$a", StartingIndex: 1, CurrentTimelineLen: 1}}

	u := recvUpdate(t, updates).(TargetEventFound)
	if u.EventID != "$a" || u.Index != 0 {
		t.Fatalf("got %+v", u)
	}
}
