// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mediacache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
)

func testURI(fileID string) model.ContentURI {
	return model.ContentURI{Homeserver: "example.org", FileID: fileID}
}

func TestTryGetMissingIsNotOK(t *testing.T) {
	c := New(zerolog.Nop(), dispatch.New(zerolog.Nop(), func(context.Context, dispatch.Request) {}))
	if _, ok := c.TryGet(testURI("abc"), FormatFull); ok {
		t.Fatal("expected a miss for an unfetched URI")
	}
}

func TestTryGetOrFetchCoalescesConcurrentCallers(t *testing.T) {
	var fetchCount int
	var mu sync.Mutex
	d := dispatch.New(zerolog.Nop(), func(ctx context.Context, req dispatch.Request) {
		mu.Lock()
		fetchCount++
		mu.Unlock()
		if r, ok := req.(dispatch.FetchMediaRequest); ok && r.OnFetched != nil {
			r.OnFetched([]byte("data"), nil)
		}
	})
	go d.Run()
	defer d.Close()

	c := New(zerolog.Nop(), d)
	uri := testURI("same")

	const callers = 20
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			c.TryGetOrFetch(uri, FormatFull, nil)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fetchCount != 1 {
		t.Fatalf("expected exactly one dispatched fetch for concurrent callers on the same key, got %d", fetchCount)
	}
}

func TestTryGetOrFetchCompletesAndBecomesVisibleToTryGet(t *testing.T) {
	d := dispatch.New(zerolog.Nop(), func(ctx context.Context, req dispatch.Request) {
		if r, ok := req.(dispatch.FetchMediaRequest); ok && r.OnFetched != nil {
			r.OnFetched([]byte("hello"), nil)
		}
	})
	go d.Run()
	defer d.Close()

	c := New(zerolog.Nop(), d)
	uri := testURI("x")
	c.TryGetOrFetch(uri, FormatFull, nil)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := c.TryGet(uri, FormatFull); ok && snap.Status == StatusLoaded {
			if string(snap.Data) != "hello" {
				t.Fatalf("got data %q", snap.Data)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("entry never reached StatusLoaded")
}

func TestTryGetOrFetchDistinguishesFullAndThumbnailFormats(t *testing.T) {
	d := dispatch.New(zerolog.Nop(), func(ctx context.Context, req dispatch.Request) {})
	go d.Run()
	defer d.Close()

	c := New(zerolog.Nop(), d)
	uri := testURI("y")
	full := c.TryGetOrFetch(uri, FormatFull, nil)
	thumb := c.TryGetOrFetch(uri, FormatThumbnail, nil)
	if full.Status != StatusRequested || thumb.Status != StatusRequested {
		t.Fatalf("expected both to start Requested, got %+v / %+v", full, thumb)
	}

	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	if n != 2 {
		t.Fatalf("expected two independent entries for full vs thumbnail, got %d", n)
	}
}
