// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mediacache

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/model"
	"github.com/project-robius/robrix-core/pkg/core/notify"
)

// Format distinguishes full-resolution media from a thumbnail variant, so
// the same URI can hold two independent entries.
type Format int

const (
	FormatFull Format = iota
	FormatThumbnail
)

type key struct {
	uri    model.ContentURI
	format Format
}

// Cache is the Media Cache (C1): a mutex-protected map from (URI, format)
// to Entry, with the at-most-one-fetch-in-flight guarantee the original
// gains by inserting the Requested entry before dispatching the fetch.
type Cache struct {
	log        zerolog.Logger
	dispatcher *dispatch.Dispatcher

	mu      sync.Mutex
	entries map[key]*Entry
}

// New constructs an empty Cache.
func New(log zerolog.Logger, dispatcher *dispatch.Dispatcher) *Cache {
	return &Cache{
		log:        log.With().Str("component", "mediacache").Logger(),
		dispatcher: dispatcher,
		entries:    make(map[key]*Entry),
	}
}

// TryGet is non-blocking: it returns the current snapshot for (uri,
// format) if present, ok=false if absent. Suitable for draw paths that
// must never wait on network I/O.
func (c *Cache) TryGet(uri model.ContentURI, format Format) (Snapshot, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key{uri, format}]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return entry.snapshot(), true
}

// TryGetOrFetch returns the current entry if present; otherwise it
// inserts a Requested entry, submits a fetch request to the dispatcher,
// and returns the freshly-inserted Requested snapshot. Because the entry
// is inserted before the fetch is dispatched, a second caller racing on
// the same key observes Requested and never issues a duplicate fetch.
func (c *Cache) TryGetOrFetch(uri model.ContentURI, format Format, updateChannel chan<- any) Snapshot {
	c.mu.Lock()
	entry, existed := c.entries[key{uri, format}]
	if !existed {
		entry = &Entry{status: StatusRequested}
		c.entries[key{uri, format}] = entry
	}
	c.mu.Unlock()
	if existed {
		return entry.snapshot()
	}

	onFetched := func(data []byte, err error) {
		var blurhash string
		if err == nil && format == FormatThumbnail {
			blurhash = encodeBlurhash(data)
			if thumb, thumbErr := generateThumbnail(data); thumbErr == nil {
				data = thumb
			} else {
				c.log.Debug().Err(thumbErr).Stringer("uri", uri).Msg("Failed to generate thumbnail, caching original")
			}
		}
		entry.complete(data, blurhash, err)
		if updateChannel != nil {
			select {
			case updateChannel <- entryFetchedSignal{URI: uri, Err: err}:
			default:
				c.log.Warn().Stringer("uri", uri).Msg("Update channel full, dropping media-fetched signal")
			}
		} else {
			notify.Signal("", "")
		}
	}

	if format == FormatThumbnail {
		c.dispatcher.Submit(dispatch.FetchAvatarRequest{URI: uri, OnFetched: onFetched})
	} else {
		c.dispatcher.Submit(dispatch.FetchMediaRequest{
			Destination: dispatch.DestinationTimeline,
			OnFetched:   onFetched,
		})
	}
	return entry.snapshot()
}

// entryFetchedSignal is the concrete value mediacache sends on a
// registered update channel; timeline.MediaFetched is the presentation-
// facing equivalent constructed from it by whatever owns the channel.
type entryFetchedSignal struct {
	URI model.ContentURI
	Err error
}
