// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rooms

import (
	"container/list"
	"sync"

	"github.com/project-robius/robrix-core/pkg/core/model"
)

// previewCacheSize bounds the LRU the way room_preview_cache.rs bounds its
// own un-joined-room preview cache, so a user scrolling through many space
// hierarchies or alias resolutions doesn't grow this table unbounded.
const previewCacheSize = 200

// RoomPreview is what's known about a room the local user has not joined:
// enough to render a join/knock prompt without a full room object.
type RoomPreview struct {
	RoomID      model.RoomID
	Name        string
	Topic       string
	Avatar      model.ContentURI
	NumMembers  int
	WorldReadable bool
}

// PreviewCache is a small LRU of RoomPreview entries for un-joined rooms,
// keyed by room ID, fed by ResolveRoomAlias results and space-hierarchy
// walks (SPEC_FULL §4.3's extension of the Room-List Reconciler). It fills
// the gap spec.md §6 leaves open by naming RoomPreviewAction::Fetched
// without ever specifying what produces it.
type PreviewCache struct {
	mu       sync.Mutex
	entries  map[model.RoomID]*list.Element
	order    *list.List // front = most recently used
}

// NewPreviewCache constructs an empty PreviewCache.
func NewPreviewCache() *PreviewCache {
	return &PreviewCache{
		entries: make(map[model.RoomID]*list.Element),
		order:   list.New(),
	}
}

// Put records or refreshes preview, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *PreviewCache) Put(preview RoomPreview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[preview.RoomID]; ok {
		elem.Value = preview
		c.order.MoveToFront(elem)
		return
	}
	elem := c.order.PushFront(preview)
	c.entries[preview.RoomID] = elem
	if c.order.Len() > previewCacheSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(RoomPreview).RoomID)
		}
	}
}

// Get returns the cached preview for roomID, promoting it to
// most-recently-used, or ok=false if it isn't cached.
func (c *PreviewCache) Get(roomID model.RoomID) (preview RoomPreview, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, found := c.entries[roomID]
	if !found {
		return RoomPreview{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(RoomPreview), true
}
