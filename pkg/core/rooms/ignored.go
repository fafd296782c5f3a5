// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rooms

import (
	"sync"

	"github.com/project-robius/robrix-core/pkg/core/model"
)

// IgnoredUsers is the account-wide ignore list spec.md §5 describes as
// "mutex-protected and updated from a single background subscriber": a
// small set of user IDs the Request Dispatcher's IgnoreUserRequest
// handler mutates and the rest of the core (timeline rendering, profile
// lookups) reads.
type IgnoredUsers struct {
	mu  sync.RWMutex
	set map[model.UserID]struct{}
}

// NewIgnoredUsers constructs an empty ignore list.
func NewIgnoredUsers() *IgnoredUsers {
	return &IgnoredUsers{set: make(map[model.UserID]struct{})}
}

// Contains reports whether userID is currently ignored.
func (i *IgnoredUsers) Contains(userID model.UserID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.set[userID]
	return ok
}

// Apply adds or removes userID and returns the resulting full list, which
// is exactly the payload the m.ignored_user_list account data event
// carries to the homeserver.
func (i *IgnoredUsers) Apply(ignore bool, userID model.UserID) []model.UserID {
	i.mu.Lock()
	defer i.mu.Unlock()
	if ignore {
		i.set[userID] = struct{}{}
	} else {
		delete(i.set, userID)
	}
	out := make([]model.UserID, 0, len(i.set))
	for u := range i.set {
		out = append(out, u)
	}
	return out
}

// Snapshot returns every currently ignored user.
func (i *IgnoredUsers) Snapshot() []model.UserID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]model.UserID, 0, len(i.set))
	for u := range i.set {
		out = append(out, u)
	}
	return out
}
