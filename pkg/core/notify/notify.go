// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package notify implements the "process-wide UI signal" fallback that
// §4.5 describes: when a media or profile fetch completes and no
// per-request update channel was registered, something still needs to
// tell a presentation layer to redraw. Listen registers a callback run on
// every such signal; raiseOSNotification (platform-specific, see
// notify_windows.go / notify_other.go) additionally surfaces a desktop
// notification when the process is not in the foreground.
package notify

import "sync"

var (
	mu        sync.RWMutex
	listeners []*func()
)

// Listen registers a callback invoked on every Signal and returns a
// function to remove it.
func Listen(cb func()) (unsubscribe func()) {
	mu.Lock()
	defer mu.Unlock()
	ptr := &cb
	listeners = append(listeners, ptr)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		for i, l := range listeners {
			if l == ptr {
				listeners = append(listeners[:i], listeners[i+1:]...)
				return
			}
		}
	}
}

// Signal fires the process-wide UI signal. title/body are only used by
// the platform-specific desktop-notification backend; in-process
// listeners registered via Listen ignore them.
func Signal(title, body string) {
	mu.RLock()
	snapshot := make([]*func(), len(listeners))
	copy(snapshot, listeners)
	mu.RUnlock()
	for _, l := range snapshot {
		(*l)()
	}
	raiseOSNotification(title, body)
}
