// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !windows

package notify

// On non-Windows platforms the core has no portable desktop-notification
// API of its own; a presentation layer that wants native notifications
// registers a Listen callback and raises them itself. in-process fan-out
// (the part every platform needs) still happens in Signal.
func raiseOSNotification(string, string) {}
