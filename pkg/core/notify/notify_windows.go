// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build windows

package notify

import (
	"github.com/rs/zerolog/log"
	"gopkg.in/toast.v1"
)

func raiseOSNotification(title, body string) {
	if title == "" {
		return
	}
	n := toast.Notification{
		AppID:   "robrix-core",
		Title:   title,
		Message: body,
	}
	if err := n.Push(); err != nil {
		log.Debug().Err(err).Msg("Failed to raise desktop notification")
	}
}
