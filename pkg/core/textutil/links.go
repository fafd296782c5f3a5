// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package textutil

import "mvdan.cc/xurls/v2"

var strictLinks = xurls.Strict()

// ExtractLinks returns every URL found in body, in the order they appear,
// the detection step a link-preview feature needs before it can fetch
// anything. It deliberately stops at detection: fetching and caching the
// preview itself is a presentation-layer concern layered on top of the
// media pipeline, not something this package does.
func ExtractLinks(body string) []string {
	return strictLinks.FindAllString(body, -1)
}
