// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package avatarfallback derives the "single-grapheme text fallback"
// avatar the data model (spec §3) names for rooms and users that have no
// image avatar: a single extended grapheme cluster plus a deterministic
// color, so the same name always renders the same fallback avatar.
package avatarfallback

import (
	"hash/fnv"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// Grapheme returns the first extended grapheme cluster of name, upper-cased
// where that's meaningful. Grapheme clusters (not runes) are used so that
// names starting with multi-codepoint emoji or combining-mark sequences
// still produce one visually-correct fallback glyph.
func Grapheme(name string) string {
	if name == "" {
		return "?"
	}
	gr := uniseg.NewGraphemes(name)
	if !gr.Next() {
		return "?"
	}
	return string(gr.Runes())
}

// Color derives a deterministic, visually distinct color from seed (a
// user ID or room ID is the typical seed), so the same entity always gets
// the same fallback avatar background across restarts and across every
// presentation layer attached to the core.
func Color(seed string) colorful.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	hue := float64(h.Sum32()%360) / 360 * 360
	return colorful.Hsv(hue, 0.55, 0.85)
}
