// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package textutil provides the search-name normalization and fuzzy
// matching shared by the room registry, the room-list reconciler, and the
// profile cache's member search. It intentionally does not implement bulk
// message search (an explicit core non-goal); it only helps a
// presentation layer filter the (small) in-memory room and member lists.
package textutil

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// Normalize reduces s to a case-folded, NFKC-normalized form suitable for
// storing as a Room or RoomMember's SearchName / SearchString field. Two
// display names that a user would consider "the same modulo case and
// accents" normalize to the same string.
func Normalize(s string) string {
	return norm.NFKC.String(foldCaser.String(s))
}

// Matches reports whether query fuzzy-matches target (both should already
// be Normalize'd by the caller; query is folded again defensively since it
// usually comes straight from a text input widget).
func Matches(query, target string) bool {
	if query == "" {
		return true
	}
	return fuzzy.MatchFold(query, target)
}

// Rank orders candidates by fuzzy-match quality against query, best first.
// Candidates that don't match at all are omitted.
func Rank(query string, candidates []string) []string {
	matches := fuzzy.RankFindFold(query, candidates)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Target
	}
	return out
}
