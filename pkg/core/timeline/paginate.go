// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timeline

import "github.com/project-robius/robrix-core/pkg/core/model"

// BackwardsPaginateUntilEventRequest asks a Subscriber to locate
// TargetEventID in the local timeline, paginating backwards as needed
// until it's found. StartingIndex/CurrentTimelineLen let the caller give a
// hint about where to start searching without the Subscriber needing to
// know the presentation layer's own scroll state; the hint is discarded if
// the timeline has changed length since it was computed (see Subscriber's
// handling in subscriber.go).
type BackwardsPaginateUntilEventRequest struct {
	RoomID            model.RoomID
	TargetEventID     model.EventID
	StartingIndex     int
	CurrentTimelineLen int
}
