// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package verification implements the Verification Coordinator (C7): one
// goroutine per incoming verification request, and a nested goroutine per
// SAS sub-ceremony, following the task/stream shape
// request_verification_handler/sas_verification_handler use in the
// original implementation. The underlying cryptographic operations
// (accept/cancel/confirm, key exchange) are delegated to CryptoEngine,
// which a session wires to the SDK's crypto machine.
package verification

import "github.com/project-robius/robrix-core/pkg/core/model"

// Action is the tagged union of everything the coordinator posts to the
// process-wide action stream for the presentation layer to consume.
type Action interface {
	isAction()
}

// RequestReceived announces a new incoming verification request and
// carries the channel the presentation layer responds on.
type RequestReceived struct {
	RequestID string
	OtherUser model.UserID
	Response  chan<- UserResponse
}

func (RequestReceived) isAction() {}

// RequestAccepted reports that accept_with_methods succeeded.
type RequestAccepted struct{ RequestID string }

func (RequestAccepted) isAction() {}

// RequestAcceptError reports that accept_with_methods failed.
type RequestAcceptError struct {
	RequestID string
	Err       error
}

func (RequestAcceptError) isAction() {}

// RequestCancelError reports that a cancel() call itself failed.
type RequestCancelError struct {
	RequestID string
	Err       error
}

func (RequestCancelError) isAction() {}

// RequestTransitionedToUnsupportedMethod reports that the other side chose
// a verification method other than SAS, which this coordinator declines to
// drive further.
type RequestTransitionedToUnsupportedMethod struct {
	RequestID string
	Method    string
}

func (RequestTransitionedToUnsupportedMethod) isAction() {}

// RequestCancelled reports that the request ended in cancellation, by
// either side.
type RequestCancelled struct {
	RequestID string
	Reason    string
}

func (RequestCancelled) isAction() {}

// RequestCompleted reports that the request reached Done.
type RequestCompleted struct{ RequestID string }

func (RequestCompleted) isAction() {}

// SasAccepted reports that both sides agreed on SAS sub-protocols.
type SasAccepted struct {
	RequestID string
	Protocols []string
}

func (SasAccepted) isAction() {}

// KeysExchanged carries the emoji/decimal short authentication string for
// the presentation layer to display and hands back the exact request ID
// so the eventual Accept/Cancel response can be routed.
type KeysExchanged struct {
	RequestID string
	Emojis    []string
	Decimals  [3]uint16
}

func (KeysExchanged) isAction() {}

// SasConfirmed reports that we confirmed our side; awaiting the other.
type SasConfirmed struct{ RequestID string }

func (SasConfirmed) isAction() {}

// SasConfirmationError reports that confirm() failed.
type SasConfirmationError struct {
	RequestID string
	Err       error
}

func (SasConfirmationError) isAction() {}

// UserResponse is what the presentation layer sends back on a
// RequestReceived's Response channel, or on the channel handed off at
// first KeysExchanged.
type UserResponse int

const (
	Accept UserResponse = iota
	Cancel
)
