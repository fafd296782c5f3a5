// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verification

import (
	"context"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/model"
)

// Coordinator is the Verification Coordinator (C7).
type Coordinator struct {
	log    zerolog.Logger
	engine CryptoEngine
	post   func(Action)
}

// New constructs a Coordinator. post is called (from whichever goroutine
// is currently running) to publish an Action to the process-wide action
// stream the presentation layer consumes.
func New(log zerolog.Logger, engine CryptoEngine, post func(Action)) *Coordinator {
	return &Coordinator{
		log:    log.With().Str("component", "verification").Logger(),
		engine: engine,
		post:   post,
	}
}

// HandleRequest spawns the request-handler task for an incoming
// verification request, exactly as the original spawns
// request_verification_handler for both ToDeviceKeyVerificationRequest
// and in-room VerificationRequest messages.
func (c *Coordinator) HandleRequest(ctx context.Context, req RequestHandle) {
	go c.withRecover("request-handler", func() { c.requestHandler(ctx, req) })
}

func (c *Coordinator) withRecover(task string, fn func()) {
	defer func() {
		if err := recover(); err != nil {
			logEvt := c.log.Error().Bytes(zerolog.ErrorStackFieldName, debug.Stack()).Str("task", task)
			if realErr, ok := err.(error); ok {
				logEvt = logEvt.Err(realErr)
			} else {
				logEvt = logEvt.Any(zerolog.ErrorFieldName, err)
			}
			logEvt.Msg("Panic in verification task")
		}
	}()
	fn()
}

// requestHandler mirrors request_verification_handler: it opens a
// response channel to the presentation layer, posts RequestReceived, waits
// for Accept/Cancel, calls the matching crypto-engine method, then streams
// the request's state until it transitions to SAS (spawning the SAS
// sub-task), to an unsupported method, or terminates.
func (c *Coordinator) requestHandler(ctx context.Context, req RequestHandle) {
	response := make(chan UserResponse, 1)
	c.post(RequestReceived{RequestID: req.ID(), OtherUser: model.UserID(req.OtherUserID()), Response: response})

	var userResponse UserResponse
	select {
	case r, ok := <-response:
		if !ok {
			userResponse = Cancel
		} else {
			userResponse = r
		}
	case <-ctx.Done():
		userResponse = Cancel
	}

	switch userResponse {
	case Accept:
		if err := c.engine.AcceptRequest(ctx, req); err != nil {
			c.post(RequestAcceptError{RequestID: req.ID(), Err: err})
			return
		}
		c.post(RequestAccepted{RequestID: req.ID()})
	case Cancel:
		if err := c.engine.CancelRequest(ctx, req); err != nil {
			c.post(RequestCancelError{RequestID: req.ID(), Err: err})
			return
		}
		// the Cancelled action is posted by the state stream below.
	}

	states := c.engine.RequestStates(req)
	for state := range states {
		switch state.Kind {
		case RequestCreated, RequestRequested, RequestReady:
			// no side effect; these are states we've already passed.
		case RequestTransitionedSas:
			go c.withRecover("sas-handler", func() { c.sasHandler(ctx, state.Sas, response) })
			return
		case RequestTransitionedUnsupported:
			c.post(RequestTransitionedToUnsupportedMethod{RequestID: req.ID(), Method: state.UnsupportedMethod})
			return
		case RequestCancelledState:
			c.post(RequestCancelled{RequestID: req.ID(), Reason: state.CancelReason})
		case RequestDoneState:
			c.post(RequestCompleted{RequestID: req.ID()})
			return
		}
	}
}

// sasHandler mirrors sas_verification_handler: it accepts the SAS
// ceremony, then streams its state, handing the response channel off to a
// confirmation goroutine the first time KeysExchanged is observed.
func (c *Coordinator) sasHandler(ctx context.Context, sas SasHandle, response <-chan UserResponse) {
	if err := c.engine.AcceptSas(ctx, sas); err != nil {
		c.post(RequestAcceptError{RequestID: sas.RequestID(), Err: err})
		return
	}

	responseTaken := false
	for state := range c.engine.SasStates(sas) {
		switch state.Kind {
		case SasCreatedState:
			// already passed.
		case SasAcceptedState:
			c.post(SasAccepted{RequestID: sas.RequestID(), Protocols: state.Protocols})
		case SasKeysExchangedState:
			c.post(KeysExchanged{RequestID: sas.RequestID(), Emojis: state.Emojis, Decimals: state.Decimals})
			if !responseTaken {
				responseTaken = true
				go c.withRecover("sas-confirm", func() { c.awaitConfirmation(ctx, sas, response) })
			}
			// a second KeysExchanged means the other side confirmed first;
			// purely informational, nothing further to do here.
		case SasConfirmedState:
			c.post(SasConfirmed{RequestID: sas.RequestID()})
		case SasDoneState:
			c.post(RequestCompleted{RequestID: sas.RequestID()})
			return
		case SasCancelledState:
			c.post(RequestCancelled{RequestID: sas.RequestID(), Reason: state.CancelReason})
			return
		}
	}
}

// awaitConfirmation waits for the user's Accept/Cancel response to the
// displayed short authentication string and calls confirm() or cancel()
// accordingly.
func (c *Coordinator) awaitConfirmation(ctx context.Context, sas SasHandle, response <-chan UserResponse) {
	select {
	case r, ok := <-response:
		if !ok || r == Cancel {
			_ = c.engine.CancelSas(ctx, sas)
			return
		}
		if err := c.engine.ConfirmSas(ctx, sas); err != nil {
			c.post(SasConfirmationError{RequestID: sas.RequestID(), Err: err})
		}
	case <-ctx.Done():
		_ = c.engine.CancelSas(ctx, sas)
	}
}
