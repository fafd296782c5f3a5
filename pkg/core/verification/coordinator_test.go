// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRequest struct{ id, otherUser string }

func (f fakeRequest) ID() string          { return f.id }
func (f fakeRequest) OtherUserID() string { return f.otherUser }

type fakeSas struct{ requestID string }

func (f fakeSas) RequestID() string { return f.requestID }

// fakeEngine is a scriptable CryptoEngine: AcceptRequest pushes a
// Sas-transition state, AcceptSas pushes a KeysExchanged then blocks until
// the test tells it to finish, and ConfirmSas/CancelSas record what was
// called so the test can assert on them.
type fakeEngine struct {
	mu sync.Mutex

	requestStates chan RequestState
	sasStates     chan SasStateValue

	acceptRequestCalled bool
	confirmSasCalled    bool
	cancelSasCalled     bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		requestStates: make(chan RequestState, 4),
		sasStates:     make(chan SasStateValue, 4),
	}
}

func (e *fakeEngine) AcceptRequest(ctx context.Context, req RequestHandle) error {
	e.mu.Lock()
	e.acceptRequestCalled = true
	e.mu.Unlock()
	e.requestStates <- RequestState{Kind: RequestTransitionedSas, Sas: fakeSas{requestID: req.ID()}}
	close(e.requestStates)
	return nil
}

func (e *fakeEngine) CancelRequest(ctx context.Context, req RequestHandle) error { return nil }

func (e *fakeEngine) RequestStates(req RequestHandle) <-chan RequestState { return e.requestStates }

func (e *fakeEngine) AcceptSas(ctx context.Context, sas SasHandle) error {
	e.sasStates <- SasStateValue{Kind: SasKeysExchangedState, Emojis: []string{"cat", "dog"}}
	return nil
}

func (e *fakeEngine) ConfirmSas(ctx context.Context, sas SasHandle) error {
	e.mu.Lock()
	e.confirmSasCalled = true
	e.mu.Unlock()
	e.sasStates <- SasStateValue{Kind: SasConfirmedState}
	e.sasStates <- SasStateValue{Kind: SasDoneState}
	close(e.sasStates)
	return nil
}

func (e *fakeEngine) CancelSas(ctx context.Context, sas SasHandle) error {
	e.mu.Lock()
	e.cancelSasCalled = true
	e.mu.Unlock()
	close(e.sasStates)
	return nil
}

func (e *fakeEngine) SasStates(sas SasHandle) <-chan SasStateValue { return e.sasStates }

func waitForAction[T Action](t *testing.T, actions <-chan Action) T {
	t.Helper()
	for {
		select {
		case a := <-actions:
			if v, ok := a.(T); ok {
				return v
			}
		case <-time.After(2 * time.Second):
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestCoordinatorFullAcceptConfirmCeremony(t *testing.T) {
	actions := make(chan Action, 32)
	engine := newFakeEngine()
	c := New(zerolog.Nop(), engine, func(a Action) { actions <- a })

	c.HandleRequest(context.Background(), fakeRequest{id: "req1", otherUser: "@bob:example.org"})

	received := waitForAction[RequestReceived](t, actions)
	if received.RequestID != "req1" || received.OtherUser != "@bob:example.org" {
		t.Fatalf("got %+v", received)
	}
	received.Response <- Accept

	waitForAction[RequestAccepted](t, actions)

	exchanged := waitForAction[KeysExchanged](t, actions)
	if len(exchanged.Emojis) != 2 {
		t.Fatalf("got %+v", exchanged)
	}

	// The coordinator hands the same response channel off for SAS
	// confirmation; send Accept again to confirm the short auth string.
	received.Response <- Accept

	waitForAction[SasConfirmed](t, actions)
	waitForAction[RequestCompleted](t, actions)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if !engine.acceptRequestCalled || !engine.confirmSasCalled {
		t.Fatal("expected both AcceptRequest and ConfirmSas to have been called")
	}
	if engine.cancelSasCalled {
		t.Fatal("did not expect CancelSas on the happy path")
	}
}

func TestCoordinatorCancelsSasWhenUserDeclines(t *testing.T) {
	actions := make(chan Action, 32)
	engine := newFakeEngine()
	c := New(zerolog.Nop(), engine, func(a Action) { actions <- a })

	c.HandleRequest(context.Background(), fakeRequest{id: "req2", otherUser: "@carol:example.org"})

	received := waitForAction[RequestReceived](t, actions)
	received.Response <- Accept
	waitForAction[RequestAccepted](t, actions)
	waitForAction[KeysExchanged](t, actions)

	received.Response <- Cancel

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		engine.mu.Lock()
		cancelled := engine.cancelSasCalled
		engine.mu.Unlock()
		if cancelled {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected CancelSas to be called after the user declines the short auth string")
}
