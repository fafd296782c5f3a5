// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mxclient

import (
	"context"
	"fmt"

	"github.com/project-robius/robrix-core/pkg/core/verification"
)

// UnimplementedCryptoEngine satisfies verification.CryptoEngine without
// driving any real OLM/Megolm ceremony: wiring SAS verification against
// mautrix-go's crypto machine (cross-signing, device trust, the sas.v1
// state machine) is substantial additional work this pass doesn't cover.
// The Verification Coordinator (C7) itself is fully implemented and
// tested against fake engines; only this concrete adapter is a stub, so
// plugging in a real engine later requires no change to C7.
type UnimplementedCryptoEngine struct{}

var _ verification.CryptoEngine = UnimplementedCryptoEngine{}

func (UnimplementedCryptoEngine) AcceptRequest(ctx context.Context, req verification.RequestHandle) error {
	return fmt.Errorf("device verification is not implemented in this reference binary")
}

func (UnimplementedCryptoEngine) CancelRequest(ctx context.Context, req verification.RequestHandle) error {
	return fmt.Errorf("device verification is not implemented in this reference binary")
}

func (UnimplementedCryptoEngine) RequestStates(req verification.RequestHandle) <-chan verification.RequestState {
	ch := make(chan verification.RequestState)
	close(ch)
	return ch
}

func (UnimplementedCryptoEngine) AcceptSas(ctx context.Context, sas verification.SasHandle) error {
	return fmt.Errorf("device verification is not implemented in this reference binary")
}

func (UnimplementedCryptoEngine) ConfirmSas(ctx context.Context, sas verification.SasHandle) error {
	return fmt.Errorf("device verification is not implemented in this reference binary")
}

func (UnimplementedCryptoEngine) CancelSas(ctx context.Context, sas verification.SasHandle) error {
	return fmt.Errorf("device verification is not implemented in this reference binary")
}

func (UnimplementedCryptoEngine) SasStates(sas verification.SasHandle) <-chan verification.SasStateValue {
	ch := make(chan verification.SasStateValue)
	close(ch)
	return ch
}
