// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/project-robius/robrix-core/pkg/core/model"
)

// passphraseAlphabet matches spec §4.7's "32-char alphanumeric" passphrase
// used to encrypt the local session database.
const passphraseAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func newPassphrase() (string, error) {
	out := make([]byte, 32)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passphraseAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = passphraseAlphabet[n.Int64()]
	}
	return string(out), nil
}

// HomeserverClient is the narrow seam to the underlying SDK an Orchestrator
// drives login through. It intentionally exposes only what C8 needs, not
// the full client surface.
type HomeserverClient interface {
	SupportsPasswordLogin(ctx context.Context, homeserver string) (bool, error)
	LoginPassword(ctx context.Context, homeserver, username, password string) (userSession json.RawMessage, userID model.UserID, err error)
	RestoreSession(ctx context.Context, cs ClientSession, userSession json.RawMessage) (model.UserID, error)
	StartSyncService(ctx context.Context) error
	// SyncServiceErrors streams SyncService state changes; a value on the
	// channel indicates the service entered its Error state.
	SyncServiceErrors() <-chan error
	SsoLoginURL(ctx context.Context, homeserver, brand, idp string, callback string) (string, error)
	// ExchangeSSOToken redeems the m.login.token returned by the SSO
	// redirect for a full user session.
	ExchangeSSOToken(ctx context.Context, homeserver, loginToken string) (userSession json.RawMessage, userID model.UserID, err error)
}

// Orchestrator is the Session/Login Orchestrator (C8).
type Orchestrator struct {
	log    zerolog.Logger
	store  *Store
	client HomeserverClient

	onError func(error)
}

// New constructs an Orchestrator. onError is invoked whenever the
// SyncService transitions to its Error state and the bounded-retry attempt
// also fails to recover it (spec §4.7: "any transition into Error triggers
// sync_service.start() again").
func New(log zerolog.Logger, store *Store, client HomeserverClient, onError func(error)) *Orchestrator {
	return &Orchestrator{
		log:     log.With().Str("component", "session").Logger(),
		store:   store,
		client:  client,
		onError: onError,
	}
}

// RestoreLatestSession implements login entry path 1: it looks up the
// most-recently logged-in user, loads their persisted record, and
// restores the SDK client from it.
func (o *Orchestrator) RestoreLatestSession(ctx context.Context) (model.UserID, error) {
	userID, err := o.store.LatestUserID()
	if err != nil || userID == "" {
		return "", err
	}
	rec, err := o.store.Load(userID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	if token, peekErr := o.store.PeekSyncToken(userID); peekErr == nil {
		o.log.Debug().Str("sync_token", token).Msg("Restoring session")
	}
	restored, err := o.client.RestoreSession(ctx, rec.ClientSession, rec.UserSession)
	if err != nil {
		return "", fmt.Errorf("restoring session for %s: %w", userID, err)
	}
	o.afterLoginSucceeded(ctx, restored)
	return restored, nil
}

// LoginWithPassword implements login entry path 2.
func (o *Orchestrator) LoginWithPassword(ctx context.Context, homeserver, username, password string) (model.UserID, error) {
	supported, err := o.client.SupportsPasswordLogin(ctx, homeserver)
	if err != nil {
		return "", fmt.Errorf("querying login flows: %w", err)
	}
	if !supported {
		return "", fmt.Errorf("homeserver %s does not support password login", homeserver)
	}
	userSession, userID, err := o.client.LoginPassword(ctx, homeserver, username, password)
	if err != nil {
		return "", fmt.Errorf("password login failed: %w", err)
	}
	passphrase, err := newPassphrase()
	if err != nil {
		return "", fmt.Errorf("generating database passphrase: %w", err)
	}
	rec := &Record{
		ClientSession: ClientSession{Homeserver: homeserver, Passphrase: passphrase},
		UserSession:   userSession,
	}
	if err = o.store.Save(userID, rec); err != nil {
		return "", err
	}
	if err = o.store.SetLatestUserID(userID); err != nil {
		return "", err
	}
	o.afterLoginSucceeded(ctx, userID)
	return userID, nil
}

// afterLoginSucceeded starts the SyncService and wires its error-state
// watcher, per spec §4.7's "on login success" steady-state transition.
func (o *Orchestrator) afterLoginSucceeded(ctx context.Context, userID model.UserID) {
	if err := o.client.StartSyncService(ctx); err != nil {
		o.log.Err(err).Stringer("user_id", userID).Msg("Failed to start sync service")
		if o.onError != nil {
			o.onError(err)
		}
		return
	}
	go o.watchSyncServiceErrors(ctx)
}

// watchSyncServiceErrors retries sync_service.start() once per reported
// Error transition. The retry policy is intentionally unbounded at this
// layer, matching spec §4.7's explicit silence on a bounded-retry policy.
func (o *Orchestrator) watchSyncServiceErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-o.client.SyncServiceErrors():
			if !ok {
				return
			}
			o.log.Warn().Err(err).Msg("Sync service entered error state, restarting")
			if startErr := o.client.StartSyncService(ctx); startErr != nil {
				o.log.Err(startErr).Msg("Failed to restart sync service")
				if o.onError != nil {
					o.onError(startErr)
				}
			}
		}
	}
}

// ssoCallbackResult is what the loopback HTTP server parses from the
// browser redirect.
type ssoCallbackResult struct {
	loginToken string
	err        error
}

// LoginWithSSO implements login entry path 3: it spawns an ephemeral
// loopback HTTP server, hands the presentation layer the URL to open in
// the user's browser, and awaits the redirect. When the homeserver's SSO
// flow is OIDC-flavored, the returned token's structure is validated with
// jwt.v5 before being exchanged — a conservative, local-only check (never
// an authorization decision by itself), extending the distilled spec per
// SPEC_FULL §4.9.
func (o *Orchestrator) LoginWithSSO(ctx context.Context, homeserver, brand, idp string, openURL func(string) error) (model.UserID, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("opening loopback listener: %w", err)
	}
	defer listener.Close()

	results := make(chan ssoCallbackResult, 1)
	callback := fmt.Sprintf("http://%s/sso-callback", listener.Addr().String())
	mux := http.NewServeMux()
	mux.HandleFunc("/sso-callback", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("loginToken")
		if token == "" {
			results <- ssoCallbackResult{err: fmt.Errorf("missing loginToken in SSO callback")}
			http.Error(w, "missing loginToken", http.StatusBadRequest)
			return
		}
		results <- ssoCallbackResult{loginToken: token}
		fmt.Fprint(w, "You may now close this window.")
	})
	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Close()

	loginURL, err := o.client.SsoLoginURL(ctx, homeserver, brand, idp, callback)
	if err != nil {
		return "", fmt.Errorf("resolving SSO login URL: %w", err)
	}
	if openURL != nil {
		if err = openURL(loginURL); err != nil {
			return "", fmt.Errorf("opening browser: %w", err)
		}
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-results:
		if result.err != nil {
			return "", result.err
		}
		if looksLikeJWT(result.loginToken) {
			if _, _, err = jwt.NewParser().ParseUnverified(result.loginToken, jwt.MapClaims{}); err != nil {
				return "", fmt.Errorf("SSO token failed structural validation: %w", err)
			}
		}
		userSession, userID, err := o.client.ExchangeSSOToken(ctx, homeserver, result.loginToken)
		if err != nil {
			return "", fmt.Errorf("exchanging SSO token: %w", err)
		}
		passphrase, err := newPassphrase()
		if err != nil {
			return "", fmt.Errorf("generating database passphrase: %w", err)
		}
		rec := &Record{
			ClientSession: ClientSession{Homeserver: homeserver, Passphrase: passphrase},
			UserSession:   userSession,
		}
		if err = o.store.Save(userID, rec); err != nil {
			return "", err
		}
		if err = o.store.SetLatestUserID(userID); err != nil {
			return "", err
		}
		o.afterLoginSucceeded(ctx, userID)
		return userID, nil
	}
}

// looksLikeJWT is a cheap structural check (three dot-separated segments)
// used only to decide whether it's worth running jwt.v5's parser at all;
// opaque (non-OIDC) login tokens are common and shouldn't be rejected for
// not being JWTs.
func looksLikeJWT(token string) bool {
	dots := 0
	for _, r := range token {
		if r == '.' {
			dots++
		}
	}
	return dots == 2
}
