// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package session implements the Session/Login Orchestrator (C8): the
// three login entry paths (restored session, password, SSO), persisted
// session-record read/write, and the auto-restore "latest user" pointer,
// following the same JSON-on-disk-plus-gjson/sjson-for-hot-field-patches
// idiom the teacher's client-state store uses for its own persisted
// records.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/project-robius/robrix-core/pkg/core/model"
)

// ClientSession is the portion of a persisted session record needed to
// rebuild the homeserver client connection, independent of any particular
// login.
type ClientSession struct {
	Homeserver string `json:"homeserver"`
	DBPath     string `json:"db_path"`
	Passphrase string `json:"passphrase"`
}

// Record is the full persisted session layout (spec §4.7): the client
// connection parameters, the SDK's opaque user-session blob, and the last
// sync token so a restore can resume rather than full-resync.
type Record struct {
	ClientSession ClientSession   `json:"client_session"`
	UserSession   json.RawMessage `json:"user_session"`
	SyncToken     *string         `json:"sync_token"`
}

// Store reads and writes session records under an application-data root,
// matching the layout <app-data>/<sanitized-user-id>/persistent_state/session.
type Store struct {
	root string
}

// NewStore constructs a Store rooted at appDataDir.
func NewStore(appDataDir string) *Store {
	return &Store{root: appDataDir}
}

// sanitizeUserID replaces characters that are unsafe in a path component;
// Matrix user IDs contain ':' and sometimes other separators.
func sanitizeUserID(userID model.UserID) string {
	s := userID.String()
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func (s *Store) sessionPath(userID model.UserID) string {
	return filepath.Join(s.root, sanitizeUserID(userID), "persistent_state", "session")
}

// Load reads the persisted Record for userID. A missing file returns
// (nil, nil): absence is not an error, it just means no restorable
// session exists for that user.
func (s *Store) Load(userID model.UserID) (*Record, error) {
	data, err := os.ReadFile(s.sessionPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session for %s: %w", userID, err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing session for %s: %w", userID, err)
	}
	return &rec, nil
}

// Save persists rec for userID, creating the directory tree as needed.
func (s *Store) Save(userID model.UserID, rec *Record) error {
	path := s.sessionPath(userID)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating session directory for %s: %w", userID, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session for %s: %w", userID, err)
	}
	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session for %s: %w", userID, err)
	}
	return nil
}

// UpdateSyncToken patches just the sync_token field of an already-
// persisted record, the way the teacher's store reaches for sjson instead
// of a full unmarshal/marshal round trip on what is effectively the hot
// path of every sync.
func (s *Store) UpdateSyncToken(userID model.UserID, token string) error {
	path := s.sessionPath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading session for %s: %w", userID, err)
	}
	patched, err := sjson.SetBytes(data, "sync_token", token)
	if err != nil {
		return fmt.Errorf("patching sync token for %s: %w", userID, err)
	}
	return os.WriteFile(path, patched, 0600)
}

// PeekSyncToken reads just the sync_token field without decoding the rest
// of the record, for callers (startup logging, diagnostics) that don't
// need the full Record and shouldn't pay for unmarshaling the opaque
// user_session blob to get it.
func (s *Store) PeekSyncToken(userID model.UserID) (string, error) {
	data, err := os.ReadFile(s.sessionPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading session for %s: %w", userID, err)
	}
	return gjson.GetBytes(data, "sync_token").String(), nil
}

// latestUserIDPath is <app-data>/latest_user_id.txt.
func (s *Store) latestUserIDPath() string {
	return filepath.Join(s.root, "latest_user_id.txt")
}

// SetLatestUserID records userID as the most-recently logged-in user, for
// auto-restore on next start.
func (s *Store) SetLatestUserID(userID model.UserID) error {
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return fmt.Errorf("creating app data directory: %w", err)
	}
	return os.WriteFile(s.latestUserIDPath(), []byte(userID.String()), 0600)
}

// LatestUserID returns the most-recently logged-in user ID, or "" if none
// is recorded.
func (s *Store) LatestUserID() (model.UserID, error) {
	data, err := os.ReadFile(s.latestUserIDPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading latest user id: %w", err)
	}
	return model.UserID(data), nil
}
