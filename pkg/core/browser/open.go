// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package browser opens a URL in the user's default browser, extending
// the original implementation's utils.rs browser-opening helper to the
// three platforms the reference binary targets.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Open launches rawURL in the platform default browser.
func Open(rawURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		cmd = exec.Command("xdg-open", rawURL)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening browser for %s: %w", runtime.GOOS, err)
	}
	return nil
}
