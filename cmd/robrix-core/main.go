// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Command robrix-core is a minimal headless reference binary driving the
// core package from a terminal: it exists to exercise the library, not as
// a user-facing chat client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	flag "maunium.net/go/mauflag"

	"github.com/project-robius/robrix-core/pkg/core"
	"github.com/project-robius/robrix-core/pkg/core/browser"
	"github.com/project-robius/robrix-core/pkg/core/config"
	"github.com/project-robius/robrix-core/pkg/core/dispatch"
	"github.com/project-robius/robrix-core/pkg/core/logging"
	"github.com/project-robius/robrix-core/pkg/core/mxclient"
	"github.com/project-robius/robrix-core/pkg/core/session"
)

var (
	proxyURL    = flag.MakeFull("", "proxy", "HTTP proxy URL for homeserver traffic.", "").String()
	loginScreen = flag.MakeFull("", "login-screen", "Force the credential prompt even if a session is saved.", "false").Bool()
	verbose     = flag.MakeFull("v", "verbose", "Enable trace-level logging.", "false").Bool()
	wantHelp, _ = flag.MakeHelpFlag()
)

func main() {
	flag.SetHelpTitles(
		"robrix-core - headless Matrix chat core reference binary",
		"robrix-core [-h] [--proxy <url>] [--login-screen] [--verbose] [<username> <password> [<homeserver>]]",
	)
	if err := flag.Parse(); err != nil {
		bootstrap := logging.Bootstrap()
		bootstrap.Error().Err(err).Msg("Failed to parse command-line flags")
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	}

	cfg := config.New()
	if err := cfg.Load(); err != nil {
		bootstrap := logging.Bootstrap()
		bootstrap.Error().Err(err).Msg("Failed to load config.yaml")
		os.Exit(1)
	}
	if *proxyURL != "" {
		cfg.ProxyURL = *proxyURL
	}
	transport, err := cfg.HTTPTransport()
	if err != nil {
		bootstrap := logging.Bootstrap()
		bootstrap.Error().Err(err).Msg("Failed to build HTTP transport")
		os.Exit(1)
	}

	log, err := logging.Setup(logging.Options{Verbose: *verbose, LogDir: config.LogDirectory()})
	if err != nil {
		bootstrap := logging.Bootstrap()
		bootstrap.Error().Err(err).Msg("Failed to set up logging")
		os.Exit(1)
	}

	if cfg.ProxyURL != "" {
		log.Debug().Str("proxy_url", cfg.ProxyURL).Bool("http_proxy", transport.Proxy != nil).Msg("Outgoing homeserver traffic will be proxied")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := session.NewStore(cfg.Dir)
	latestUserID, err := store.LatestUserID()
	if err != nil {
		log.Err(err).Msg("Failed to read persisted session pointer")
	}

	var username, password, homeserver string
	restoreOnly := !*loginScreen && latestUserID != ""
	if !restoreOnly {
		var ok bool
		username, password, homeserver, ok = resolveCredentials(*loginScreen)
		if !ok {
			log.Info().Msg("No credentials available; waiting for a login request is not wired in this reference binary")
			return
		}
	}
	if homeserver == "" {
		homeserver = cfg.Server
	}

	mxc, err := mxclient.New(homeserver, transport)
	if err != nil {
		log.Err(err).Msg("Failed to construct homeserver client")
		os.Exit(1)
	}

	coreCtx := core.New(log, cfg, mxc, mxclient.UnimplementedCryptoEngine{}, mxc, mxc.TimelineFeed, browser.Open)
	unsubscribe := coreCtx.Listen(func(a core.Action) {
		switch v := a.(type) {
		case core.LoginResult:
			if v.Err != nil {
				log.Err(v.Err).Msg("Login failed")
				return
			}
			log.Info().Str("user_id", v.UserID).Msg("Logged in")
		case core.SessionErrored:
			log.Err(v.Err).Msg("Session entered an unrecoverable error state")
		}
	})
	defer unsubscribe()

	if restoreOnly {
		coreCtx.Dispatcher.Submit(dispatch.LoginRequest{RestoreOnly: true})
	} else {
		coreCtx.Dispatcher.Submit(dispatch.LoginRequest{Homeserver: homeserver, Username: username, Password: password})
	}

	roomListDiffs := mxc.RoomListDiffs(ctx)
	log.Info().Str("username", username).Str("homeserver", homeserver).Bool("restore_only", restoreOnly).Msg("Starting core")
	coreCtx.Start(ctx, roomListDiffs)
	coreCtx.Stop()
}

// resolveCredentials implements the CLI contract from spec §6: positional
// <username> <password> [<homeserver>], falling back to an interactive
// prompt (this binary's substitute for the credential UI the distilled
// spec assumes exists) when the arguments and any persisted session are
// both absent.
func resolveCredentials(forcePrompt bool) (username, password, homeserver string, ok bool) {
	args := flag.Args()
	if !forcePrompt && len(args) >= 2 {
		homeserver = ""
		if len(args) >= 3 {
			homeserver = args[2]
		}
		return args[0], args[1], homeserver, true
	}

	rl, err := readline.New("homeserver (blank for default): ")
	if err != nil {
		return "", "", "", false
	}
	defer rl.Close()

	homeserver, err = rl.Readline()
	if err != nil {
		return "", "", "", false
	}
	rl.SetPrompt("username: ")
	username, err = rl.Readline()
	if err != nil {
		return "", "", "", false
	}
	rl.SetPrompt("password: ")
	passwordBytes, err := rl.ReadPassword("password: ")
	if err != nil {
		return "", "", "", false
	}
	password = string(passwordBytes)
	if username == "" || password == "" {
		return "", "", "", false
	}
	return username, password, homeserver, true
}
