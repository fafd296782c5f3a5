// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads the optional on-disk defaults file and resolves the
// application-data directories the rest of the core reads and writes
// under. It follows the same directory-resolution and load/save idiom the
// teacher project uses for its own terminal config, trimmed to the fields
// this headless core actually needs: no keybindings, no UI preferences.
package config

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exerrors"
	"go.mau.fi/zeroconfig"
	"golang.org/x/net/proxy"
	"gopkg.in/yaml.v3"
)

// Config holds the defaults a config.yaml may override and CLI flags may
// then override again, in that precedence order (spec §6/extension §4.9).
type Config struct {
	// Server is the default homeserver URL or name used when a login
	// request omits one.
	Server string `yaml:"server"`
	// ProxyURL, if set, is dialed for all outgoing homeserver HTTP traffic.
	ProxyURL string `yaml:"proxy_url"`

	LogConfig zeroconfig.Config `yaml:"log_config"`

	// Dir is the directory this Config was loaded from; not persisted.
	Dir string `yaml:"-"`
}

// AppDataDirectory returns the root directory session state, media cache,
// and config live under, honoring ROBRIX_CORE_ROOT the same way gomuks
// honors GOMUKS_ROOT for test harnesses and alternate installs.
func AppDataDirectory() string {
	if root := os.Getenv("ROBRIX_CORE_ROOT"); root != "" {
		return root
	}
	return filepath.Join(exerrors.Must(os.UserConfigDir()), "robrix-core")
}

// LogDirectory returns the directory file-based logs are written under.
func LogDirectory() string {
	if root := os.Getenv("ROBRIX_CORE_ROOT"); root != "" {
		return filepath.Join(root, "logs")
	} else if logsHome := os.Getenv("ROBRIX_CORE_LOGS_HOME"); logsHome != "" {
		return logsHome
	} else if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return filepath.Join(xdgStateHome, "robrix-core")
	} else if runtime.GOOS == "darwin" {
		return filepath.Join(exerrors.Must(os.UserHomeDir()), "Library", "Logs", "robrix-core")
	} else if runtime.GOOS == "windows" {
		return filepath.Join(exerrors.Must(os.UserCacheDir()), "robrix-core", "logs")
	}
	return filepath.Join(exerrors.Must(os.UserHomeDir()), ".local", "state", "robrix-core")
}

// New returns the built-in defaults, before any config.yaml is loaded.
func New() *Config {
	dir := AppDataDirectory()
	return &Config{
		Dir: dir,
		LogConfig: zeroconfig.Config{
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeFile,
				Format: zeroconfig.LogFormatJSON,
				FileConfig: zeroconfig.FileConfig{
					Filename:   filepath.Join(LogDirectory(), "core.log"),
					MaxSize:    100,
					MaxBackups: 10,
				},
			}},
			MinLevel: zerologPtr(zerolog.InfoLevel),
		},
	}
}

func zerologPtr(l zerolog.Level) *zerolog.Level { return &l }

// Load reads config.yaml from cfg.Dir, overwriting any field it sets. A
// missing file is not an error; config.yaml is entirely optional.
func (cfg *Config) Load() error {
	path := filepath.Join(cfg.Dir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Save writes the current config back to cfg.Dir/config.yaml.
func (cfg *Config) Save() error {
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", cfg.Dir, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(cfg.Dir, "config.yaml")
	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// SessionPath returns the path the session orchestrator persists its
// logged-in session JSON to (spec §4.7).
func (cfg *Config) SessionPath() string {
	return filepath.Join(cfg.Dir, "session.json")
}

// MediaCacheDirectory returns the directory on-disk media blobs are cached
// under, if/when the core is configured to persist them to disk rather
// than keep them purely in memory.
func (cfg *Config) MediaCacheDirectory() string {
	return filepath.Join(cfg.Dir, "media-cache")
}

// HTTPTransport builds the http.Transport the homeserver client's HTTP
// traffic should dial through. With no ProxyURL set it returns the
// library default unmodified; a socks5:// URL is wired through
// golang.org/x/net/proxy since net/http.Transport.Proxy only understands
// HTTP(S) proxies on its own.
func (cfg *Config) HTTPTransport() (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL == "" {
		return transport, nil
	}
	parsed, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL: %w", err)
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		transport.Proxy = http.ProxyURL(parsed)
		return transport, nil
	}
	dialer, err := proxy.FromURL(parsed, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("building proxy dialer: %w", err)
	}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	return transport, nil
}
