// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package logging wires zerolog + zeroconfig for the core and the
// reference CLI, following the same writer-config shape the teacher
// project uses for its own terminal client.
package logging

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
)

// Options configures log output for a core.Context.
type Options struct {
	// Verbose raises the console writer's minimum level to trace (spec §6,
	// the --verbose CLI flag).
	Verbose bool
	// LogDir is the directory file-based logs are written under; an empty
	// value disables the file writer.
	LogDir string
}

// Bootstrap returns a minimal stderr logger usable before flags/config are
// parsed (e.g. to report a flag-parsing failure). It writes directly
// through go-colorable so ANSI color survives on Windows consoles even
// though zeroconfig hasn't been asked to compile a full pipeline yet.
func Bootstrap() zerolog.Logger {
	out := colorable.NewColorableStderr()
	writer := zerolog.ConsoleWriter{Out: out, NoColor: !isatty.IsTerminal(os.Stderr.Fd())}
	return zerolog.New(writer).With().Timestamp().Logger()
}

// Setup compiles the full zerolog.Logger used once config/flags are known.
// Console output is pretty-colored when stderr is a terminal and plain
// otherwise, matching the corpus's habit of detecting TTYs rather than
// always assuming color support.
func Setup(opts Options) (*zerolog.Logger, error) {
	minLevel := zerolog.InfoLevel
	if opts.Verbose {
		minLevel = zerolog.TraceLevel
	}
	consoleFormat := zeroconfig.LogFormatPrettyColored
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		consoleFormat = zeroconfig.LogFormatPretty
	}
	cfg := zeroconfig.Config{
		MinLevel: ptr.Ptr(minLevel),
		Writers: []zeroconfig.WriterConfig{{
			Type:   zeroconfig.WriterTypeStderr,
			Format: consoleFormat,
		}},
	}
	if opts.LogDir != "" {
		cfg.Writers = append(cfg.Writers, zeroconfig.WriterConfig{
			Type:   zeroconfig.WriterTypeFile,
			Format: zeroconfig.LogFormatJSON,
			FileConfig: zeroconfig.FileConfig{
				Filename:   filepath.Join(opts.LogDir, "robrix-core.log"),
				MaxSize:    100,
				MaxBackups: 10,
			},
		})
	}
	return cfg.Compile()
}
