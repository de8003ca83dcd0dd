/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the booth client process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, os.Stdout)
}

// SetupWithWriter configures zerolog to write human-readable output to out.
func SetupWithWriter(environment string, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}
	if out == nil {
		out = os.Stdout
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stdout}).
		With().
		Timestamp().
		Str("service", "djblaster").
		Logger().
		Level(level)
	log.Logger = logger
	return logger
}
