/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import "fmt"

// Version is the current version of DJBlaster.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/djblaster/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the git revision the binary was built from.
var Commit = "dev"

// UserAgent is sent on every request to the ad server.
func UserAgent() string {
	return fmt.Sprintf("DJBlaster/%s", Version)
}

// String formats the version for the version command.
func String() string {
	return fmt.Sprintf("djblaster %s (%s)", Version, Commit)
}
