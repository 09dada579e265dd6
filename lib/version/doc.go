// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the SRR
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X. Unset values fall back to the VCS
// stamp embedded by the go tool:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/fleetconf/srr/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// These default to "unknown" / "0.1.0-dev" in development builds and
// test runs. The agent reports [Short] in its status response.
package version
