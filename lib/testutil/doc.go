// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for SRR packages.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets, whose paths are limited to 108 bytes (sun_path in
// sockaddr_un). t.TempDir() can exceed that under deep TMPDIRs.
//
// [RequireReceive] and [RequireClosed] wrap the select
// with a timeout fallback so tests waiting on a goroutine fail instead
// of hanging.
//
// All helpers call t.Fatalf on failure.
//
// This package has no SRR-internal dependencies.
package testutil
