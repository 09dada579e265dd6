// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the SRR binaries:
// fatal error reporting to stderr for errors that happen before the
// structured logger exists, and process exit after an unrecoverable
// error in main().
package process
