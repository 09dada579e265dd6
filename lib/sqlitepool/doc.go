// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for the agent's offline
// configuration store, used when augtool is not available.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies one set
// of pragmas to every connection:
//
//   - journal_mode=WAL, so status reads never block a restore commit.
//   - synchronous=FULL. A restored configuration must survive power
//     loss once the agent has reported success.
//   - busy_timeout=5000.
//   - foreign_keys=ON.
//
// Callers either Take/Put connections themselves or use [Pool.Write]
// and [Pool.Read], which borrow a connection for the duration of a
// callback and run writes inside an immediate transaction.
package sqlitepool
