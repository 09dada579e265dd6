// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines the configuration store the converters read
// from and write to, and provides the in-memory tree every backend
// loads into.
//
// The store is a flat path/value space addressed by hierarchical
// patterns (see package configpath). Siblings may share a label; the
// store tells them apart by position ("iface[1]", "iface[2]"). A node
// may hold a value, children, both, or neither.
//
// [ConfigStore] is the interface the converters and the SRR processor
// consume. [Store] implements it on top of a [Tree] and a [Backend]:
// Reload replaces the tree with the backend's current snapshot, Set
// edits the tree and records the change, and Commit hands the pending
// changes to the backend in one call. Nothing reaches the backend
// between two commits.
//
// Store is not safe for concurrent use. The processor serializes all
// access from reload through commit.
package store
