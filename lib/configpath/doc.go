// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package configpath handles the hierarchical path syntax of the
// configuration store.
//
// A path is rooted and slash-separated:
//
//	/files/etc/network/interfaces/iface[2]/address
//
// Each segment is a store label, optionally followed by a 1-based
// position in square brackets when several siblings share the label.
// The store renders the position only when it is needed to tell
// siblings apart, so "iface" and "iface[1]" address the same node when
// the label is unique. The single-level wildcard "*" matches any one
// segment. Segments never contain the separator.
//
// Paths containing the comment marker "#" (for example
// "/files/etc/ntp.conf/#comment[3]") denote comment nodes and are
// skipped by the converters.
package configpath
