// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package srr implements the Save/Restore/Reset protocol over a set of
// configuration features.
//
// Save turns each requested feature into a versioned [Artifact]:
// tree-class features are converted from the store into a Document and
// passed through the collision codec, opaque features are read whole
// by the bulk copier. Restore reverses this after checking each
// artifact's version against a [VersionPolicy]. Reset is not
// implemented and always fails.
//
// Failures are per feature. A feature that fails gets a localized
// message in its [FeatureStatus] and the rest of the batch carries on;
// only an empty request is rejected outright, with a
// [*ValidationError].
package srr
