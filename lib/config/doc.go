// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the SRR agent configuration.
//
// Configuration comes from a single file named by the SRR_CONFIG
// environment variable (via [Load]) or by the --config flag (via
// [LoadFile]). There is no search path and no fallback file.
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is read as YAML. [DecodeFile] applies
// the same rule for other files the agent reads, such as the feature
// table.
//
// ${VAR} and ${VAR:-default} are expanded in path fields after
// loading. Environment variables never override other values.
package config
