// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the agent's standard CBOR encoding
// configuration.
//
// The agent socket speaks CBOR. Bundle files written by the CLI are
// JSON or YAML. This package holds the shared encoding and decoding
// modes so the agent and its clients encode identically. The encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items.
//
// For buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For streams:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type only travels over the socket (request
//     envelopes, socket responses).
//   - `json` tag: the type is also written to bundle files or CLI
//     output. fxamacker/cbor reads `json` tags when `cbor` tags are
//     absent, so one tag names the field in every format.
//
// Never put both tags on one field.
package codec
