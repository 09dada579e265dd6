// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package service serves the SRR agent over a Unix socket.
//
// The protocol is one CBOR request and one CBOR response per
// connection. Every request carries an "action" field; the rest of
// the request is decoded by the action's handler. Responses use the
// [Response] envelope: ok, an error message on failure, and the
// handler's result under data.
//
// [RegisterAgent] binds the save, restore, reset, features and status
// actions to an [Agent]. [Client] is the matching caller.
//
// There is no authentication. Access is controlled by the socket
// file's permissions.
package service
