// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package bulk

import (
	"encoding/json"
	"fmt"
)

// Payload is the portable form of one file: the artifact data of an
// opaque feature. Older agents write only base64_encoded (and enable
// for the time-sync feature); the other fields are optional.
type Payload struct {
	// Base64Encoded holds the file bytes after compression and
	// sealing.
	Base64Encoded string `json:"base64_encoded"`

	// Compression is empty or "none", "zstd" or "lz4".
	Compression string `json:"compression,omitempty"`

	// Size is the length of the original file.
	Size int `json:"size,omitempty"`

	// Digest is the hex BLAKE3-256 of the original file.
	Digest string `json:"blake3,omitempty"`

	// Sealed marks content encrypted with age.
	Sealed bool `json:"sealed,omitempty"`

	// Enable carries the time-sync service state.
	Enable *bool `json:"enable,omitempty"`
}

// Marshal renders the payload as artifact data.
func (p *Payload) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding bulk payload: %w", err)
	}
	return string(data), nil
}

// ParsePayload parses artifact data.
func ParsePayload(data string) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("decoding bulk payload: %w", err)
	}
	return &payload, nil
}
