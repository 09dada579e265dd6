// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// envelope is a socket-only type and uses cbor tags.
type envelope struct {
	Action   string   `cbor:"action"`
	Features []string `cbor:"features,omitempty"`
	Language string   `cbor:"language,omitempty"`
}

// artifact is also written to bundle files and uses json tags.
type artifact struct {
	Version string `json:"version"`
	Data    string `json:"data"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := envelope{Action: "save", Features: []string{"network", "ntp-settings"}, Language: "fr"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Action != original.Action || strings.Join(decoded.Features, ",") != "network,ntp-settings" || decoded.Language != "fr" {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	request := map[string]any{"action": "restore", "language": "en", "features": map[string]any{"b": 1, "a": 2}}

	first, err := Marshal(request)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(request)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	messages := []envelope{
		{Action: "save", Features: []string{"network"}},
		{Action: "features"},
		{Action: "status"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range messages {
		var got envelope
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", i, err)
		}
		if got.Action != want.Action || len(got.Features) != len(want.Features) {
			t.Errorf("message %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(artifact{Version: "1.0", Data: "{}"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if fields["version"] != "1.0" || fields["data"] != "{}" {
		t.Errorf("json tags not used as CBOR keys: %v", fields)
	}
}

func TestOmitemptyRespected(t *testing.T) {
	data, err := Marshal(envelope{Action: "status"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, present := fields["features"]; present {
		t.Errorf("empty features should be omitted: %v", fields)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[string]any{"action": "save", "features": []string{"network"}, "priority": 5})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Action != "save" {
		t.Errorf("action = %q", decoded.Action)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded envelope
	if err := Unmarshal([]byte{0xff, 0xfe}, &decoded); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]string{"action": "reset"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if diagnostic != `{"action": "reset"}` {
		t.Errorf("Diagnose = %s", diagnostic)
	}
}
