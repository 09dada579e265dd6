// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

// Status is the result of one feature.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome aggregates the statuses of one request.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeFailed         Outcome = "failed"
)

// Aggregate is success when every status succeeded, failed when every
// status failed and partial_success otherwise. An empty set is a
// success.
func Aggregate(statuses []FeatureStatus) Outcome {
	var succeeded, failed int
	for _, status := range statuses {
		if status.Status == StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		return OutcomeSuccess
	case succeeded == 0:
		return OutcomeFailed
	}
	return OutcomePartialSuccess
}

// Artifact is the portable form of one feature. It is written to
// bundle files as JSON or YAML as well as sent over the socket.
type Artifact struct {
	Version string `json:"version"`
	Data    string `json:"data"`
}

// FeatureStatus is one feature's result. Message is localized and set
// only on failure.
type FeatureStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// SaveRequest names the features to save.
type SaveRequest struct {
	Features []string `cbor:"features"`
	// Language overrides the agent's message language (BCP 47).
	Language string `cbor:"language,omitempty"`
}

// SavedFeature is one entry of a SaveResponse. Artifact is nil when
// the feature failed.
type SavedFeature struct {
	Artifact *Artifact     `cbor:"artifact,omitempty"`
	Status   FeatureStatus `cbor:"status"`
}

// SaveResponse maps feature names to their artifacts and statuses.
type SaveResponse struct {
	Features map[string]SavedFeature `cbor:"features"`
	Outcome  Outcome                 `cbor:"outcome,omitempty"`
}

// Artifacts returns the artifacts of every saved feature.
func (r *SaveResponse) Artifacts() map[string]Artifact {
	artifacts := make(map[string]Artifact)
	for name, saved := range r.Features {
		if saved.Artifact != nil {
			artifacts[name] = *saved.Artifact
		}
	}
	return artifacts
}

// RestoreRequest maps feature names to the artifacts to restore.
type RestoreRequest struct {
	Features map[string]Artifact `cbor:"features"`
	Language string              `cbor:"language,omitempty"`
}

// RestoreResponse maps feature names to statuses.
type RestoreResponse struct {
	Features map[string]FeatureStatus `cbor:"features"`
	Outcome  Outcome                  `cbor:"outcome,omitempty"`
}

// ResetRequest names the features to reset.
type ResetRequest struct {
	Features []string `cbor:"features"`
	Language string   `cbor:"language,omitempty"`
}

// ResetResponse carries the reset error. Reset always fails.
type ResetResponse struct {
	Error string `cbor:"error"`
}
