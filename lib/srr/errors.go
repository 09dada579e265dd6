// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

import (
	"fmt"

	"github.com/fleetconf/srr/lib/registry"
)

// ValidationError rejects a whole request before any feature is
// processed. Its message is localized for the caller.
type ValidationError struct {
	Operation string
	Message   string
}

func (e *ValidationError) Error() string { return e.Message }

// NotImplementedError is returned for operations the agent does not
// support. Its message is localized for the caller.
type NotImplementedError struct {
	Operation string
	Message   string
}

func (e *NotImplementedError) Error() string { return e.Message }

// ResolutionError reports a feature name missing from the registry.
type ResolutionError struct {
	Feature string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving feature %s: %v", e.Feature, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConversionKind classifies a ConversionError.
type ConversionKind int

const (
	// StructuralConflict means the store and Document shapes cannot be
	// reconciled.
	StructuralConflict ConversionKind = iota
	// MalformedDocument means artifact data is not a valid Document.
	MalformedDocument
	// MalformedPayload means opaque artifact data could not be decoded.
	MalformedPayload
)

func (k ConversionKind) String() string {
	switch k {
	case StructuralConflict:
		return "structural conflict"
	case MalformedDocument:
		return "malformed document"
	case MalformedPayload:
		return "malformed payload"
	}
	return fmt.Sprintf("ConversionKind(%d)", int(k))
}

// ConversionError reports a feature whose data could not be converted.
type ConversionError struct {
	Feature string
	Kind    ConversionKind
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting feature %s (%s): %v", e.Feature, e.Kind, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// PersistError reports a failed read or write of a feature's
// configuration.
type PersistError struct {
	Feature string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting feature %s: %v", e.Feature, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// VersionMismatchError reports an artifact whose version the policy
// does not accept for the feature's class.
type VersionMismatchError struct {
	Feature  string
	Class    registry.Class
	Version  string
	Expected string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("feature %s (%s): artifact version %q is not compatible with %q",
		e.Feature, e.Class, e.Version, e.Expected)
}

// ServiceStateError reports a time-sync state that could not be read
// or applied.
type ServiceStateError struct {
	Feature string
	Enable  bool
	Err     error
}

func (e *ServiceStateError) Error() string {
	return fmt.Sprintf("feature %s: applying service state enable=%t: %v", e.Feature, e.Enable, e.Err)
}

func (e *ServiceStateError) Unwrap() error { return e.Err }
