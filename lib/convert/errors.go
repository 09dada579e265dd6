// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package convert

import (
	"errors"
	"fmt"
	"strings"
)

// ConflictError reports store content that has no unique-keyed
// Document rendering, or a Document that cannot be written back.
type ConflictError struct {
	Path   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("structural conflict at %s: %s", e.Path, e.Reason)
}

// WriteFailure is one store write that failed during ApplyDocument.
type WriteFailure struct {
	Path string
	Err  error
}

// PersistError reports failed writes and/or a failed commit. The
// writes that succeeded were still committed when Commit is nil.
type PersistError struct {
	Root     string
	Failures []WriteFailure
	Commit   error
}

func (e *PersistError) Error() string {
	var parts []string
	if len(e.Failures) > 0 {
		first := e.Failures[0]
		parts = append(parts, fmt.Sprintf("%d writes failed (first: %s: %v)", len(e.Failures), first.Path, first.Err))
	}
	if e.Commit != nil {
		parts = append(parts, fmt.Sprintf("commit failed: %v", e.Commit))
	}
	return fmt.Sprintf("persisting %s: %s", e.Root, strings.Join(parts, "; "))
}

// Unwrap exposes the commit error and every write error.
func (e *PersistError) Unwrap() []error {
	var errs []error
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}
	if e.Commit != nil {
		errs = append(errs, e.Commit)
	}
	return errs
}

var _ interface{ Unwrap() []error } = (*PersistError)(nil)

// IsConflict reports whether err carries a *ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
