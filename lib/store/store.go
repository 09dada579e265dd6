// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// MatchedNode is one result of a pattern match.
type MatchedNode struct {
	// Path is the rendered store path of the node, with positions on
	// segments whose label is shared by siblings.
	Path string

	// Value is nil for valueless (container) nodes.
	Value *string

	// Label is the node's own key, without position.
	Label string
}

// HasValue reports whether the node carries a value.
func (n MatchedNode) HasValue() bool { return n.Value != nil }

// ConfigStore is the store adapter consumed by the converters and the
// processor.
type ConfigStore interface {
	// Match returns every node matching pattern, in document order.
	Match(pattern string) ([]MatchedNode, error)

	// Get returns the value at path. ok is false when no node exists
	// or the node is valueless.
	Get(path string) (value string, ok bool, err error)

	// Label returns the key of the node at path.
	Label(path string) (string, error)

	// Set writes value at path, creating missing nodes. A nil value
	// creates (or clears) a valueless node.
	Set(path string, value *string) error

	// Reload discards local state and re-reads the backing store.
	Reload(ctx context.Context) error

	// Commit persists every Set since the last Reload or Commit.
	Commit(ctx context.Context) error
}

// Errors returned by the tree.
var (
	ErrAmbiguous = errors.New("path matches more than one node")
	ErrNotFound  = errors.New("no node at path")
	ErrWildcard  = errors.New("wildcard not allowed in a write path")
)

// Entry is one node in a backend snapshot. Snapshots are listed in
// document order, parents before children.
type Entry struct {
	Path  string
	Value *string
}

// Backend loads and persists the data behind a Store.
type Backend interface {
	// Load returns the current snapshot.
	Load(ctx context.Context) ([]Entry, error)

	// Save persists the given changes. snapshot is the full tree after
	// the changes were applied, for backends that rewrite wholesale.
	Save(ctx context.Context, changes []Entry, snapshot []Entry) error
}

// Store is a ConfigStore backed by a Backend.
type Store struct {
	backend Backend
	tree    *Tree
	pending []Entry
	logger  *slog.Logger
}

// New creates a Store. The tree is empty until the first Reload.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		backend: backend,
		tree:    NewTree(),
		logger:  logger,
	}
}

// Match implements ConfigStore.
func (s *Store) Match(pattern string) ([]MatchedNode, error) {
	return s.tree.Match(pattern)
}

// Get implements ConfigStore.
func (s *Store) Get(path string) (string, bool, error) {
	return s.tree.Get(path)
}

// Label implements ConfigStore.
func (s *Store) Label(path string) (string, error) {
	return s.tree.Label(path)
}

// Set implements ConfigStore.
func (s *Store) Set(path string, value *string) error {
	if err := s.tree.Set(path, value); err != nil {
		return err
	}
	s.pending = append(s.pending, Entry{Path: path, Value: cloneValue(value)})
	return nil
}

// Reload implements ConfigStore. Pending changes are dropped.
func (s *Store) Reload(ctx context.Context) error {
	entries, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading store: %w", err)
	}
	tree := NewTree()
	for _, entry := range entries {
		if err := tree.Set(entry.Path, entry.Value); err != nil {
			return fmt.Errorf("reloading store: entry %s: %w", entry.Path, err)
		}
	}
	if len(s.pending) > 0 {
		s.logger.Warn("dropping uncommitted store changes", "count", len(s.pending))
	}
	s.tree = tree
	s.pending = nil
	s.logger.Debug("store reloaded", "entries", len(entries))
	return nil
}

// Commit implements ConfigStore. On failure the pending changes are
// kept, so a later Commit retries them.
func (s *Store) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.backend.Save(ctx, s.pending, s.tree.Snapshot()); err != nil {
		return fmt.Errorf("committing %d store changes: %w", len(s.pending), err)
	}
	s.logger.Debug("store committed", "changes", len(s.pending))
	s.pending = nil
	return nil
}

// Pending returns the number of uncommitted changes.
func (s *Store) Pending() int { return len(s.pending) }

func cloneValue(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
