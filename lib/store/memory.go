// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"
)

// Memory is a Backend holding its snapshot in memory. It is used by
// tests and by agents configured with the memory backend.
type Memory struct {
	mu       sync.Mutex
	entries  []Entry
	loads    int
	saves    int
	saveErr  error
	lastSave []Entry
}

// NewMemory returns a Memory backend seeded with entries.
func NewMemory(entries ...Entry) *Memory {
	return &Memory{entries: cloneEntries(entries)}
}

// Load implements Backend.
func (m *Memory) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return cloneEntries(m.entries), nil
}

// Save implements Backend by replacing the held snapshot.
func (m *Memory) Save(ctx context.Context, changes []Entry, snapshot []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries = cloneEntries(snapshot)
	m.lastSave = cloneEntries(changes)
	return nil
}

// FailSaves makes every following Save return err. A nil err restores
// normal behavior.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Entries returns the persisted snapshot.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEntries(m.entries)
}

// LastChanges returns the change list of the last successful Save.
func (m *Memory) LastChanges() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEntries(m.lastSave)
}

// Loads returns how many times Load was called.
func (m *Memory) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Saves returns how many times Save was called, failed calls included.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	cloned := make([]Entry, len(entries))
	for i, entry := range entries {
		cloned[i] = Entry{Path: entry.Path, Value: cloneValue(entry.Value)}
	}
	return cloned
}

// Value returns a pointer to a copy of s, for building entries and
// Set calls.
func Value(s string) *string { return &s }
