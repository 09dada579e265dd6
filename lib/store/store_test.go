// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"testing"
)

func TestStoreReloadReadsBackend(t *testing.T) {
	backend := NewMemory(
		Entry{Path: "/files/etc/hostname", Value: nil},
		Entry{Path: "/files/etc/hostname/hostname", Value: Value("ipc-01")},
	)
	s := New(backend, nil)

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	value, ok, err := s.Get("/files/etc/hostname/hostname")
	if err != nil || !ok || value != "ipc-01" {
		t.Errorf("Get = %q, %v, %v; want ipc-01", value, ok, err)
	}
	if backend.Loads() != 1 {
		t.Errorf("Loads = %d, want 1", backend.Loads())
	}
}

func TestStoreCommitPersistsPending(t *testing.T) {
	backend := NewMemory()
	s := New(backend, nil)
	ctx := context.Background()

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := s.Set("/files/etc/app.cfg/server/port", Value("8443")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending())
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after Commit = %d, want 0", s.Pending())
	}

	changes := backend.LastChanges()
	if len(changes) != 1 || changes[0].Path != "/files/etc/app.cfg/server/port" {
		t.Errorf("LastChanges = %+v", changes)
	}

	// A second store over the same backend sees the committed value.
	other := New(backend, nil)
	if err := other.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	value, ok, _ := other.Get("/files/etc/app.cfg/server/port")
	if !ok || value != "8443" {
		t.Errorf("reloaded value = %q, %v; want 8443", value, ok)
	}
}

func TestStoreCommitWithoutChangesSkipsBackend(t *testing.T) {
	backend := NewMemory()
	s := New(backend, nil)
	if err := s.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if backend.Saves() != 0 {
		t.Errorf("Saves = %d, want 0", backend.Saves())
	}
}

func TestStoreCommitFailureKeepsPending(t *testing.T) {
	backend := NewMemory()
	failure := errors.New("permission denied")
	backend.FailSaves(failure)
	s := New(backend, nil)
	ctx := context.Background()

	if err := s.Set("/files/etc/app.cfg/key", Value("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Commit(ctx); !errors.Is(err, failure) {
		t.Fatalf("Commit error = %v, want %v", err, failure)
	}
	if s.Pending() != 1 {
		t.Errorf("Pending after failed Commit = %d, want 1", s.Pending())
	}

	backend.FailSaves(nil)
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
	if len(backend.Entries()) == 0 {
		t.Error("backend still empty after successful retry")
	}
}

func TestStoreReloadDropsPending(t *testing.T) {
	backend := NewMemory()
	s := New(backend, nil)
	ctx := context.Background()

	if err := s.Set("/files/etc/app.cfg/key", Value("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after Reload = %d, want 0", s.Pending())
	}
	if _, ok, _ := s.Get("/files/etc/app.cfg/key"); ok {
		t.Error("uncommitted value survived Reload")
	}
}

func TestStoreReloadHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(NewMemory(), nil)
	if err := s.Reload(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Reload error = %v, want context.Canceled", err)
	}
}
