// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fleetconf/srr/lib/testutil"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	network, err := table.Resolve("network")
	if err != nil {
		t.Fatalf("Resolve(network): %v", err)
	}
	if network.Class != Tree {
		t.Errorf("network class = %v, want tree", network.Class)
	}
	if network.StoreRoot != "/files/etc/network/interfaces" {
		t.Errorf("network store root = %q", network.StoreRoot)
	}
	if network.RootSegment() != "interfaces" || network.RootPattern() != "/files/etc/network/interfaces/*" {
		t.Errorf("root segment %q, pattern %q", network.RootSegment(), network.RootPattern())
	}

	ntp, err := table.Resolve("ntp-settings")
	if err != nil {
		t.Fatalf("Resolve(ntp-settings): %v", err)
	}
	if ntp.Class != Opaque || !ntp.TimeSync {
		t.Errorf("ntp-settings = %+v, want opaque time-sync feature", ntp)
	}
	if len(table.Names()) != 13 {
		t.Errorf("default table has %d features, want 13", len(table.Names()))
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := DefaultTable().Resolve("coffee-machine")
	var unknown *UnknownFeatureError
	if !errors.As(err, &unknown) || unknown.Name != "coffee-machine" {
		t.Fatalf("error = %v, want *UnknownFeatureError", err)
	}
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name     string
		features []Feature
	}{
		{"empty name", []Feature{{FilePath: "/etc/a"}}},
		{"duplicate", []Feature{{Name: "a", FilePath: "/etc/a"}, {Name: "a", FilePath: "/etc/b"}}},
		{"relative path", []Feature{{Name: "a", FilePath: "etc/a"}}},
		{"wildcard root", []Feature{{Name: "a", FilePath: "/etc/a", StoreRoot: "/files/*"}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewTable(test.features); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestTableListings(t *testing.T) {
	table, err := NewTable([]Feature{
		{Name: "b-tree", FilePath: "/etc/b.cfg"},
		{Name: "a-opaque", FilePath: "/etc/a.cfg", Class: Opaque},
		{Name: "c-tree", FilePath: "/etc/c.cfg", StoreRoot: "/custom/c"},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if diff := cmp.Diff([]string{"a-opaque", "b-tree", "c-tree"}, table.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/files/etc/b.cfg", "/custom/c"}, table.TreeRoots()); diff != "" {
		t.Errorf("TreeRoots mismatch (-want +got):\n%s", diff)
	}
}

func TestParseClass(t *testing.T) {
	for input, want := range map[string]Class{"tree": Tree, "": Tree, "Opaque": Opaque, "bulk": Opaque} {
		got, err := ParseClass(input)
		if err != nil || got != want {
			t.Errorf("ParseClass(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseClass("blob"); err == nil {
		t.Error("ParseClass(blob) should fail")
	}
}

const featureFile = `
features:
  - name: network
    path: /etc/network/interfaces
  - name: ntp-settings
    path: /etc/ntp.conf
    class: opaque
    time_sync: true
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	if err := os.WriteFile(path, []byte(featureFile), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := []Feature{
		{Name: "network", StoreRoot: "/files/etc/network/interfaces", FilePath: "/etc/network/interfaces", Class: Tree},
		{Name: "ntp-settings", StoreRoot: "/files/etc/ntp.conf", FilePath: "/etc/ntp.conf", Class: Opaque, TimeSync: true},
	}
	if diff := cmp.Diff(want, table.Features()); diff != "" {
		t.Errorf("Features mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileRejectsUnknownClass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.json")
	content := `{"features": [{"name": "x", "path": "/etc/x", "class": "blob"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for an unknown class")
	}
}

func TestWatchReloadsTable(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "features.yaml")
	if err := os.WriteFile(path, []byte(featureFile), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	initial, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	registry := New(initial, nil)
	held := registry.Current()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan error, 16)
	if err := registry.Watch(ctx, path, changed); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// A broken file keeps the current table.
	if err := os.WriteFile(path, []byte("features: [\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitForReload(t, changed, false)
	if registry.Current() != held {
		t.Fatal("table replaced by a broken file")
	}

	updated := featureFile + "  - name: network-host-name\n    path: /etc/hostname\n    class: opaque\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitForReload(t, changed, true)
	if _, err := registry.Current().Resolve("network-host-name"); err != nil {
		t.Errorf("new feature not visible after reload: %v", err)
	}
	// The table taken before the reload is unchanged.
	if _, err := held.Resolve("network-host-name"); err == nil {
		t.Error("held table changed after reload")
	}
}

// waitForReload drains reload results until one with the wanted
// outcome arrives. A single write can produce several events, and the
// first may see a partially written file.
func waitForReload(t *testing.T, changed <-chan error, wantSuccess bool) {
	t.Helper()
	for {
		err := testutil.RequireReceive(t, changed, 5*time.Second, "waiting for a reload with success=%v", wantSuccess)
		if (err == nil) == wantSuccess {
			return
		}
	}
}
