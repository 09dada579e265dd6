// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"testing"
)

func mustSet(t *testing.T, tree *Tree, path string, value *string) {
	t.Helper()
	if err := tree.Set(path, value); err != nil {
		t.Fatalf("Set(%q): %v", path, err)
	}
}

func matchPaths(t *testing.T, tree *Tree, pattern string) []string {
	t.Helper()
	matches, err := tree.Match(pattern)
	if err != nil {
		t.Fatalf("Match(%q): %v", pattern, err)
	}
	paths := make([]string, len(matches))
	for i, match := range matches {
		paths[i] = match.Path
	}
	return paths
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTreeSetAndGet(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/files/etc/fty/agent.cfg/server/port", Value("8080"))

	value, ok, err := tree.Get("/files/etc/fty/agent.cfg/server/port")
	if err != nil || !ok || value != "8080" {
		t.Fatalf("Get = %q, %v, %v; want 8080, true, nil", value, ok, err)
	}

	// Intermediate nodes exist but carry no value.
	_, ok, err = tree.Get("/files/etc/fty/agent.cfg/server")
	if err != nil || ok {
		t.Errorf("Get(container) = ok %v, err %v; want false, nil", ok, err)
	}

	_, ok, err = tree.Get("/files/missing")
	if err != nil || ok {
		t.Errorf("Get(missing) = ok %v, err %v; want false, nil", ok, err)
	}
}

func TestTreeRendersPositionsOnlyForSharedLabels(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/server", Value("a"))
	mustSet(t, tree, "/root/iface", Value("eth0"))
	mustSet(t, tree, "/root/iface[2]", Value("eth1"))

	got := matchPaths(t, tree, "/root/*")
	want := []string{"/root/server", "/root/iface[1]", "/root/iface[2]"}
	if !equalStrings(got, want) {
		t.Errorf("Match = %v, want %v", got, want)
	}
}

func TestTreeInsertsAfterLastSameLabelSibling(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/entry", Value("1"))
	mustSet(t, tree, "/root/other", Value("x"))
	mustSet(t, tree, "/root/entry[2]", Value("2"))

	got := matchPaths(t, tree, "/root/*")
	want := []string{"/root/entry[1]", "/root/entry[2]", "/root/other"}
	if !equalStrings(got, want) {
		t.Errorf("Match = %v, want %v", got, want)
	}
}

func TestTreeMatchByLabel(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/entry[1]", Value("1"))
	mustSet(t, tree, "/root/entry[2]", Value("2"))
	mustSet(t, tree, "/root/other", Value("x"))

	if got := matchPaths(t, tree, "/root/entry"); len(got) != 2 {
		t.Errorf("Match(label) = %v, want 2 nodes", got)
	}
	if got := matchPaths(t, tree, "/root/entry[2]"); !equalStrings(got, []string{"/root/entry[2]"}) {
		t.Errorf("Match(label[2]) = %v", got)
	}
	if got := matchPaths(t, tree, "/root/entry[3]"); len(got) != 0 {
		t.Errorf("Match(label[3]) = %v, want none", got)
	}
	if got := matchPaths(t, tree, "/nowhere/*"); len(got) != 0 {
		t.Errorf("Match(missing) = %v, want none", got)
	}
}

func TestTreeAmbiguity(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/entry[1]", Value("1"))
	mustSet(t, tree, "/root/entry[2]", Value("2"))

	if _, _, err := tree.Get("/root/entry"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Get(ambiguous) error = %v, want ErrAmbiguous", err)
	}
	if err := tree.Set("/root/entry", Value("3")); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Set(ambiguous) error = %v, want ErrAmbiguous", err)
	}
	if _, err := tree.Label("/root/entry"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Label(ambiguous) error = %v, want ErrAmbiguous", err)
	}
}

func TestTreeSetRejectsWildcard(t *testing.T) {
	tree := NewTree()
	if err := tree.Set("/root/*/x", Value("1")); !errors.Is(err, ErrWildcard) {
		t.Errorf("Set(wildcard) error = %v, want ErrWildcard", err)
	}
	if tree.Len() != 0 {
		t.Errorf("tree has %d nodes after rejected Set, want 0", tree.Len())
	}
}

func TestTreeSetNilClearsValue(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/flag", Value("on"))
	mustSet(t, tree, "/root/flag", nil)

	matches, err := tree.Match("/root/flag")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].HasValue() {
		t.Errorf("Match = %+v, want one valueless node", matches)
	}
}

func TestTreeLabel(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/iface[1]", Value("eth0"))
	mustSet(t, tree, "/root/iface[2]", Value("eth1"))

	label, err := tree.Label("/root/iface[2]")
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if label != "iface" {
		t.Errorf("Label = %q, want iface", label)
	}
	if _, err := tree.Label("/root/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Label(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTreeSnapshotRebuildsIdenticalTree(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/a/b", Value("1"))
	mustSet(t, tree, "/root/a/c[1]", Value("2"))
	mustSet(t, tree, "/root/a/c[2]/d", Value("3"))
	mustSet(t, tree, "/root/e", nil)

	snapshot := tree.Snapshot()
	rebuilt := NewTree()
	for _, entry := range snapshot {
		mustSet(t, rebuilt, entry.Path, entry.Value)
	}

	again := rebuilt.Snapshot()
	if len(again) != len(snapshot) {
		t.Fatalf("rebuilt snapshot has %d entries, want %d", len(again), len(snapshot))
	}
	for i := range snapshot {
		if again[i].Path != snapshot[i].Path {
			t.Errorf("entry %d path = %q, want %q", i, again[i].Path, snapshot[i].Path)
		}
		if (again[i].Value == nil) != (snapshot[i].Value == nil) {
			t.Errorf("entry %d value presence differs", i)
		} else if again[i].Value != nil && *again[i].Value != *snapshot[i].Value {
			t.Errorf("entry %d value = %q, want %q", i, *again[i].Value, *snapshot[i].Value)
		}
	}
}

func TestTreeMatchReturnsCopies(t *testing.T) {
	tree := NewTree()
	mustSet(t, tree, "/root/a", Value("original"))

	matches, err := tree.Match("/root/a")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	*matches[0].Value = "mutated"

	value, _, _ := tree.Get("/root/a")
	if value != "original" {
		t.Errorf("tree value = %q after mutating a match, want original", value)
	}
}
