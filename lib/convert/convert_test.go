// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package convert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fleetconf/srr/lib/configpath"
	"github.com/fleetconf/srr/lib/document"
	"github.com/fleetconf/srr/lib/store"
)

const interfacesRoot = "/files/etc/network/interfaces"

type entry struct {
	path  string
	value *string
}

func v(s string) *string { return &s }

// interfacesTree is a parsed /etc/network/interfaces with two auto
// lines, three interface stanzas and a comment.
func interfacesTree(t *testing.T) *store.Tree {
	t.Helper()
	tree := store.NewTree()
	for _, e := range []entry{
		{"/files/etc/hostname/hostname", v("box")},
		{interfacesRoot + "/#comment", v("managed by the appliance")},
		{interfacesRoot + "/auto[1]", nil},
		{interfacesRoot + "/auto[1]/1", v("lo")},
		{interfacesRoot + "/auto[2]", nil},
		{interfacesRoot + "/auto[2]/1", v("eth0")},
		{interfacesRoot + "/iface[1]", v("lo")},
		{interfacesRoot + "/iface[1]/family", v("inet")},
		{interfacesRoot + "/iface[1]/method", v("loopback")},
		{interfacesRoot + "/iface[2]", v("eth0")},
		{interfacesRoot + "/iface[2]/family", v("inet")},
		{interfacesRoot + "/iface[2]/method", v("static")},
		{interfacesRoot + "/iface[2]/address", v("10.0.0.2")},
		{interfacesRoot + "/iface[2]/dns-nameserver[1]", v("1.1.1.1")},
		{interfacesRoot + "/iface[2]/dns-nameserver[2]", v("8.8.8.8")},
		{interfacesRoot + "/iface[3]", v("eth1")},
		{interfacesRoot + "/iface[3]/method", v("dhcp")},
		{interfacesRoot + "/iface[3]/up", nil},
	} {
		if err := tree.Set(e.path, e.value); err != nil {
			t.Fatalf("Set(%s): %v", e.path, err)
		}
	}
	return tree
}

func object(members ...document.Member) *document.Object {
	result := document.NewObject()
	for _, member := range members {
		result.Set(member.Name, member.Value)
	}
	return result
}

func member(name string, value document.Node) document.Member {
	return document.Member{Name: name, Value: value}
}

func scalars(values ...string) document.RepeatedGroup {
	group := make(document.RepeatedGroup, len(values))
	for i, value := range values {
		group[i] = document.Scalar(value)
	}
	return group
}

func TestToDocument(t *testing.T) {
	doc, err := ToDocument(interfacesTree(t), interfacesRoot+"/*", "interfaces")
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	want := object(
		member("auto[1]", object(member("1", document.Scalar("lo")))),
		member("auto[2]", object(member("1", document.Scalar("eth0")))),
		member("iface", scalars("lo", "eth0", "eth1")),
		member("iface[1]", object(
			member("family", document.Scalar("inet")),
			member("method", document.Scalar("loopback")),
		)),
		member("iface[2]", object(
			member("family", document.Scalar("inet")),
			member("method", document.Scalar("static")),
			member("address", document.Scalar("10.0.0.2")),
			member("dns-nameserver", scalars("1.1.1.1", "8.8.8.8")),
		)),
		member("iface[3]", object(
			member("method", document.Scalar("dhcp")),
			member("up", document.NewObject()),
		)),
	)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("ToDocument mismatch (-want +got):\n%s", diff)
	}
}

// valuelessSiblingTree holds a valueless positioned node with children
// ahead of a value-bearing sibling sharing its label.
func valuelessSiblingTree(t *testing.T) *store.Tree {
	t.Helper()
	tree := store.NewTree()
	for _, e := range []entry{
		{"/files/etc/app.cfg/opt[1]", nil},
		{"/files/etc/app.cfg/opt[1]/x", v("1")},
		{"/files/etc/app.cfg/opt[2]", v("val")},
		{"/files/etc/app.cfg/mode", v("fast")},
	} {
		if err := tree.Set(e.path, e.value); err != nil {
			t.Fatalf("Set(%s): %v", e.path, err)
		}
	}
	return tree
}

// entriesUnder keeps the non-comment entries below root.
func entriesUnder(entries []store.Entry, root string) []store.Entry {
	var kept []store.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Path, root+"/") && !configpath.IsComment(e.Path) {
			kept = append(kept, e)
		}
	}
	return kept
}

func TestRoundTripThroughEmptyStore(t *testing.T) {
	tests := []struct {
		name        string
		tree        func(*testing.T) *store.Tree
		root        string
		rootSegment string
	}{
		{"interfaces", interfacesTree, interfacesRoot, "interfaces"},
		{"valueless sibling before a value", valuelessSiblingTree, "/files/etc/app.cfg", "app.cfg"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			source := test.tree(t)
			original, err := ToDocument(source, test.root+"/*", test.rootSegment)
			if err != nil {
				t.Fatalf("ToDocument: %v", err)
			}

			backend := store.NewMemory()
			target := store.New(backend, nil)
			if err := ApplyDocument(ctx, target, original, test.root); err != nil {
				t.Fatalf("ApplyDocument: %v", err)
			}
			again, err := ToDocument(target, test.root+"/*", test.rootSegment)
			if err != nil {
				t.Fatalf("second ToDocument: %v", err)
			}
			if diff := cmp.Diff(original, again); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			want := entriesUnder(source.Snapshot(), test.root)
			got := entriesUnder(backend.Entries(), test.root)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("restored store mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToDocumentPadsValuelessPositions(t *testing.T) {
	doc, err := ToDocument(valuelessSiblingTree(t), "/files/etc/app.cfg/*", "app.cfg")
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	want := object(
		member("opt[1]", object(member("x", document.Scalar("1")))),
		member("opt", document.RepeatedGroup{document.ArrayMarker{Name: "opt"}, document.Scalar("val")}),
		member("mode", document.Scalar("fast")),
	)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("ToDocument mismatch (-want +got):\n%s", diff)
	}

	text, err := document.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	parsed, err := document.Unmarshal(text)
	if err != nil {
		t.Fatalf("Unmarshal(%s): %v", text, err)
	}
	if !parsed.Equal(doc) {
		t.Errorf("text form %s does not read back as the same Document", text)
	}
}

func TestApplyDocumentWritesGroupsBeforePositionedMembers(t *testing.T) {
	ctx := context.Background()
	doc, err := document.Unmarshal([]byte(`{"iface[2]":{"address":"10.0.0.2"},"iface":"lo","iface":"eth0"}`))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	target := store.New(store.NewMemory(), nil)
	if err := ApplyDocument(ctx, target, doc, interfacesRoot); err != nil {
		t.Fatalf("ApplyDocument: %v", err)
	}

	for path, want := range map[string]string{
		interfacesRoot + "/iface[1]":         "lo",
		interfacesRoot + "/iface[2]":         "eth0",
		interfacesRoot + "/iface[2]/address": "10.0.0.2",
	} {
		value, ok, err := target.Get(path)
		if err != nil || !ok || value != want {
			t.Errorf("Get(%s) = %q, %v, %v; want %q", path, value, ok, err, want)
		}
	}
	if matches, _ := target.Match(interfacesRoot + "/iface[1]/*"); len(matches) != 0 {
		t.Errorf("iface[1] has children %+v, want none", matches)
	}
}

func TestApplyDocumentOrdersPositionedMembers(t *testing.T) {
	writer := &flakyWriter{}
	doc := object(
		member("opt[2]", object(member("y", document.Scalar("2")))),
		member("mode", document.Scalar("fast")),
		member("opt[1]", object(member("x", document.Scalar("1")))),
	)
	if err := ApplyDocument(context.Background(), writer, doc, "/r"); err != nil {
		t.Fatalf("ApplyDocument: %v", err)
	}
	want := []string{"/r/opt[1]/x", "/r/opt[2]/y", "/r/mode"}
	if diff := cmp.Diff(want, writer.written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}
}

func TestLiftedLeafWithChildrenRoundTrips(t *testing.T) {
	ctx := context.Background()
	tree := store.NewTree()
	for _, e := range []entry{
		{"/files/etc/app.cfg/server", v("primary")},
		{"/files/etc/app.cfg/server/port", v("8080")},
		{"/files/etc/app.cfg/server/tls/cert", v("/etc/ssl/app.pem")},
	} {
		if err := tree.Set(e.path, e.value); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	doc, err := ToDocument(tree, "/files/etc/app.cfg/*", "app.cfg")
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	want := object(
		member("server", document.Scalar("primary")),
		member("server[1]", object(
			member("port", document.Scalar("8080")),
			member("tls", object(member("cert", document.Scalar("/etc/ssl/app.pem")))),
		)),
	)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("ToDocument mismatch (-want +got):\n%s", diff)
	}

	target := store.New(store.NewMemory(), nil)
	if err := ApplyDocument(ctx, target, doc, "/files/etc/app.cfg"); err != nil {
		t.Fatalf("ApplyDocument: %v", err)
	}
	value, ok, err := target.Get("/files/etc/app.cfg/server/port")
	if err != nil || !ok || value != "8080" {
		t.Errorf("server/port = %q, %v, %v; want 8080", value, ok, err)
	}
	matches, err := target.Match("/files/etc/app.cfg/*")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("restored store has %d server nodes, want 1", len(matches))
	}
}

// scripted is a Matcher returning fixed results per pattern.
type scripted map[string][]store.MatchedNode

func (s scripted) Match(pattern string) ([]store.MatchedNode, error) {
	return s[pattern], nil
}

func node(path, label string, value *string) store.MatchedNode {
	return store.MatchedNode{Path: path, Label: label, Value: value}
}

func TestToDocumentConflicts(t *testing.T) {
	tests := []struct {
		name   string
		source scripted
	}{
		{"duplicate leaf", scripted{"/r/feat/*": {
			node("/r/feat/a", "a", v("1")),
			node("/r/feat/a", "a", v("2")),
		}}},
		{"repeated position attached twice", scripted{"/r/feat/*": {
			node("/r/feat/a[1]", "a", v("1")),
			node("/r/feat/a[1]", "a", v("2")),
		}}},
		{"value mixed with group", scripted{"/r/feat/*": {
			node("/r/feat/a", "a", v("1")),
			node("/r/feat/a[2]", "a", v("2")),
		}}},
		{"children under a group", scripted{
			"/r/feat/*":   {node("/r/feat/a[1]", "a", v("1"))},
			"/r/feat/*/*": {node("/r/feat/a/b", "b", v("2"))},
		}},
		{"outside the root", scripted{"/r/feat/*": {
			node("/elsewhere/a", "a", v("1")),
		}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ToDocument(test.source, "/r/feat/*", "feat")
			if !IsConflict(err) {
				t.Fatalf("ToDocument error = %v, want *ConflictError", err)
			}
		})
	}
}

func TestToDocumentSkipsComments(t *testing.T) {
	source := scripted{"/r/feat/*": {
		node("/r/feat/#comment", "#comment", v("hello")),
		node("/r/feat/a", "a", v("1")),
	}}
	doc, err := ToDocument(source, "/r/feat/*", "feat")
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	if diff := cmp.Diff(object(member("a", document.Scalar("1"))), doc); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyDocumentStaysUnderRoot(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemory(
		store.Entry{Path: "/files/etc/hostname/hostname", Value: v("box")},
		store.Entry{Path: "/files/etc/app.cfg/keep", Value: v("old")},
	)
	target := store.New(backend, nil)
	if err := target.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	doc := object(member("key", document.Scalar("new")), member("list", scalars("a", "b")))
	if err := ApplyDocument(ctx, target, doc, "/files/etc/app.cfg"); err != nil {
		t.Fatalf("ApplyDocument: %v", err)
	}
	for _, change := range backend.LastChanges() {
		if !strings.HasPrefix(change.Path, "/files/etc/app.cfg/") {
			t.Errorf("write outside the feature root: %s", change.Path)
		}
	}
	value, _, _ := target.Get("/files/etc/hostname/hostname")
	if value != "box" {
		t.Errorf("unrelated value = %q, want box", value)
	}
	if backend.Saves() != 1 {
		t.Errorf("Saves = %d, want exactly one commit", backend.Saves())
	}
}

func TestApplyDocumentRejectsEscapingMembers(t *testing.T) {
	for _, name := range []string{"..", "a/b", "*", ""} {
		t.Run(name, func(t *testing.T) {
			backend := store.NewMemory()
			target := store.New(backend, nil)
			doc := object(
				member("fine", document.Scalar("1")),
				member("nested", object(member(name, document.Scalar("x")))),
			)
			err := ApplyDocument(context.Background(), target, doc, "/files/etc/app.cfg")
			if !IsConflict(err) {
				t.Fatalf("error = %v, want *ConflictError", err)
			}
			if target.Pending() != 0 || backend.Saves() != 0 {
				t.Errorf("store touched: pending %d, saves %d", target.Pending(), backend.Saves())
			}
		})
	}
}

// flakyWriter fails Set for chosen paths and records everything.
type flakyWriter struct {
	failing   map[string]bool
	written   []string
	commits   int
	commitErr error
}

func (w *flakyWriter) Set(path string, _ *string) error {
	if w.failing[path] {
		return errors.New("read-only node")
	}
	w.written = append(w.written, path)
	return nil
}

func (w *flakyWriter) Commit(context.Context) error {
	w.commits++
	return w.commitErr
}

func TestApplyDocumentIsBestEffort(t *testing.T) {
	writer := &flakyWriter{failing: map[string]bool{"/r/b": true}}
	doc := object(
		member("a", document.Scalar("1")),
		member("b", document.Scalar("2")),
		member("c", document.Scalar("3")),
	)
	err := ApplyDocument(context.Background(), writer, doc, "/r")

	var persist *PersistError
	if !errors.As(err, &persist) {
		t.Fatalf("error = %v, want *PersistError", err)
	}
	if len(persist.Failures) != 1 || persist.Failures[0].Path != "/r/b" {
		t.Errorf("failures = %+v", persist.Failures)
	}
	if diff := cmp.Diff([]string{"/r/a", "/r/c"}, writer.written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}
	if writer.commits != 1 {
		t.Errorf("commits = %d, want 1", writer.commits)
	}
}

func TestApplyDocumentReportsCommitFailure(t *testing.T) {
	failure := errors.New("disk full")
	writer := &flakyWriter{commitErr: failure}
	err := ApplyDocument(context.Background(), writer, object(member("a", document.Scalar("1"))), "/r")
	if !errors.Is(err, failure) {
		t.Fatalf("error = %v, want %v", err, failure)
	}
	var persist *PersistError
	if !errors.As(err, &persist) || persist.Commit == nil {
		t.Errorf("error = %v, want *PersistError with commit failure", err)
	}
}

func TestApplyDocumentWritesGroupsOfObjects(t *testing.T) {
	writer := &flakyWriter{}
	doc := object(member("entry", document.RepeatedGroup{
		object(member("name", document.Scalar("a"))),
		document.NewObject(),
		document.ArrayMarker{Name: "entry"},
	}))
	if err := ApplyDocument(context.Background(), writer, doc, "/r"); err != nil {
		t.Fatalf("ApplyDocument: %v", err)
	}
	want := []string{"/r/entry[1]/name", "/r/entry[2]", "/r/entry[3]"}
	if diff := cmp.Diff(want, writer.written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}
}
