// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package convert

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/fleetconf/srr/lib/configpath"
	"github.com/fleetconf/srr/lib/document"
	"github.com/fleetconf/srr/lib/store"
)

// Writer is the write side of store.ConfigStore used by ApplyDocument.
type Writer interface {
	Set(path string, value *string) error
	Commit(ctx context.Context) error
}

// write is one pending store write.
type write struct {
	path  string
	value *string
}

// ApplyDocument writes doc below rootPath and commits once. Every
// member name is checked before the first write, so a rejected
// Document leaves the store untouched and yields a *ConflictError.
// Individual write failures do not stop the remaining writes; they are
// reported together with any commit failure as a *PersistError.
func ApplyDocument(ctx context.Context, target Writer, doc *document.Object, rootPath string) error {
	if _, err := configpath.Parse(rootPath); err != nil {
		return &ConflictError{Path: rootPath, Reason: err.Error()}
	}
	var writes []write
	if err := plan(doc, rootPath, &writes); err != nil {
		return err
	}

	var failures []WriteFailure
	for _, w := range writes {
		if err := target.Set(w.path, w.value); err != nil {
			failures = append(failures, WriteFailure{Path: w.path, Err: err})
		}
	}
	commitErr := target.Commit(ctx)
	if len(failures) > 0 || commitErr != nil {
		return &PersistError{Root: rootPath, Failures: failures, Commit: commitErr}
	}
	return nil
}

// plan flattens an Object into writes. Members sharing a label are
// emitted together at the label's first appearance, the plain member
// before positioned ones in position order, so each positioned path
// resolves against the siblings its group already created.
func plan(object *document.Object, path string, writes *[]write) error {
	var labels []string
	byLabel := make(map[string][]document.Member)
	for _, member := range object.Members() {
		if err := configpath.ValidateMember(member.Name); err != nil {
			return &ConflictError{Path: path, Reason: err.Error()}
		}
		label := configpath.ParseSegment(member.Name).Label
		if _, seen := byLabel[label]; !seen {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], member)
	}
	for _, label := range labels {
		members := byLabel[label]
		slices.SortStableFunc(members, func(a, b document.Member) int {
			return cmp.Compare(configpath.ParseSegment(a.Name).Index, configpath.ParseSegment(b.Name).Index)
		})
		for _, member := range members {
			if err := planMember(member, path, writes); err != nil {
				return err
			}
		}
	}
	return nil
}

func planMember(member document.Member, path string, writes *[]write) error {
	memberPath := configpath.Join(path, member.Name)
	group, ok := member.Value.(document.RepeatedGroup)
	if !ok {
		return planNode(member.Value, memberPath, writes)
	}
	if configpath.ParseSegment(member.Name).Index != 0 {
		return &ConflictError{Path: memberPath, Reason: "repeated values under a positioned member"}
	}
	for i, element := range group {
		elementPath := configpath.Join(path, configpath.Segment{Label: member.Name, Index: i + 1}.String())
		if err := planNode(element, elementPath, writes); err != nil {
			return err
		}
	}
	return nil
}

func planNode(node document.Node, path string, writes *[]write) error {
	switch node := node.(type) {
	case document.Scalar:
		value := string(node)
		*writes = append(*writes, write{path: path, value: &value})
	case document.ArrayMarker:
		*writes = append(*writes, write{path: path})
	case *document.Object:
		if node.Len() == 0 {
			*writes = append(*writes, write{path: path})
			return nil
		}
		return plan(node, path, writes)
	case document.RepeatedGroup:
		return &ConflictError{Path: path, Reason: "nested repeated values"}
	default:
		return &ConflictError{Path: path, Reason: fmt.Sprintf("unknown document node %T", node)}
	}
	return nil
}

var _ Writer = store.ConfigStore(nil)
