// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fleetconf/srr/lib/configpath"
)

// Tree is an in-memory configuration tree with store path semantics.
// The zero value is not usable; call NewTree.
type Tree struct {
	root *treeNode
}

type treeNode struct {
	label    string
	value    *string
	children []*treeNode
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: &treeNode{}}
}

// located pairs a node with its rendered path.
type located struct {
	node *treeNode
	path string
}

// Match returns the nodes matching pattern in document order.
func (t *Tree) Match(pattern string) ([]MatchedNode, error) {
	found, err := t.locate(pattern)
	if err != nil {
		return nil, err
	}
	matches := make([]MatchedNode, 0, len(found))
	for _, entry := range found {
		matches = append(matches, MatchedNode{
			Path:  entry.path,
			Value: cloneValue(entry.node.value),
			Label: entry.node.label,
		})
	}
	return matches, nil
}

// Get returns the value at path.
func (t *Tree) Get(path string) (string, bool, error) {
	node, err := t.single(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if node.value == nil {
		return "", false, nil
	}
	return *node.value, true, nil
}

// Label returns the label of the node at path.
func (t *Tree) Label(path string) (string, error) {
	node, err := t.single(path)
	if err != nil {
		return "", fmt.Errorf("label %s: %w", path, err)
	}
	return node.label, nil
}

// Set writes value at path, creating missing nodes along the way. A
// positioned segment beyond the current sibling count creates a new
// sibling placed after the last one sharing its label.
func (t *Tree) Set(path string, value *string) error {
	parsed, err := configpath.Parse(path)
	if err != nil {
		return err
	}
	if parsed.IsRoot() {
		return fmt.Errorf("set %s: cannot set the root", path)
	}
	node := t.root
	for _, raw := range parsed.Segments() {
		if strings.Contains(raw, configpath.Wildcard) {
			return fmt.Errorf("set %s: %w", path, ErrWildcard)
		}
		next, err := node.child(configpath.ParseSegment(raw))
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
		node = next
	}
	node.value = cloneValue(value)
	return nil
}

// Snapshot lists every node in document order.
func (t *Tree) Snapshot() []Entry {
	var entries []Entry
	t.root.walk("", func(path string, node *treeNode) {
		entries = append(entries, Entry{Path: path, Value: cloneValue(node.value)})
	})
	return entries
}

// Len returns the number of nodes below the root.
func (t *Tree) Len() int {
	count := 0
	t.root.walk("", func(string, *treeNode) { count++ })
	return count
}

func (t *Tree) locate(pattern string) ([]located, error) {
	parsed, err := configpath.Parse(pattern)
	if err != nil {
		return nil, err
	}
	current := []located{{node: t.root}}
	for _, raw := range parsed.Segments() {
		var next []located
		for _, entry := range current {
			next = append(next, entry.node.matchChildren(raw, entry.path)...)
		}
		if len(next) == 0 {
			return nil, nil
		}
		current = next
	}
	if parsed.IsRoot() {
		return []located{{node: t.root, path: configpath.Separator}}, nil
	}
	return current, nil
}

func (t *Tree) single(path string) (*treeNode, error) {
	found, err := t.locate(path)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0].node, nil
	default:
		return nil, ErrAmbiguous
	}
}

// matchChildren returns the children of n selected by one pattern
// segment.
func (n *treeNode) matchChildren(raw, prefix string) []located {
	var selected []located
	if raw == configpath.Wildcard {
		for _, child := range n.children {
			selected = append(selected, located{node: child, path: prefix + configpath.Separator + n.segmentName(child)})
		}
		return selected
	}
	segment := configpath.ParseSegment(raw)
	position := 0
	for _, child := range n.children {
		if child.label != segment.Label {
			continue
		}
		position++
		if segment.Index != 0 && segment.Index != position {
			continue
		}
		selected = append(selected, located{node: child, path: prefix + configpath.Separator + n.segmentName(child)})
	}
	return selected
}

// child resolves one write segment below n, creating it if needed.
func (n *treeNode) child(segment configpath.Segment) (*treeNode, error) {
	var same []*treeNode
	last := -1
	for i, child := range n.children {
		if child.label == segment.Label {
			same = append(same, child)
			last = i
		}
	}
	switch {
	case segment.Index == 0 && len(same) == 1:
		return same[0], nil
	case segment.Index == 0 && len(same) > 1:
		return nil, fmt.Errorf("%q: %w", segment.Label, ErrAmbiguous)
	case segment.Index > 0 && segment.Index <= len(same):
		return same[segment.Index-1], nil
	}

	created := &treeNode{label: segment.Label}
	if last < 0 {
		n.children = append(n.children, created)
		return created, nil
	}
	n.children = append(n.children, nil)
	copy(n.children[last+2:], n.children[last+1:])
	n.children[last+1] = created
	return created, nil
}

// segmentName renders child's segment: its label, plus its position
// when siblings share the label.
func (n *treeNode) segmentName(child *treeNode) string {
	count, position := 0, 0
	for _, sibling := range n.children {
		if sibling.label != child.label {
			continue
		}
		count++
		if sibling == child {
			position = count
		}
	}
	if count > 1 {
		return configpath.Segment{Label: child.label, Index: position}.String()
	}
	return child.label
}

func (n *treeNode) walk(prefix string, visit func(path string, node *treeNode)) {
	for _, child := range n.children {
		path := prefix + configpath.Separator + n.segmentName(child)
		visit(path, child)
		child.walk(path, visit)
	}
}
