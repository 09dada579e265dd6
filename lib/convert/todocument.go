// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package convert maps between the configuration store and Documents.
//
// ToDocument reads one feature's subtree level by level and builds a
// Document; ApplyDocument writes a Document back below a feature root
// and commits once.
//
// Store siblings sharing a label are rendered with positions
// ("iface[2]"). A value-bearing positioned node becomes element i-1 of
// a RepeatedGroup under its plain label, with ArrayMarkers standing in
// for the positions of valueless siblings. Children of a positioned node
// live in an Object under the positioned key, and children of an
// unpositioned value node are lifted to "label[1]", which the store
// resolves to the same node. Both shapes write back to the same store
// paths.
package convert

import (
	"fmt"

	"github.com/fleetconf/srr/lib/configpath"
	"github.com/fleetconf/srr/lib/document"
	"github.com/fleetconf/srr/lib/store"
)

// Matcher is the read side of store.ConfigStore used by ToDocument.
type Matcher interface {
	Match(pattern string) ([]store.MatchedNode, error)
}

// ToDocument builds the Document for the nodes below rootPattern's
// parent. rootPattern is the feature root followed by one wildcard
// segment; member chains start after the first segment equal to
// rootSegment. Comment nodes are skipped.
func ToDocument(source Matcher, rootPattern, rootSegment string) (*document.Object, error) {
	b := &builder{root: document.NewObject()}
	for pattern := rootPattern; ; pattern = configpath.Join(pattern, configpath.Wildcard) {
		matches, err := source.Match(pattern)
		if err != nil {
			return nil, fmt.Errorf("matching %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return b.root, nil
		}
		for _, match := range matches {
			if configpath.IsComment(match.Path) {
				continue
			}
			if err := b.add(match, rootSegment); err != nil {
				return nil, err
			}
		}
	}
}

// builder attaches nodes to the Document by walking each node's member
// chain from the root.
type builder struct {
	root *document.Object
}

func (b *builder) add(match store.MatchedNode, rootSegment string) error {
	chain := configpath.MembersAfter(match.Path, rootSegment)
	if len(chain) == 0 {
		return &ConflictError{Path: match.Path, Reason: fmt.Sprintf("path is outside the feature root %q", rootSegment)}
	}
	parent, err := b.container(match.Path, chain[:len(chain)-1])
	if err != nil {
		return err
	}
	terminal := chain[len(chain)-1]
	if match.Value != nil {
		return attachValue(parent, match, terminal)
	}
	return attachValueless(parent, match, terminal)
}

// container returns the Object addressed by chain, creating Objects and
// replacing markers along the way.
func (b *builder) container(path string, chain []string) (*document.Object, error) {
	current := b.root
	for _, key := range chain {
		next, err := descend(current, key, path)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func descend(parent *document.Object, key, path string) (*document.Object, error) {
	existing, ok := parent.Get(key)
	if !ok {
		child := document.NewObject()
		parent.Set(key, child)
		return child, nil
	}
	switch existing := existing.(type) {
	case *document.Object:
		return existing, nil
	case document.ArrayMarker:
		child := document.NewObject()
		parent.Set(key, child)
		return child, nil
	case document.Scalar:
		segment := configpath.ParseSegment(key)
		if segment.Index != 0 {
			break
		}
		return descend(parent, segment.Indexed(1).String(), path)
	}
	return nil, &ConflictError{Path: path, Reason: fmt.Sprintf("member %q holds a %s and cannot contain children", key, describe(existing))}
}

func attachValue(parent *document.Object, match store.MatchedNode, terminal string) error {
	segment := configpath.ParseSegment(terminal)
	label := match.Label
	if label == "" {
		label = segment.Label
	}
	value := document.Scalar(*match.Value)
	existing, exists := parent.Get(label)

	if segment.Index == 0 {
		if exists {
			return &ConflictError{Path: match.Path, Reason: fmt.Sprintf("member %q already holds a %s", label, describe(existing))}
		}
		parent.Set(label, value)
		return nil
	}

	var group document.RepeatedGroup
	if exists {
		var isGroup bool
		if group, isGroup = existing.(document.RepeatedGroup); !isGroup {
			return &ConflictError{Path: match.Path, Reason: fmt.Sprintf("member %q mixes a %s with repeated values", label, describe(existing))}
		}
	}
	if segment.Index <= len(group) {
		if _, padding := group[segment.Index-1].(document.ArrayMarker); !padding {
			return &ConflictError{Path: match.Path, Reason: fmt.Sprintf("repeated %q position %d attached twice", label, segment.Index)}
		}
		group[segment.Index-1] = value
		parent.Set(label, group)
		return nil
	}
	// Positions held by valueless siblings are padded with markers.
	for len(group) < segment.Index-1 {
		group = append(group, document.ArrayMarker{Name: label})
	}
	parent.Set(label, append(group, value))
	return nil
}

func attachValueless(parent *document.Object, match store.MatchedNode, terminal string) error {
	existing, exists := parent.Get(terminal)
	if exists {
		switch existing.(type) {
		case *document.Object, document.ArrayMarker:
			return nil
		}
		return &ConflictError{Path: match.Path, Reason: fmt.Sprintf("member %q already holds a %s", terminal, describe(existing))}
	}
	if configpath.IsArrayElement(terminal) {
		name := match.Label
		if name == "" {
			name = configpath.ParseSegment(terminal).Label
		}
		parent.Set(terminal, document.ArrayMarker{Name: name})
		return nil
	}
	parent.Set(terminal, document.NewObject())
	return nil
}

func describe(node document.Node) string {
	switch node.(type) {
	case document.Scalar:
		return "value"
	case *document.Object:
		return "object"
	case document.ArrayMarker:
		return "array marker"
	case document.RepeatedGroup:
		return "repeated group"
	}
	return fmt.Sprintf("%T", node)
}
