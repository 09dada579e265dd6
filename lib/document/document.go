// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package document is the unique-keyed tree exchanged in SRR
// artifacts. A Document is a Node; the concrete variants are Scalar,
// *Object, ArrayMarker and RepeatedGroup.
//
// Object members are unique by name. Siblings that share a key in the
// configuration store are held as a RepeatedGroup under that key, so
// the model never needs duplicate member names. The text form (see
// Marshal and Unmarshal) writes a group of two or more elements as
// repeated keys, which is what the collision codec rewrites.
package document

import "github.com/fleetconf/srr/lib/configpath"

// Node is a Document value.
type Node interface {
	node()
}

// Scalar is a leaf value.
type Scalar string

// ArrayMarker is a valueless array element whose children have not
// been seen. Name is the element label without its position.
type ArrayMarker struct {
	Name string
}

// RepeatedGroup holds the values of siblings sharing one key. Element
// i corresponds to store position i+1.
type RepeatedGroup []Node

// Member is one named entry of an Object.
type Member struct {
	Name  string
	Value Node
}

// Object is an ordered mapping with unique member names. The zero
// value is an empty object ready to use.
type Object struct {
	members []Member
	index   map[string]int
}

func (Scalar) node()        {}
func (ArrayMarker) node()   {}
func (RepeatedGroup) node() {}
func (*Object) node()       {}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{}
}

// Len returns the number of members.
func (o *Object) Len() int { return len(o.members) }

// Get returns the member value named name.
func (o *Object) Get(name string) (Node, bool) {
	position, ok := o.index[name]
	if !ok {
		return nil, false
	}
	return o.members[position].Value, true
}

// Set replaces the member named name in place, or appends it.
func (o *Object) Set(name string, value Node) {
	if position, ok := o.index[name]; ok {
		o.members[position].Value = value
		return
	}
	if o.index == nil {
		o.index = make(map[string]int)
	}
	o.index[name] = len(o.members)
	o.members = append(o.members, Member{Name: name, Value: value})
}

// Members returns the members in insertion order. The slice is a copy;
// the values are shared.
func (o *Object) Members() []Member {
	return append([]Member(nil), o.members...)
}

// Names returns member names in insertion order.
func (o *Object) Names() []string {
	names := make([]string, len(o.members))
	for i, member := range o.members {
		names[i] = member.Name
	}
	return names
}

// Equal reports structural equality: member order is ignored, group
// element order is not. go-cmp picks this method up, so cmp.Diff on
// Documents uses the same rule.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	if len(o.members) != len(other.members) {
		return false
	}
	for _, member := range o.members {
		value, ok := other.Get(member.Name)
		if !ok || !Equal(member.Value, value) {
			return false
		}
	}
	return true
}

// Equal reports whether two Documents are structurally equal.
func Equal(a, b Node) bool {
	switch a := a.(type) {
	case Scalar:
		b, ok := b.(Scalar)
		return ok && a == b
	case ArrayMarker:
		b, ok := b.(ArrayMarker)
		return ok && a == b
	case *Object:
		b, ok := b.(*Object)
		return ok && a.Equal(b)
	case RepeatedGroup:
		b, ok := b.(RepeatedGroup)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return false
}

// markerName derives an ArrayMarker name from a member key.
func markerName(key string) string {
	return configpath.ParseSegment(key).Label
}
