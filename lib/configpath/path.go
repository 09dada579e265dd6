// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package configpath

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Separator divides path segments.
	Separator = "/"

	// Wildcard matches exactly one segment.
	Wildcard = "*"

	// CommentMarker appears in the label of comment nodes.
	CommentMarker = "#"
)

// Path is a parsed, rooted store path. The zero value is the root.
type Path struct {
	segments []string
}

// Parse splits a rooted path into segments. The path must start with
// the separator and must not contain empty segments (a single trailing
// separator is tolerated).
func Parse(raw string) (Path, error) {
	if !strings.HasPrefix(raw, Separator) {
		return Path{}, fmt.Errorf("path %q is not rooted", raw)
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(raw, Separator), Separator)
	if trimmed == "" {
		return Path{}, nil
	}
	segments := strings.Split(trimmed, Separator)
	for _, segment := range segments {
		if segment == "" {
			return Path{}, fmt.Errorf("path %q contains an empty segment", raw)
		}
	}
	return Path{segments: segments}, nil
}

// MustParse is Parse for compile-time constant paths. Panics on error.
func MustParse(raw string) Path {
	path, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return path
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Child returns p extended by one segment.
func (p Path) Child(segment string) Path {
	segments := make([]string, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	return Path{segments: append(segments, segment)}
}

// Children returns the pattern matching every direct child of p.
func (p Path) Children() Path {
	return p.Child(Wildcard)
}

// Last returns the terminal segment, or "" for the root.
func (p Path) Last() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// String renders the path in store syntax.
func (p Path) String() string {
	if len(p.segments) == 0 {
		return Separator
	}
	return Separator + strings.Join(p.segments, Separator)
}

// Join appends raw segments to a rooted path string without parsing.
func Join(root string, segments ...string) string {
	var builder strings.Builder
	builder.WriteString(strings.TrimSuffix(root, Separator))
	for _, segment := range segments {
		builder.WriteString(Separator)
		builder.WriteString(segment)
	}
	return builder.String()
}

// IsComment reports whether any segment of raw carries the comment
// marker.
func IsComment(raw string) bool {
	return strings.Contains(raw, CommentMarker)
}

// MembersAfter returns the segments of raw that follow the first
// segment equal to rootSegment. Returns nil when rootSegment does not
// occur. The comparison is per segment, so a root segment of
// "interfaces" does not match "interfaces.d".
func MembersAfter(raw, rootSegment string) []string {
	segments := strings.Split(strings.TrimPrefix(raw, Separator), Separator)
	for i, segment := range segments {
		if segment != rootSegment {
			continue
		}
		var members []string
		for _, member := range segments[i+1:] {
			if member != "" {
				members = append(members, member)
			}
		}
		return members
	}
	return nil
}

// Segment is one path segment split into its label and position.
type Segment struct {
	Label string
	// Index is the 1-based sibling position, or 0 when the segment
	// carries no position.
	Index int
}

// ParseSegment splits "label[n]" into its parts. Segments without a
// numeric position suffix are returned with Index 0.
func ParseSegment(raw string) Segment {
	open := strings.LastIndex(raw, "[")
	if open <= 0 || !strings.HasSuffix(raw, "]") {
		return Segment{Label: raw}
	}
	index, err := strconv.Atoi(raw[open+1 : len(raw)-1])
	if err != nil || index < 1 {
		return Segment{Label: raw}
	}
	return Segment{Label: raw[:open], Index: index}
}

// String renders the segment, including the position when set.
func (s Segment) String() string {
	if s.Index == 0 {
		return s.Label
	}
	return s.Label + "[" + strconv.Itoa(s.Index) + "]"
}

// Indexed returns the segment with the given position.
func (s Segment) Indexed(index int) Segment {
	return Segment{Label: s.Label, Index: index}
}

// IsArrayElement reports whether raw ends in a "name[index]" segment.
func IsArrayElement(raw string) bool {
	last := raw
	if separator := strings.LastIndex(raw, Separator); separator >= 0 {
		last = raw[separator+1:]
	}
	return ParseSegment(last).Index > 0
}

// ValidateMember checks that name can be used as a single segment when
// writing below a feature root: it must be non-empty, must not contain
// the separator and must not be a wildcard or a relative step.
func ValidateMember(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty member name")
	case strings.Contains(name, Separator):
		return fmt.Errorf("member name %q contains %q", name, Separator)
	case strings.Contains(name, Wildcard):
		return fmt.Errorf("member name %q contains a wildcard", name)
	case name == "." || name == "..":
		return fmt.Errorf("member name %q is a relative step", name)
	}
	return nil
}
