// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Text form
//
//	Scalar           "value"
//	*Object          {"name": ..., ...}
//	ArrayMarker      []
//	RepeatedGroup    "key": v1, "key": v2 ... when it has two or more
//	                 elements, ["v1"] when it has one
//
// Unmarshal folds repeated keys back into a RepeatedGroup and reads a
// non-empty array as a group. Numbers and booleans are accepted and
// kept as their literal text.

// SyntaxError reports text that is not a valid Document.
type SyntaxError struct {
	Offset int64
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("document syntax error at offset %d: %s", e.Offset, e.Detail)
}

// Marshal renders doc in text form.
func Marshal(doc Node) ([]byte, error) {
	var buffer bytes.Buffer
	if err := writeNode(&buffer, doc); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func writeNode(buffer *bytes.Buffer, value Node) error {
	switch value := value.(type) {
	case Scalar:
		writeString(buffer, string(value))
	case ArrayMarker:
		buffer.WriteString("[]")
	case *Object:
		buffer.WriteByte('{')
		for i, member := range value.members {
			if i > 0 {
				buffer.WriteByte(',')
			}
			if err := writeMember(buffer, member); err != nil {
				return err
			}
		}
		buffer.WriteByte('}')
	case RepeatedGroup:
		// Only reached for a group outside an object or nested in
		// another group.
		return fmt.Errorf("repeated group cannot appear outside an object member")
	default:
		return fmt.Errorf("unknown document node %T", value)
	}
	return nil
}

func writeMember(buffer *bytes.Buffer, member Member) error {
	group, ok := member.Value.(RepeatedGroup)
	if !ok {
		writeString(buffer, member.Name)
		buffer.WriteByte(':')
		return writeNode(buffer, member.Value)
	}
	if len(group) < 2 {
		writeString(buffer, member.Name)
		buffer.WriteString(":[")
		for _, element := range group {
			if err := writeElement(buffer, element); err != nil {
				return fmt.Errorf("member %q: %w", member.Name, err)
			}
		}
		buffer.WriteByte(']')
		return nil
	}
	for i, element := range group {
		if i > 0 {
			buffer.WriteByte(',')
		}
		writeString(buffer, member.Name)
		buffer.WriteByte(':')
		if err := writeElement(buffer, element); err != nil {
			return fmt.Errorf("member %q: %w", member.Name, err)
		}
	}
	return nil
}

func writeElement(buffer *bytes.Buffer, element Node) error {
	if _, nested := element.(RepeatedGroup); nested {
		return fmt.Errorf("nested repeated group")
	}
	return writeNode(buffer, element)
}

func writeString(buffer *bytes.Buffer, value string) {
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	// Encode cannot fail for a string.
	_ = encoder.Encode(value)
	buffer.Truncate(buffer.Len() - 1) // trailing newline
}

// Unmarshal parses text form. The top level must be an object.
func Unmarshal(data []byte) (*Object, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return nil, syntaxError(decoder, err)
	}
	if token != json.Delim('{') {
		return nil, &SyntaxError{Offset: decoder.InputOffset(), Detail: "top level is not an object"}
	}
	object, err := readObject(decoder)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, &SyntaxError{Offset: decoder.InputOffset(), Detail: "trailing data after document"}
	}
	return object, nil
}

// readObject reads members up to and including the closing brace.
func readObject(decoder *json.Decoder) (*Object, error) {
	object := NewObject()
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, syntaxError(decoder, err)
		}
		name, ok := token.(string)
		if !ok {
			return nil, &SyntaxError{Offset: decoder.InputOffset(), Detail: fmt.Sprintf("expected member name, got %v", token)}
		}
		value, err := readValue(decoder, name)
		if err != nil {
			return nil, err
		}
		addMember(object, name, value)
	}
	if _, err := decoder.Token(); err != nil {
		return nil, syntaxError(decoder, err)
	}
	return object, nil
}

// addMember folds a repeated key into a RepeatedGroup.
func addMember(object *Object, name string, value Node) {
	existing, ok := object.Get(name)
	if !ok {
		object.Set(name, value)
		return
	}
	group, isGroup := existing.(RepeatedGroup)
	if !isGroup {
		group = RepeatedGroup{existing}
	}
	if more, ok := value.(RepeatedGroup); ok {
		group = append(group, more...)
	} else {
		group = append(group, value)
	}
	object.Set(name, group)
}

func readValue(decoder *json.Decoder, name string) (Node, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, syntaxError(decoder, err)
	}
	switch token := token.(type) {
	case string:
		return Scalar(token), nil
	case json.Number:
		return Scalar(token.String()), nil
	case bool:
		if token {
			return Scalar("true"), nil
		}
		return Scalar("false"), nil
	case nil:
		return nil, &SyntaxError{Offset: decoder.InputOffset(), Detail: fmt.Sprintf("member %q is null", name)}
	case json.Delim:
		switch token {
		case '{':
			return readObject(decoder)
		case '[':
			return readArray(decoder, name)
		}
	}
	return nil, &SyntaxError{Offset: decoder.InputOffset(), Detail: fmt.Sprintf("unexpected token %v", token)}
}

func readArray(decoder *json.Decoder, name string) (Node, error) {
	var group RepeatedGroup
	for decoder.More() {
		element, err := readValue(decoder, name)
		if err != nil {
			return nil, err
		}
		if _, nested := element.(RepeatedGroup); nested {
			return nil, &SyntaxError{Offset: decoder.InputOffset(), Detail: fmt.Sprintf("member %q nests arrays", name)}
		}
		group = append(group, element)
	}
	if _, err := decoder.Token(); err != nil {
		return nil, syntaxError(decoder, err)
	}
	if len(group) == 0 {
		return ArrayMarker{Name: markerName(name)}, nil
	}
	return group, nil
}

func syntaxError(decoder *json.Decoder, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &SyntaxError{Offset: decoder.InputOffset(), Detail: err.Error()}
}

// Pretty renders doc indented, for logs and operator output.
// Unmarshal accepts its output.
func Pretty(doc Node) (string, error) {
	compact, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	var buffer bytes.Buffer
	if err := json.Indent(&buffer, compact, "", "  "); err != nil {
		return "", err
	}
	return strings.TrimSpace(buffer.String()), nil
}
