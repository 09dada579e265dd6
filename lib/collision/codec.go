// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package collision makes repeated sibling keys unique in Document
// text and restores them.
//
// Configuration grammars allow several siblings with one key
// (interface blocks, name servers, list entries). Document text writes
// such a group as repeated keys, which most transports and JSON
// libraries would collapse. Encode renames the i-th occurrence of each
// configured key to a unique key; Decode strips the position again so
// that document.Unmarshal can fold the keys back into a group.
//
// The codec walks the text with a small tokenizer that tracks object
// and array nesting, so only member names are rewritten: a value that
// happens to equal a configured key is left alone.
package collision

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Rule configures one colliding key.
type Rule struct {
	Key string

	// Rename replaces the default "Key#i" encoding with "Rename[i]".
	Rename string
}

// DefaultRules are the keys known to repeat in the appliance's
// configuration files.
var DefaultRules = []Rule{
	{Key: "iface", Rename: "ifacename"},
	{Key: "entry"},
	{Key: "dns-nameserver"},
	{Key: "string"},
}

// Codec encodes and decodes Document text for a closed set of keys.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	rules   map[string]Rule
	renames map[string]string
}

// New builds a Codec. Keys must be unique, non-empty and free of
// quoting, position and marker characters.
func New(rules []Rule) (*Codec, error) {
	codec := &Codec{
		rules:   make(map[string]Rule, len(rules)),
		renames: make(map[string]string),
	}
	for _, rule := range rules {
		if err := validateName(rule.Key); err != nil {
			return nil, fmt.Errorf("collision key: %w", err)
		}
		if _, exists := codec.rules[rule.Key]; exists {
			return nil, fmt.Errorf("collision key %q configured twice", rule.Key)
		}
		if rule.Rename != "" {
			if err := validateName(rule.Rename); err != nil {
				return nil, fmt.Errorf("collision rename for %q: %w", rule.Key, err)
			}
			if _, exists := codec.renames[rule.Rename]; exists {
				return nil, fmt.Errorf("collision rename %q configured twice", rule.Rename)
			}
			codec.renames[rule.Rename] = rule.Key
		}
		codec.rules[rule.Key] = rule
	}
	return codec, nil
}

// Default returns a Codec for DefaultRules.
func Default() *Codec {
	codec, err := New(DefaultRules)
	if err != nil {
		panic(err)
	}
	return codec
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name")
	case strings.ContainsAny(name, "\"\\#[]/"):
		return fmt.Errorf("name %q contains a reserved character", name)
	case strings.HasSuffix(name, "."):
		return fmt.Errorf("name %q ends in a dot", name)
	}
	return nil
}

// Keys returns the configured colliding keys.
func (c *Codec) Keys() []string {
	keys := make([]string, 0, len(c.rules))
	for key := range c.rules {
		keys = append(keys, key)
	}
	return keys
}

// Encode rewrites every occurrence of a configured key to a unique
// name. Occurrences are numbered from 1 per key across the whole text.
// Other member names are copied unchanged, repeated or not; Unmarshal
// folds them into a group. Malformed text is copied through from the
// point where it stops being tokenizable.
func (c *Codec) Encode(text string) string {
	counters := make(map[string]int)
	return rewriteKeys(text, func(key string) string {
		rule, colliding := c.rules[key]
		if !colliding {
			return key
		}
		counters[key]++
		if rule.Rename != "" {
			return rule.Rename + "[" + strconv.Itoa(counters[key]) + "]"
		}
		return key + "#" + strconv.Itoa(counters[key])
	})
}

// Decode strips positions from encoded keys, accepting "K#i", the
// legacy "K.#i" and the configured "Rename[i]" shapes. The result may
// contain repeated member names.
func (c *Codec) Decode(text string) string {
	return rewriteKeys(text, func(key string) string {
		if original, ok := c.decodeKey(key); ok {
			return original
		}
		return key
	})
}

func (c *Codec) decodeKey(key string) (string, bool) {
	if open := strings.LastIndexByte(key, '['); open > 0 && strings.HasSuffix(key, "]") {
		if original, ok := c.renames[key[:open]]; ok && isPosition(key[open+1:len(key)-1]) {
			return original, true
		}
	}
	marker := strings.LastIndexByte(key, '#')
	if marker <= 0 || !isPosition(key[marker+1:]) {
		return "", false
	}
	base := strings.TrimSuffix(key[:marker], ".")
	if _, ok := c.rules[base]; !ok {
		return "", false
	}
	return base, true
}

func isPosition(digits string) bool {
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// frame is one open object or array.
type frame struct {
	object    bool
	expectKey bool
}

// rewriteKeys copies text, passing every member name through rewrite.
func rewriteKeys(text string, rewrite func(key string) string) string {
	var out strings.Builder
	out.Grow(len(text))
	var stack []*frame

	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for i := 0; i < len(text); {
		switch text[i] {
		case '{':
			stack = append(stack, &frame{object: true, expectKey: true})
		case '[':
			stack = append(stack, &frame{})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if current := top(); current != nil && current.object {
				current.expectKey = true
			}
		case '"':
			end := stringEnd(text, i)
			if end < 0 {
				out.WriteString(text[i:])
				return out.String()
			}
			raw := text[i:end]
			current := top()
			if current == nil || !current.object || !current.expectKey {
				out.WriteString(raw)
				i = end
				continue
			}
			current.expectKey = false
			var key string
			if err := json.Unmarshal([]byte(raw), &key); err != nil {
				out.WriteString(raw)
				i = end
				continue
			}
			if replacement := rewrite(key); replacement == key {
				out.WriteString(raw)
			} else {
				out.WriteString(strconv.Quote(replacement))
			}
			i = end
			continue
		}
		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

// stringEnd returns the offset just past the string literal starting
// at text[start], or -1 when it is unterminated.
func stringEnd(text string, start int) int {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return -1
}
