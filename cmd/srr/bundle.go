// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetconf/srr/lib/srr"
)

// bundle is the file written by save and read by restore.
type bundle struct {
	SavedAt  time.Time              `json:"saved_at,omitempty" yaml:"saved_at,omitempty"`
	Agent    string                 `json:"agent,omitempty" yaml:"agent,omitempty"`
	Features map[string]bundleEntry `json:"features" yaml:"features"`
}

type bundleEntry struct {
	Version string `json:"version" yaml:"version"`
	Data    string `json:"data" yaml:"data"`
}

func newBundle(artifacts map[string]srr.Artifact) *bundle {
	b := &bundle{Features: make(map[string]bundleEntry, len(artifacts))}
	for name, artifact := range artifacts {
		b.Features[name] = bundleEntry{Version: artifact.Version, Data: artifact.Data}
	}
	return b
}

// Artifacts returns the entries named in only, or every entry when
// only is empty.
func (b *bundle) Artifacts(only []string) (map[string]srr.Artifact, error) {
	artifacts := make(map[string]srr.Artifact)
	if len(only) == 0 {
		for name, entry := range b.Features {
			artifacts[name] = srr.Artifact{Version: entry.Version, Data: entry.Data}
		}
		return artifacts, nil
	}
	for _, name := range only {
		entry, ok := b.Features[name]
		if !ok {
			return nil, fmt.Errorf("bundle has no feature %q (have %s)", name, strings.Join(b.names(), ", "))
		}
		artifacts[name] = srr.Artifact{Version: entry.Version, Data: entry.Data}
	}
	return artifacts, nil
}

func (b *bundle) names() []string {
	names := make([]string, 0, len(b.Features))
	for name := range b.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bundleFormat picks json for .json paths and yaml otherwise.
func bundleFormat(path, format string) string {
	if format != "" {
		return format
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "yaml"
}

func encodeBundle(w io.Writer, b *bundle, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(b)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(b); err != nil {
			return err
		}
		return encoder.Close()
	}
	return fmt.Errorf("unknown bundle format %q (want yaml or json)", format)
}

// decodeBundle accepts YAML or JSON regardless of the file name; JSON
// is valid YAML.
func decodeBundle(data []byte) (*bundle, error) {
	var b bundle
	trimmed := bytes.TrimSpace(data)
	var err error
	if bytes.HasPrefix(trimmed, []byte("{")) {
		err = json.Unmarshal(trimmed, &b)
	} else {
		err = yaml.Unmarshal(trimmed, &b)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}
	if len(b.Features) == 0 {
		return nil, fmt.Errorf("bundle lists no features")
	}
	return &b, nil
}

// writeBundle writes to path, or to stdout when path is "-". Files are
// written to a temporary sibling and renamed into place.
func writeBundle(stdout io.Writer, path string, b *bundle, format string) error {
	if path == "-" {
		return encodeBundle(stdout, b, format)
	}
	var buffer bytes.Buffer
	if err := encodeBundle(&buffer, b, format); err != nil {
		return err
	}
	temporary, err := os.CreateTemp(filepath.Dir(path), ".srr-bundle-*")
	if err != nil {
		return fmt.Errorf("creating bundle file: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(buffer.Bytes()); err != nil {
		temporary.Close()
		return fmt.Errorf("writing bundle file: %w", err)
	}
	if err := temporary.Chmod(0600); err != nil {
		temporary.Close()
		return fmt.Errorf("setting bundle file mode: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing bundle file: %w", err)
	}
	return os.Rename(temporary.Name(), path)
}

func readBundle(stdin io.Reader, path string) (*bundle, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	return decodeBundle(data)
}
