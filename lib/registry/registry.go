// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maps feature names to where their configuration
// lives and how it is carried in artifacts.
//
// A Table is immutable. A Registry holds the current Table and swaps it
// atomically when the feature file changes, so a request that took a
// Table keeps resolving against it until it finishes.
package registry

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fleetconf/srr/lib/config"
)

// Class says how a feature is carried in artifacts.
type Class int

const (
	// Tree features are read node by node from the store.
	Tree Class = iota
	// Opaque features are carried as one whole file.
	Opaque
)

func (c Class) String() string {
	switch c {
	case Tree:
		return "tree"
	case Opaque:
		return "opaque"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// ParseClass parses "tree" or "opaque".
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(s) {
	case "tree", "":
		return Tree, nil
	case "opaque", "bulk":
		return Opaque, nil
	}
	return 0, fmt.Errorf("unknown feature class %q", s)
}

// StorePrefix is prepended to a file path to get its store root.
const StorePrefix = "/files"

// Feature describes one named unit of configuration.
type Feature struct {
	Name string

	// StoreRoot is the store path of the feature's subtree.
	StoreRoot string

	// FilePath is the configuration file on disk.
	FilePath string

	Class Class

	// TimeSync marks the feature whose artifacts carry the time-sync
	// service state.
	TimeSync bool
}

// RootSegment is the last segment of the store root. Member chains in
// Documents start after it.
func (f Feature) RootSegment() string {
	return path.Base(f.StoreRoot)
}

// RootPattern matches the direct children of the store root.
func (f Feature) RootPattern() string {
	return strings.TrimSuffix(f.StoreRoot, "/") + "/*"
}

// UnknownFeatureError is returned by Resolve for names not in the table.
type UnknownFeatureError struct {
	Name string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("unknown feature %q", e.Name)
}

// Table is an immutable set of features.
type Table struct {
	features map[string]Feature
	names    []string
}

// NewTable validates features and builds a Table. Store roots are
// derived from file paths when empty.
func NewTable(features []Feature) (*Table, error) {
	table := &Table{features: make(map[string]Feature, len(features))}
	for _, feature := range features {
		if feature.Name == "" {
			return nil, fmt.Errorf("feature with empty name")
		}
		if _, exists := table.features[feature.Name]; exists {
			return nil, fmt.Errorf("feature %q defined twice", feature.Name)
		}
		if !path.IsAbs(feature.FilePath) {
			return nil, fmt.Errorf("feature %q: file path %q is not absolute", feature.Name, feature.FilePath)
		}
		if feature.StoreRoot == "" {
			feature.StoreRoot = StorePrefix + path.Clean(feature.FilePath)
		}
		if !strings.HasPrefix(feature.StoreRoot, "/") || strings.Contains(feature.StoreRoot, "*") {
			return nil, fmt.Errorf("feature %q: invalid store root %q", feature.Name, feature.StoreRoot)
		}
		table.features[feature.Name] = feature
		table.names = append(table.names, feature.Name)
	}
	sort.Strings(table.names)
	return table, nil
}

// Resolve returns the feature named name.
func (t *Table) Resolve(name string) (Feature, error) {
	feature, ok := t.features[name]
	if !ok {
		return Feature{}, &UnknownFeatureError{Name: name}
	}
	return feature, nil
}

// Names returns the feature names in sorted order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Features returns every feature sorted by name.
func (t *Table) Features() []Feature {
	features := make([]Feature, len(t.names))
	for i, name := range t.names {
		features[i] = t.features[name]
	}
	return features
}

// TreeRoots returns the store roots of tree features.
func (t *Table) TreeRoots() []string {
	var roots []string
	for _, name := range t.names {
		if feature := t.features[name]; feature.Class == Tree {
			roots = append(roots, feature.StoreRoot)
		}
	}
	return roots
}

// Current returns t, so a fixed Table can stand in for a Registry.
func (t *Table) Current() *Table { return t }

// Registry holds the current Table.
type Registry struct {
	current atomic.Pointer[Table]
	logger  *slog.Logger
}

// New returns a Registry serving table.
func New(table *Table, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := &Registry{logger: logger}
	registry.current.Store(table)
	return registry
}

// Current returns the table in effect.
func (r *Registry) Current() *Table {
	return r.current.Load()
}

// Replace swaps in a new table.
func (r *Registry) Replace(table *Table) {
	previous := r.current.Swap(table)
	r.logger.Info("feature table replaced", "before", len(previous.names), "after", len(table.names))
}

// fileEntry is one feature in a feature file.
type fileEntry struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	StoreRoot string `yaml:"store_root"`
	Class     string `yaml:"class"`
	TimeSync  bool   `yaml:"time_sync"`
}

type fileContents struct {
	Features []fileEntry `yaml:"features"`
}

// LoadFile reads a feature table from a YAML or JSONC file:
//
//	features:
//	  - name: network
//	    path: /etc/network/interfaces
//	    class: tree
func LoadFile(filePath string) (*Table, error) {
	var contents fileContents
	if err := config.DecodeFile(filePath, &contents); err != nil {
		return nil, fmt.Errorf("loading feature table: %w", err)
	}
	if len(contents.Features) == 0 {
		return nil, fmt.Errorf("feature table %s lists no features", filePath)
	}
	features := make([]Feature, 0, len(contents.Features))
	for _, entry := range contents.Features {
		class, err := ParseClass(entry.Class)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", entry.Name, err)
		}
		features = append(features, Feature{
			Name:      entry.Name,
			StoreRoot: entry.StoreRoot,
			FilePath:  entry.Path,
			Class:     class,
			TimeSync:  entry.TimeSync,
		})
	}
	table, err := NewTable(features)
	if err != nil {
		return nil, fmt.Errorf("feature table %s: %w", filePath, err)
	}
	return table, nil
}

// Defaults is the appliance's built-in feature table.
func Defaults() []Feature {
	return []Feature{
		{Name: "monitoring", FilePath: "/etc/fty-nut/fty-nut.cfg", Class: Tree},
		{Name: "notification", FilePath: "/etc/fty-email/fty-email.cfg", Class: Tree},
		{Name: "automation-settings", FilePath: "/etc/fty/etn-automation.cfg", Class: Tree},
		{Name: "user-session", FilePath: "/etc/fty/fty-session.cfg", Class: Tree},
		{Name: "etn-mass-management", FilePath: "/var/lib/fty/etn-mass-management/settings.cfg", Class: Tree},
		{Name: "network", FilePath: "/etc/network/interfaces", Class: Tree},
		{Name: "discovery-ng-settings", FilePath: "/etc/fty-discovery-ng/config-discovery.conf", Class: Opaque},
		{Name: "discovery-ng-agent-settings", FilePath: "/etc/fty-discovery-ng/discovery.conf", Class: Opaque},
		{Name: "network-agent-settings", FilePath: "/var/lib/fty/etn-ipm2-network/etn-ipm2-network.json", Class: Opaque},
		{Name: "network-host-name", FilePath: "/etc/hostname", Class: Opaque},
		{Name: "network-proxy", FilePath: "/etc/default/fty-proxy", Class: Opaque},
		{Name: "timezone-settings", FilePath: "/etc/fty/fty-datetime.cfg", Class: Opaque},
		{Name: "ntp-settings", FilePath: "/etc/ntp.conf", Class: Opaque, TimeSync: true},
	}
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	table, err := NewTable(Defaults())
	if err != nil {
		panic(err)
	}
	return table
}
