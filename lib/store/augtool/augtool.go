// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package augtool implements a store backend over the augtool(1) CLI.
// Load runs one "print" per configured root and parses the listing;
// Save replays the pending changes as a batch script ending in "save".
// Every invocation is a separate process, so the backend holds no
// augeas state between calls.
package augtool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fleetconf/srr/lib/store"
)

// DefaultTimeout bounds a single augtool invocation.
const DefaultTimeout = 30 * time.Second

// Runner executes augtool with the given script on stdin and returns
// stdout.
type Runner interface {
	Run(ctx context.Context, script string, args ...string) (string, error)
}

// ExecRunner runs a real augtool binary.
type ExecRunner struct {
	// Binary is the augtool executable. Empty means "augtool" on PATH.
	Binary string
}

// Run implements Runner. Stderr is captured separately and included in
// the error on failure.
func (r ExecRunner) Run(ctx context.Context, script string, args ...string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "augtool"
	}
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binary, args...)
	command.Stdin = strings.NewReader(script)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w (stderr: %s)",
			binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Config configures a Backend.
type Config struct {
	// Roots returns the store roots to load, e.g. "/files/etc/hostname".
	// It is called on every Load so that registry reloads take effect.
	Roots func() []string

	// FilesystemRoot is passed as augtool -r when set.
	FilesystemRoot string

	// Runner defaults to ExecRunner{}.
	Runner Runner

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Backend is a store.Backend driving augtool.
type Backend struct {
	roots   func() []string
	runner  Runner
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Backend.
func New(config Config) *Backend {
	backend := &Backend{
		roots:   config.Roots,
		runner:  config.Runner,
		timeout: config.Timeout,
		logger:  config.Logger,
	}
	if backend.roots == nil {
		backend.roots = func() []string { return nil }
	}
	if backend.runner == nil {
		backend.runner = ExecRunner{}
	}
	if backend.timeout <= 0 {
		backend.timeout = DefaultTimeout
	}
	if backend.logger == nil {
		backend.logger = slog.New(slog.DiscardHandler)
	}
	if config.FilesystemRoot != "" {
		backend.args = append(backend.args, "-r", config.FilesystemRoot)
	}
	return backend
}

// Load implements store.Backend.
func (b *Backend) Load(ctx context.Context) ([]store.Entry, error) {
	roots := b.roots()
	if len(roots) == 0 {
		return nil, nil
	}
	var script strings.Builder
	for _, root := range roots {
		fmt.Fprintf(&script, "print %s\n", root)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	output, err := b.runner.Run(ctx, script.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("loading %d roots: %w", len(roots), err)
	}
	entries, err := ParsePrint(output)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("augtool load", "roots", len(roots), "entries", len(entries))
	return entries, nil
}

// Save implements store.Backend. Only changes are replayed; augeas
// writes every file whose tree was touched.
func (b *Backend) Save(ctx context.Context, changes []store.Entry, _ []store.Entry) error {
	if len(changes) == 0 {
		return nil
	}
	script := SaveScript(changes)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	output, err := b.runner.Run(ctx, script, b.args...)
	if err != nil {
		return fmt.Errorf("saving %d changes: %w", len(changes), err)
	}
	if failure := scriptFailure(output); failure != "" {
		return fmt.Errorf("saving %d changes: %s", len(changes), failure)
	}
	b.logger.Debug("augtool save", "changes", len(changes))
	return nil
}

// SaveScript renders changes as an augtool batch script.
func SaveScript(changes []store.Entry) string {
	var script strings.Builder
	for _, change := range changes {
		if change.Value == nil {
			fmt.Fprintf(&script, "clear %s\n", change.Path)
			continue
		}
		fmt.Fprintf(&script, "set %s %s\n", change.Path, strconv.Quote(*change.Value))
	}
	script.WriteString("save\n")
	return script.String()
}

// ParsePrint parses the output of augtool "print". Each line is either
// a bare path (valueless node) or `path = "value"`.
func ParsePrint(output string) ([]store.Entry, error) {
	var entries []store.Entry
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			return nil, fmt.Errorf("augtool output line %d: unexpected %q", lineNumber, line)
		}
		path, raw, hasValue := strings.Cut(line, " = ")
		if !hasValue {
			entries = append(entries, store.Entry{Path: line})
			continue
		}
		value, err := strconv.Unquote(raw)
		if err != nil {
			// augtool leaves some values unquoted.
			value = raw
		}
		entries = append(entries, store.Entry{Path: path, Value: &value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading augtool output: %w", err)
	}
	return entries, nil
}

// scriptFailure returns the first error line augtool printed, if any.
// Batch mode does not always exit non-zero when a command fails.
func scriptFailure(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "error:") || strings.Contains(line, "saving failed") {
			return line
		}
	}
	return ""
}
