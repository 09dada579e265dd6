// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fleetconf/srr/lib/codec"
	"github.com/fleetconf/srr/lib/service"
	"github.com/fleetconf/srr/lib/srr"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// newLogger logs to stderr as text on a terminal and as JSON when
// stderr is redirected.
func newLogger(verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}

// defaultFormat is text on a terminal and JSON otherwise.
func defaultFormat(file *os.File) string {
	if term.IsTerminal(int(file.Fd())) {
		return formatText
	}
	return formatJSON
}

// featureReport is one row of a save or restore report.
type featureReport struct {
	Feature string `json:"feature" yaml:"feature"`
	Status  string `json:"status" yaml:"status"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

type report struct {
	Operation string          `json:"operation" yaml:"operation"`
	Outcome   string          `json:"outcome" yaml:"outcome"`
	Features  []featureReport `json:"features" yaml:"features"`
}

func saveReport(response *srr.SaveResponse) *report {
	r := &report{Operation: "save", Outcome: string(response.Outcome)}
	for name, saved := range response.Features {
		row := featureReport{Feature: name, Status: string(saved.Status.Status), Message: saved.Status.Message}
		if saved.Artifact != nil {
			row.Version = saved.Artifact.Version
		}
		r.Features = append(r.Features, row)
	}
	r.sort()
	return r
}

func restoreReport(response *srr.RestoreResponse) *report {
	r := &report{Operation: "restore", Outcome: string(response.Outcome)}
	for name, status := range response.Features {
		r.Features = append(r.Features, featureReport{Feature: name, Status: string(status.Status), Message: status.Message})
	}
	r.sort()
	return r
}

func (r *report) sort() {
	sort.Slice(r.Features, func(i, j int) bool { return r.Features[i].Feature < r.Features[j].Feature })
}

// exitCode is 0 for success, 2 for partial success and 1 otherwise.
func (r *report) exitCode() int {
	switch srr.Outcome(r.Outcome) {
	case srr.OutcomeSuccess:
		return 0
	case srr.OutcomePartialSuccess:
		return 2
	}
	return 1
}

func writeReport(w io.Writer, r *report, format string) error {
	if format != formatText {
		return writeStructured(w, r, format)
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "FEATURE\tSTATUS\tVERSION\tMESSAGE\n")
	for _, row := range r.Features {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Feature, row.Status, row.Version, row.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s: %s\n", r.Operation, r.Outcome)
	return err
}

func writeStatus(w io.Writer, status *service.Status, format string) error {
	if format != formatText {
		return writeStructured(w, status, format)
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "version:\t%s\n", status.Version)
	fmt.Fprintf(tw, "backend:\t%s\n", status.Backend)
	fmt.Fprintf(tw, "started:\t%s\n", status.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "features:\t%d\n", status.Features)
	fmt.Fprintf(tw, "languages:\t%v\n", status.Languages)
	return tw.Flush()
}

func writeFeatures(w io.Writer, features []string, format string) error {
	if format != formatText {
		if features == nil {
			features = []string{}
		}
		return writeStructured(w, features, format)
	}
	for _, name := range features {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

func writeStructured(w io.Writer, value any, format string) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return err
		}
		return encoder.Close()
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

// writeRaw prints a response envelope in CBOR diagnostic notation.
func writeRaw(w io.Writer, response *service.Response) error {
	data, err := codec.Marshal(response)
	if err != nil {
		return fmt.Errorf("re-encoding response: %w", err)
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return fmt.Errorf("diagnosing response: %w", err)
	}
	_, err = fmt.Fprintln(w, diagnostic)
	return err
}
