// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/fleetconf/srr/lib/config"
	"github.com/fleetconf/srr/lib/service"
	"github.com/fleetconf/srr/lib/srr"
	"github.com/fleetconf/srr/lib/version"
)

// socketEnvVar overrides the default agent socket.
const socketEnvVar = "SRR_SOCKET"

// streams are the command's standard streams.
type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// connection holds the flags shared by every command that talks to the
// agent.
type connection struct {
	socket   string
	language string
	timeout  time.Duration
	raw      bool
	output   string
	verbose  bool
}

func (c *connection) bind(flagSet *pflag.FlagSet) {
	socket := os.Getenv(socketEnvVar)
	if socket == "" {
		socket = config.Default().SocketPath
	}
	flagSet.StringVar(&c.socket, "socket", socket, "agent socket path (env "+socketEnvVar+")")
	flagSet.StringVarP(&c.language, "language", "l", "", "message language, e.g. fr (default: agent language)")
	flagSet.DurationVar(&c.timeout, "timeout", service.DefaultResponseTimeout, "response timeout")
	flagSet.BoolVar(&c.raw, "raw", false, "print the agent response in CBOR diagnostic notation")
	flagSet.StringVarP(&c.output, "output", "o", "", "output format: text, json or yaml (default: text on a terminal, json otherwise)")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log debug details to stderr")
}

func (c *connection) client() *service.Client {
	return service.NewClient(c.socket, c.timeout)
}

func (c *connection) format(out io.Writer) string {
	if c.output != "" {
		return c.output
	}
	if file, ok := out.(*os.File); ok {
		return defaultFormat(file)
	}
	return formatText
}

// callRaw sends one action and prints the raw response.
func (c *connection) callRaw(ctx context.Context, out io.Writer, action string, fields map[string]any) error {
	response, err := c.client().CallRaw(ctx, action, fields)
	if err != nil {
		return err
	}
	if err := writeRaw(out, response); err != nil {
		return err
	}
	if !response.OK {
		return &exitError{code: 1}
	}
	return nil
}

func root() *command {
	return newRoot(streams{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
}

func newRoot(std streams) *command {
	return &command{
		Name:    "srr",
		Summary: "Save, restore and reset appliance configuration through the srr agent.",
		Subcommands: []*command{
			saveCommand(std),
			restoreCommand(std),
			resetCommand(std),
			featuresCommand(std),
			statusCommand(std),
			versionCommand(std),
		},
	}
}

func saveCommand(std streams) *command {
	var (
		conn   connection
		file   string
		format string
		all    bool
	)
	return &command{
		Name:    "save",
		Summary: "Save features into a bundle file",
		Usage:   "srr save [--file PATH] [--all | FEATURE...]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("save", pflag.ContinueOnError)
			conn.bind(flagSet)
			flagSet.StringVarP(&file, "file", "f", "-", "bundle file to write (- for stdout)")
			flagSet.StringVar(&format, "format", "", "bundle format: yaml or json (default: from the file extension, yaml for stdout)")
			flagSet.BoolVar(&all, "all", false, "save every feature the agent manages")
			return flagSet
		},
		Run: func(args []string) error {
			logger := newLogger(conn.verbose)
			ctx := context.Background()
			features := args
			if all {
				if len(args) > 0 {
					return fmt.Errorf("--all and feature names are mutually exclusive")
				}
				names, err := conn.client().Features(ctx)
				if err != nil {
					return err
				}
				features = names
			}
			if len(features) == 0 {
				return fmt.Errorf("name the features to save, or pass --all")
			}
			if conn.raw {
				return conn.callRaw(ctx, std.stdout, service.ActionSave, map[string]any{
					"features": features,
					"language": conn.language,
				})
			}

			response, err := conn.client().Save(ctx, srr.SaveRequest{Features: features, Language: conn.language})
			if err != nil {
				return agentFailure(std.stderr, err)
			}
			artifacts := response.Artifacts()
			if len(artifacts) > 0 {
				b := newBundle(artifacts)
				b.SavedAt = time.Now().UTC()
				if status, err := conn.client().Status(ctx); err == nil {
					b.Agent = status.Version
				}
				if err := writeBundle(std.stdout, file, b, bundleFormat(file, format)); err != nil {
					return err
				}
				logger.Debug("bundle written", "path", file, "features", len(artifacts))
			}

			// The report goes to stderr when the bundle occupies stdout.
			reportOut := std.stdout
			if file == "-" {
				reportOut = std.stderr
			}
			r := saveReport(response)
			if err := writeReport(reportOut, r, conn.format(reportOut)); err != nil {
				return err
			}
			if code := r.exitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func restoreCommand(std streams) *command {
	var (
		conn connection
		file string
	)
	return &command{
		Name:    "restore",
		Summary: "Restore features from a bundle file",
		Usage:   "srr restore --file PATH [FEATURE...]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("restore", pflag.ContinueOnError)
			conn.bind(flagSet)
			flagSet.StringVarP(&file, "file", "f", "", "bundle file to read (- for stdin)")
			return flagSet
		},
		Run: func(args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			logger := newLogger(conn.verbose)
			ctx := context.Background()

			b, err := readBundle(std.stdin, file)
			if err != nil {
				return err
			}
			artifacts, err := b.Artifacts(args)
			if err != nil {
				return err
			}
			logger.Debug("restoring bundle", "path", file, "saved_at", b.SavedAt, "features", len(artifacts))
			if conn.raw {
				return conn.callRaw(ctx, std.stdout, service.ActionRestore, map[string]any{
					"features": artifacts,
					"language": conn.language,
				})
			}

			response, err := conn.client().Restore(ctx, srr.RestoreRequest{Features: artifacts, Language: conn.language})
			if err != nil {
				return agentFailure(std.stderr, err)
			}
			r := restoreReport(response)
			if err := writeReport(std.stdout, r, conn.format(std.stdout)); err != nil {
				return err
			}
			if code := r.exitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}

func resetCommand(std streams) *command {
	var conn connection
	return &command{
		Name:    "reset",
		Summary: "Reset features to their factory configuration",
		Usage:   "srr reset FEATURE...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("reset", pflag.ContinueOnError)
			conn.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			ctx := context.Background()
			if conn.raw {
				return conn.callRaw(ctx, std.stdout, service.ActionReset, map[string]any{
					"features": args,
					"language": conn.language,
				})
			}
			if err := conn.client().Reset(ctx, srr.ResetRequest{Features: args, Language: conn.language}); err != nil {
				return agentFailure(std.stderr, err)
			}
			return nil
		},
	}
}

func featuresCommand(std streams) *command {
	var conn connection
	return &command{
		Name:    "features",
		Summary: "List the features the agent manages",
		Usage:   "srr features",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("features", pflag.ContinueOnError)
			conn.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			ctx := context.Background()
			if conn.raw {
				return conn.callRaw(ctx, std.stdout, service.ActionFeatures, nil)
			}
			features, err := conn.client().Features(ctx)
			if err != nil {
				return agentFailure(std.stderr, err)
			}
			return writeFeatures(std.stdout, features, conn.format(std.stdout))
		},
	}
}

func statusCommand(std streams) *command {
	var conn connection
	return &command{
		Name:    "status",
		Summary: "Show the agent's version, backend and feature count",
		Usage:   "srr status",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.bind(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			ctx := context.Background()
			if conn.raw {
				return conn.callRaw(ctx, std.stdout, service.ActionStatus, nil)
			}
			status, err := conn.client().Status(ctx)
			if err != nil {
				return agentFailure(std.stderr, err)
			}
			return writeStatus(std.stdout, status, conn.format(std.stdout))
		},
	}
}

func versionCommand(std streams) *command {
	return &command{
		Name:    "version",
		Summary: "Print the CLI version",
		Usage:   "srr version",
		Run: func(args []string) error {
			_, err := fmt.Fprintf(std.stdout, "srr %s\n", version.Full())
			return err
		},
	}
}

// agentFailure prints the agent's own message for a rejected request
// and exits 1. Other errors are returned unchanged.
func agentFailure(stderr io.Writer, err error) error {
	var serviceErr *service.ServiceError
	if errors.As(err, &serviceErr) {
		fmt.Fprintf(stderr, "%s: %s\n", serviceErr.Action, serviceErr.Message)
		return &exitError{code: 1}
	}
	return err
}
