// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package systemctl provides typed access to the systemctl CLI for the
// few unit operations the agent performs. Commands optionally run
// through sudo, and every invocation is bounded by a timeout.
package systemctl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds one systemctl invocation.
const DefaultTimeout = 30 * time.Second

// Verb is a unit state-changing command.
type Verb string

const (
	Unmask  Verb = "unmask"
	Enable  Verb = "enable"
	Restart Verb = "restart"
	Stop    Verb = "stop"
	Disable Verb = "disable"
	Mask    Verb = "mask"
)

// Runner executes a command and returns stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs real processes. Stderr is included in errors.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w (stderr: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Config configures a Client.
type Config struct {
	// Binary defaults to "systemctl".
	Binary string

	// Sudo prefixes every command with "sudo".
	Sudo bool

	// Runner defaults to ExecRunner.
	Runner Runner

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client runs systemctl commands.
type Client struct {
	binary  string
	sudo    bool
	runner  Runner
	timeout time.Duration
}

// New creates a Client.
func New(config Config) *Client {
	client := &Client{
		binary:  config.Binary,
		sudo:    config.Sudo,
		runner:  config.Runner,
		timeout: config.Timeout,
	}
	if client.binary == "" {
		client.binary = "systemctl"
	}
	if client.runner == nil {
		client.runner = ExecRunner{}
	}
	if client.timeout <= 0 {
		client.timeout = DefaultTimeout
	}
	return client
}

// ActiveState returns the unit's ActiveState property ("active",
// "inactive", "failed", ...).
func (c *Client) ActiveState(ctx context.Context, unit string) (string, error) {
	output, err := c.run(ctx, "show", unit, "-p", "ActiveState")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(output, "\n") {
		if value, ok := strings.CutPrefix(strings.TrimSpace(line), "ActiveState="); ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("systemctl show %s: no ActiveState in output %q", unit, strings.TrimSpace(output))
}

// Run applies verb to unit.
func (c *Client) Run(ctx context.Context, verb Verb, unit string) error {
	_, err := c.run(ctx, string(verb), unit)
	return err
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if c.sudo {
		return c.runner.Run(ctx, "sudo", append([]string{c.binary}, args...)...)
	}
	return c.runner.Run(ctx, c.binary, args...)
}
