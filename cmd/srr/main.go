// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Srr is the operator CLI for the srr agent.
//
// It saves features into a bundle file, restores a bundle, and queries
// the agent's feature list and status over the agent socket:
//
//	srr save --file backup.yaml network monitoring
//	srr restore --file backup.yaml
//	srr features
//
// Save and restore exit with status 2 when only some features
// succeeded and 1 when none did.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
