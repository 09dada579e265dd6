// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags -X. Empty or "unknown" values are filled from the
// VCS stamp the go tool embeds in the binary, when there is one.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

var stampOnce sync.Once

// stamp fills unset build variables from debug.ReadBuildInfo.
func stamp() {
	stampOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		applySettings(info.Settings)
	})
}

func applySettings(settings []debug.BuildSetting) {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "unknown" && setting.Value != "" {
				GitCommit = setting.Value
				if len(GitCommit) > 12 {
					GitCommit = GitCommit[:12]
				}
			}
		case "vcs.time":
			if BuildTime == "unknown" && setting.Value != "" {
				BuildTime = setting.Value
			}
		case "vcs.modified":
			if setting.Value == "true" {
				GitDirty = "true"
			}
		}
	}
}

// Info is the one-line form printed by --version and logged at agent
// start: "0.1.0-dev (abc123def456-dirty, 2026-03-01T12:00:00Z)".
func Info() string {
	stamp()
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full adds the Go version and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short is the version reported in the agent status response.
func Short() string {
	return Version
}

// Print writes "binary Full()" to stdout.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Full())
}
