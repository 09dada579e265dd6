// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fleetconf/srr/lib/config"
	"github.com/fleetconf/srr/lib/registry"
)

// Versions are the artifact format versions the agent writes, one per
// feature class.
type Versions struct {
	Tree   string
	Opaque string
}

// DefaultVersions returns the tree "1.0" and opaque "2.0" formats.
func DefaultVersions() Versions {
	return Versions{Tree: "1.0", Opaque: "2.0"}
}

// For returns the version written for class.
func (v Versions) For(class registry.Class) string {
	if class == registry.Opaque {
		return v.Opaque
	}
	return v.Tree
}

// VersionPolicy decides whether an artifact version can be restored
// onto a feature whose class currently writes running.
type VersionPolicy interface {
	Accepts(class registry.Class, artifact, running string) bool
	// Expected describes the accepted versions for messages.
	Expected(class registry.Class, running string) string
}

// FamilyPolicy accepts an artifact when its major version equals the
// major version of the running format for the feature's class. A tree
// artifact never restores onto an opaque feature or the reverse,
// whatever the numbers.
type FamilyPolicy struct{}

func (FamilyPolicy) Accepts(_ registry.Class, artifact, running string) bool {
	family, ok := versionFamily(artifact)
	if !ok {
		return false
	}
	expected, ok := versionFamily(running)
	return ok && family == expected
}

func (FamilyPolicy) Expected(_ registry.Class, running string) string {
	family, _ := versionFamily(running)
	return family + ".x"
}

func versionFamily(version string) (string, bool) {
	major, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	if _, err := strconv.ParseUint(major, 10, 32); err != nil {
		return "", false
	}
	return major, true
}

// NumericPolicy is the legacy rule: versions compare as decimal numbers
// and any artifact not newer than the running version is accepted,
// regardless of class.
type NumericPolicy struct{}

func (NumericPolicy) Accepts(_ registry.Class, artifact, running string) bool {
	a, err := strconv.ParseFloat(strings.TrimSpace(artifact), 64)
	if err != nil {
		return false
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(running), 64)
	if err != nil {
		return false
	}
	return a <= r
}

func (NumericPolicy) Expected(_ registry.Class, running string) string {
	return "<= " + running
}

// PolicyByName returns the policy for a versions.policy config value.
func PolicyByName(name string) (VersionPolicy, error) {
	switch name {
	case config.PolicyFamily, "":
		return FamilyPolicy{}, nil
	case config.PolicyNumeric:
		return NumericPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown version policy %q", name)
}
