// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package timesync queries and sets the running state of the
// time-synchronization service.
package timesync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fleetconf/srr/lib/systemctl"
)

// Controller is the subset of systemctl.Client used by Toggle.
type Controller interface {
	ActiveState(ctx context.Context, unit string) (string, error)
	Run(ctx context.Context, verb systemctl.Verb, unit string) error
}

var (
	enableSequence  = []systemctl.Verb{systemctl.Unmask, systemctl.Enable, systemctl.Restart}
	disableSequence = []systemctl.Verb{systemctl.Stop, systemctl.Disable, systemctl.Mask}
)

// Toggle controls one service unit.
type Toggle struct {
	unit       string
	controller Controller
	logger     *slog.Logger
}

// New returns a Toggle for unit.
func New(unit string, controller Controller, logger *slog.Logger) *Toggle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Toggle{unit: unit, controller: controller, logger: logger}
}

// QueryState reports whether the service is running.
func (t *Toggle) QueryState(ctx context.Context) (bool, error) {
	state, err := t.controller.ActiveState(ctx, t.unit)
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", t.unit, err)
	}
	switch state {
	case "active", "activating", "reloading":
		return true, nil
	}
	return false, nil
}

// ApplyState starts and enables the service, or stops and masks it.
// Nothing is run when the service is already in the requested state.
func (t *Toggle) ApplyState(ctx context.Context, enable bool) error {
	running, err := t.QueryState(ctx)
	if err != nil {
		return err
	}
	if running == enable {
		t.logger.Debug("time sync already in requested state", "unit", t.unit, "enable", enable)
		return nil
	}
	sequence := disableSequence
	if enable {
		sequence = enableSequence
	}
	for _, verb := range sequence {
		if err := t.controller.Run(ctx, verb, t.unit); err != nil {
			return fmt.Errorf("%s %s: %w", verb, t.unit, err)
		}
	}
	t.logger.Info("time sync state applied", "unit", t.unit, "enable", enable)
	return nil
}
