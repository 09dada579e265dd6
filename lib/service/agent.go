// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetconf/srr/lib/codec"
	"github.com/fleetconf/srr/lib/srr"
)

// Socket actions.
const (
	ActionSave     = "save"
	ActionRestore  = "restore"
	ActionReset    = "reset"
	ActionFeatures = "features"
	ActionStatus   = "status"
)

// Agent is what RegisterAgent serves. *srr.Processor implements it.
type Agent interface {
	Save(ctx context.Context, request srr.SaveRequest) (*srr.SaveResponse, error)
	Restore(ctx context.Context, request srr.RestoreRequest) (*srr.RestoreResponse, error)
	Reset(ctx context.Context, request srr.ResetRequest) (*srr.ResetResponse, error)
	Features() []string
	MarkSent(operation string)
}

var _ Agent = (*srr.Processor)(nil)

// Status is the result of the status action.
type Status struct {
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
	StartedAt time.Time `json:"started_at"`
	Features  int       `json:"features"`
	Languages []string  `json:"languages"`
}

// RegisterAgent binds the agent actions to server. status is called
// for each status request.
func RegisterAgent(server *SocketServer, agent Agent, status func() Status) {
	server.Handle(ActionSave, func(ctx context.Context, raw []byte) (any, error) {
		var request srr.SaveRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid save request: %w", err)
		}
		return agent.Save(ctx, request)
	})
	server.Handle(ActionRestore, func(ctx context.Context, raw []byte) (any, error) {
		var request srr.RestoreRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid restore request: %w", err)
		}
		return agent.Restore(ctx, request)
	})
	server.Handle(ActionReset, func(ctx context.Context, raw []byte) (any, error) {
		var request srr.ResetRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid reset request: %w", err)
		}
		return agent.Reset(ctx, request)
	})
	server.Handle(ActionFeatures, func(context.Context, []byte) (any, error) {
		return agent.Features(), nil
	})
	server.Handle(ActionStatus, func(context.Context, []byte) (any, error) {
		return status(), nil
	})

	// Rejected requests never reach the sent state.
	server.OnResponse(func(action string, ok bool, err error) {
		if ok && err == nil && (action == ActionSave || action == ActionRestore) {
			agent.MarkSent(action)
		}
	})
}
