// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package srr

import (
	"fmt"
	"log/slog"
	"time"
)

// State is the progress of one request.
type State int

const (
	Received State = iota
	Validated
	PerFeatureProcessing
	Aggregated
	Sent
	Rejected
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Validated:
		return "validated"
	case PerFeatureProcessing:
		return "per_feature_processing"
	case Aggregated:
		return "aggregated"
	case Sent:
		return "sent"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var transitions = map[State][]State{
	Received:             {Validated, Rejected},
	Validated:            {PerFeatureProcessing},
	PerFeatureProcessing: {Aggregated},
	Aggregated:           {Sent},
}

// CanTransition reports whether a request may move from one state to
// another. Sent and Rejected are terminal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// request tracks one request through its states.
type request struct {
	operation string
	state     State
	started   time.Time
	logger    *slog.Logger
	metrics   *metrics
}

func (p *Processor) receive(operation string) *request {
	r := &request{
		operation: operation,
		state:     Received,
		started:   time.Now(),
		logger:    p.logger.With("operation", operation),
		metrics:   p.metrics,
	}
	r.metrics.states.WithLabelValues(operation, Received.String()).Inc()
	return r
}

func (r *request) advance(to State) {
	if !CanTransition(r.state, to) {
		r.logger.Error("invalid request state transition", "from", r.state, "to", to)
		return
	}
	r.logger.Debug("request state", "from", r.state, "to", to)
	r.state = to
	r.metrics.states.WithLabelValues(r.operation, to.String()).Inc()
	if to == Rejected {
		r.metrics.observeRequest(r.operation, Rejected.String(), r.started)
	}
}

func (r *request) aggregated(outcome Outcome) {
	r.advance(Aggregated)
	r.metrics.observeRequest(r.operation, string(outcome), r.started)
}
