// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fleetconf/srr/lib/codec"
	"github.com/fleetconf/srr/lib/srr"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// DefaultResponseTimeout is how long the client waits for a response
// after writing the request. A restore of many features may run
// augtool and systemctl several times.
const DefaultResponseTimeout = 5 * time.Minute

// ServiceError is returned by Call when the agent responds with
// ok=false. Message is the agent's localized message.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("agent error on %q: %s", e.Action, e.Message)
}

// Client sends requests to the agent socket. Each call opens a new
// connection, matching the server's one-request-per-connection model.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for the agent at socketPath. A zero
// timeout uses DefaultResponseTimeout.
func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Call sends a request and decodes the response.
//
// fields holds the action's request fields; the client adds "action".
// On success, if result is non-nil and the response has data, the
// data is decoded into result. On ok=false, Call returns a
// *ServiceError. Connection and encoding errors are returned as plain
// errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	response, err := c.CallRaw(ctx, action, fields)
	if err != nil {
		return err
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// CallRaw sends a request and returns the undecoded response envelope.
func (c *Client) CallRaw(ctx context.Context, action string, fields map[string]any) (*Response, error) {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	return response, nil
}

// Save asks the agent to save features.
func (c *Client) Save(ctx context.Context, request srr.SaveRequest) (*srr.SaveResponse, error) {
	var response srr.SaveResponse
	err := c.Call(ctx, ActionSave, map[string]any{
		"features": request.Features,
		"language": request.Language,
	}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// Restore asks the agent to restore artifacts.
func (c *Client) Restore(ctx context.Context, request srr.RestoreRequest) (*srr.RestoreResponse, error) {
	var response srr.RestoreResponse
	err := c.Call(ctx, ActionRestore, map[string]any{
		"features": request.Features,
		"language": request.Language,
	}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// Reset asks the agent to reset features. The agent does not implement
// reset, so this returns a *ServiceError.
func (c *Client) Reset(ctx context.Context, request srr.ResetRequest) error {
	return c.Call(ctx, ActionReset, map[string]any{
		"features": request.Features,
		"language": request.Language,
	}, nil)
}

// Features lists the features the agent manages.
func (c *Client) Features(ctx context.Context) ([]string, error) {
	var features []string
	if err := c.Call(ctx, ActionFeatures, nil, &features); err != nil {
		return nil, err
	}
	return features, nil
}

// Status returns the agent's status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.Call(ctx, ActionStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// send connects, writes the request and reads the response.
func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close so the server sees EOF after the request.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, MaxMessageSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
