// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fleetconf/srr/lib/codec"
)

// ActionFunc processes a socket request for a specific action. raw is
// the full CBOR request, including the "action" field.
//
// A nil result gives {ok: true}; a non-nil result is marshaled into
// the response's data field. A non-nil error gives {ok: false} with
// the error's message, which must be fit for the caller to read.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// ResponseFunc is called after a response is written. err is the
// write error, if any.
type ResponseFunc func(action string, ok bool, err error)

// Response is the envelope of every socket response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves the CBOR request-response protocol on a Unix
// socket. Each connection handles exactly one request.
//
// Actions are registered with Handle before calling Serve. Unknown
// actions receive an error response.
type SocketServer struct {
	socketPath string
	mode       os.FileMode
	handlers   map[string]ActionFunc
	onResponse ResponseFunc
	logger     *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	// activeConnections lets Serve wait for in-flight handlers on
	// shutdown.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
// The socket file is created with mode 0660.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SocketServer{
		socketPath: socketPath,
		mode:       0660,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers a handler for an action. Panics if the action is
// already registered.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// OnResponse sets the function called after each response to a
// registered action is written.
func (s *SocketServer) OnResponse(fn ResponseFunc) {
	s.onResponse = fn
}

// Ready is closed once the socket is listening.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections and dispatches requests until ctx is
// cancelled, then waits for active handlers to complete.
//
// Any existing socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()
	if err := os.Chmod(s.socketPath, s.mode); err != nil {
		return fmt.Errorf("setting mode of %s: %w", s.socketPath, err)
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response to be written.
const writeTimeout = 10 * time.Second

// MaxMessageSize bounds one request or response. A restore request
// carries every artifact of a bundle.
const MaxMessageSize = 16 << 20

// handleConnection processes one request-response cycle.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting so no framing is needed.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, MaxMessageSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	var writeErr error
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		writeErr = s.writeError(conn, err.Error())
	} else {
		writeErr = s.writeSuccess(conn, result)
	}
	if s.onResponse != nil {
		s.onResponse(header.Action, err == nil, writeErr)
	}
}

// writeError sends {ok: false, error: message}. Write failures are
// logged at debug level; the connection is closing regardless.
func (s *SocketServer) writeError(conn net.Conn, message string) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message})
	if err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
	return err
}

// writeSuccess sends {ok: true} with result, if any, under data.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
		}
		response.Data = data
	}

	err := codec.NewEncoder(conn).Encode(response)
	if err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
	return err
}
