// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Srr-agent serves configuration save, restore and reset requests on a
// Unix socket.
//
// The agent reads one configuration file, named by --config or the
// SRR_CONFIG environment variable. It holds an exclusive lock on
// lock_path for its lifetime, so two agents never drive the same
// store. The feature table is the built-in one unless features_file is
// set, in which case the file is watched and reloaded on change.
//
// Usage:
//
//	srr-agent --config /etc/srr/agent.yaml [--verbose]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/fleetconf/srr/lib/config"
	"github.com/fleetconf/srr/lib/process"
	"github.com/fleetconf/srr/lib/service"
	"github.com/fleetconf/srr/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("srr-agent", pflag.ContinueOnError)
	var (
		configPath  string
		verbose     bool
		showVersion bool
	)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the agent config file (default: $SRR_CONFIG)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("srr-agent")
		return nil
	}

	agentConfig, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if verbose {
		agentConfig.LogLevel = "debug"
	}
	logger, err := newLogger(agentConfig.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := acquireLock(agentConfig.LockPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	agent, err := build(ctx, agentConfig, logger)
	if err != nil {
		return err
	}
	defer agent.Close()

	if agentConfig.MetricsAddress != "" {
		metricsServer := newMetricsServer(agentConfig.MetricsAddress, agent.metrics, logger)
		go func() {
			if err := metricsServer.Serve(ctx); err != nil {
				logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	if err := os.MkdirAll(filepath.Dir(agentConfig.SocketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	startedAt := time.Now()
	server := service.NewSocketServer(agentConfig.SocketPath, logger)
	service.RegisterAgent(server, agent.processor, func() service.Status {
		return service.Status{
			Version:   version.Short(),
			Backend:   agentConfig.Store.Backend,
			StartedAt: startedAt,
			Features:  len(agent.processor.Features()),
			Languages: agent.languages,
		}
	})

	logger.Info("srr agent starting",
		"version", version.Info(),
		"socket", agentConfig.SocketPath,
		"backend", agentConfig.Store.Backend,
		"features", len(agent.processor.Features()),
	)
	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("srr agent stopped")
	return nil
}

// loadConfig reads the explicit --config path, or SRR_CONFIG when the
// flag is empty, and validates the result.
func loadConfig(path string) (*config.Config, error) {
	var (
		agentConfig *config.Config
		err         error
	)
	if path != "" {
		agentConfig, err = config.LoadFile(path)
	} else {
		agentConfig, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := agentConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return agentConfig, nil
}

// newLogger returns the daemon's JSON logger at the configured level.
func newLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})), nil
}
