// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fleetconf/srr/lib/bulk"
	"github.com/fleetconf/srr/lib/collision"
	"github.com/fleetconf/srr/lib/config"
	"github.com/fleetconf/srr/lib/registry"
	"github.com/fleetconf/srr/lib/sqlitepool"
	"github.com/fleetconf/srr/lib/srr"
	"github.com/fleetconf/srr/lib/store"
	"github.com/fleetconf/srr/lib/store/augtool"
	"github.com/fleetconf/srr/lib/store/sqlitestore"
	"github.com/fleetconf/srr/lib/systemctl"
	"github.com/fleetconf/srr/lib/timesync"
)

const defaultTimeout = 30 * time.Second

// agentParts holds the components built from the configuration.
type agentParts struct {
	processor *srr.Processor
	features  *registry.Registry
	metrics   *prometheus.Registry
	languages []string
	closers   []func() error
}

// Close releases resources opened by build, newest first.
func (a *agentParts) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// build wires the processor and its collaborators. When a features
// file is configured, its watcher runs until ctx is done.
func build(ctx context.Context, agentConfig *config.Config, logger *slog.Logger) (*agentParts, error) {
	parts := &agentParts{
		metrics:   prometheus.NewRegistry(),
		languages: srr.Languages(),
	}
	parts.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	table := registry.DefaultTable()
	if agentConfig.FeaturesFile != "" {
		loaded, err := registry.LoadFile(agentConfig.FeaturesFile)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	parts.features = registry.New(table, logger.With("component", "registry"))
	if agentConfig.FeaturesFile != "" {
		if err := parts.features.Watch(ctx, agentConfig.FeaturesFile, nil); err != nil {
			return nil, err
		}
	}

	backend, err := parts.openBackend(agentConfig, logger)
	if err != nil {
		parts.Close()
		return nil, err
	}
	configStore := store.New(backend, logger.With("component", "store"))

	codec, err := collisionCodec(agentConfig.CollisionKeys)
	if err != nil {
		parts.Close()
		return nil, err
	}

	copier, err := newCopier(agentConfig.Bulk, logger)
	if err != nil {
		parts.Close()
		return nil, err
	}

	policy, err := srr.PolicyByName(agentConfig.Versions.Policy)
	if err != nil {
		parts.Close()
		return nil, err
	}

	controller := systemctl.New(systemctl.Config{
		Binary:  agentConfig.TimeSync.Systemctl,
		Sudo:    agentConfig.TimeSync.Sudo,
		Timeout: config.Duration(agentConfig.TimeSync.Timeout, defaultTimeout),
	})
	toggle := timesync.New(agentConfig.TimeSync.Unit, controller, logger.With("component", "timesync"))

	parts.processor, err = srr.New(srr.Config{
		Store:    configStore,
		Features: parts.features,
		Bulk:     copier,
		TimeSync: toggle,
		Codec:    codec,
		Versions: srr.Versions{
			Tree:   agentConfig.Versions.Tree,
			Opaque: agentConfig.Versions.Opaque,
		},
		Policy:     policy,
		Language:   agentConfig.Language,
		Timeout:    config.Duration(agentConfig.Bulk.Timeout, defaultTimeout),
		Registerer: parts.metrics,
		Logger:     logger.With("component", "processor"),
	})
	if err != nil {
		parts.Close()
		return nil, err
	}
	return parts, nil
}

// openBackend returns the configured store backend. The augtool
// backend loads the roots of the tree features in the current table.
func (a *agentParts) openBackend(agentConfig *config.Config, logger *slog.Logger) (store.Backend, error) {
	timeout := config.Duration(agentConfig.Store.Timeout, defaultTimeout)
	switch agentConfig.Store.Backend {
	case config.BackendAugtool:
		return augtool.New(augtool.Config{
			Roots:          func() []string { return a.features.Current().TreeRoots() },
			FilesystemRoot: agentConfig.Store.FilesystemRoot,
			Runner:         augtool.ExecRunner{Binary: agentConfig.Store.AugtoolBinary},
			Timeout:        timeout,
			Logger:         logger.With("component", "augtool"),
		}), nil

	case config.BackendSQLite:
		pool, err := sqlitepool.Open(sqlitepool.Config{
			Path:   agentConfig.Store.SQLitePath,
			Logger: logger.With("component", "sqlite"),
			Schema: sqlitestore.Schema,
		})
		if err != nil {
			return nil, fmt.Errorf("opening store database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return sqlitestore.New(pool, nil), nil

	case config.BackendMemory:
		logger.Warn("memory store backend: restored configuration is not persisted")
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", agentConfig.Store.Backend)
}

// collisionCodec builds the codec from configured keys, or the
// default codec when none are configured.
func collisionCodec(keys []config.CollisionKey) (*collision.Codec, error) {
	if len(keys) == 0 {
		return collision.Default(), nil
	}
	rules := make([]collision.Rule, len(keys))
	for i, key := range keys {
		rules[i] = collision.Rule{Key: key.Key, Rename: key.Rename}
	}
	codec, err := collision.New(rules)
	if err != nil {
		return nil, fmt.Errorf("collision_keys: %w", err)
	}
	return codec, nil
}

func newCopier(bulkConfig config.BulkConfig, logger *slog.Logger) (*bulk.Copier, error) {
	options := bulk.Options{
		Compression: bulk.Compression(bulkConfig.Compression),
		Recipients:  bulkConfig.SealRecipients,
		Logger:      logger.With("component", "bulk"),
	}
	if bulkConfig.IdentityFile != "" {
		identities, err := bulk.LoadIdentities(bulkConfig.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("bulk.identity_file: %w", err)
		}
		options.Identities = identities
	}
	copier, err := bulk.New(options)
	if err != nil {
		return nil, fmt.Errorf("bulk: %w", err)
	}
	return copier, nil
}
