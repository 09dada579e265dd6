// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore is a store backend persisting the configuration
// tree in a SQLite database. Agents run it on hosts without augeas,
// and integration tests use it as a durable stand-in for real files.
//
// The whole tree is rewritten on every commit inside one immediate
// transaction, and every commit is recorded in a history table.
package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/fleetconf/srr/lib/sqlitepool"
	"github.com/fleetconf/srr/lib/store"
)

// Schema creates the tables used by the backend.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	position INTEGER PRIMARY KEY,
	path     TEXT NOT NULL,
	value    TEXT
);
CREATE TABLE IF NOT EXISTS commits (
	id           INTEGER PRIMARY KEY,
	committed_at TEXT NOT NULL,
	changes      INTEGER NOT NULL
);
`

// Commit is one row of the commit history.
type Commit struct {
	ID          int64
	CommittedAt time.Time
	Changes     int
}

// Backend implements store.Backend over a sqlitepool.Pool opened with
// Schema.
type Backend struct {
	pool *sqlitepool.Pool
	now  func() time.Time
}

// New wraps pool. now defaults to time.Now.
func New(pool *sqlitepool.Pool, now func() time.Time) *Backend {
	if now == nil {
		now = time.Now
	}
	return &Backend{pool: pool, now: now}
}

// Load implements store.Backend.
func (b *Backend) Load(ctx context.Context) ([]store.Entry, error) {
	var entries []store.Entry
	err := b.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT path, value FROM nodes ORDER BY position", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry := store.Entry{Path: stmt.ColumnText(0)}
				if stmt.ColumnType(1) != sqlite.TypeNull {
					value := stmt.ColumnText(1)
					entry.Value = &value
				}
				entries = append(entries, entry)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading nodes: %w", err)
	}
	return entries, nil
}

// Save implements store.Backend by replacing the stored tree with
// snapshot.
func (b *Backend) Save(ctx context.Context, changes []store.Entry, snapshot []store.Entry) error {
	err := b.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM nodes", nil); err != nil {
			return err
		}
		for position, entry := range snapshot {
			var value any
			if entry.Value != nil {
				value = *entry.Value
			}
			err := sqlitex.Execute(conn, "INSERT INTO nodes (position, path, value) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
				Args: []any{position, entry.Path, value},
			})
			if err != nil {
				return fmt.Errorf("inserting %s: %w", entry.Path, err)
			}
		}
		return sqlitex.Execute(conn, "INSERT INTO commits (committed_at, changes) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{b.now().UTC().Format(time.RFC3339Nano), len(changes)},
		})
	})
	if err != nil {
		return fmt.Errorf("saving %d nodes: %w", len(snapshot), err)
	}
	return nil
}

// History returns the most recent commits, newest first.
func (b *Backend) History(ctx context.Context, limit int) ([]Commit, error) {
	var commits []Commit
	err := b.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT id, committed_at, changes FROM commits ORDER BY id DESC LIMIT ?", &sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				committedAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(1))
				if err != nil {
					return fmt.Errorf("commit %d: %w", stmt.ColumnInt64(0), err)
				}
				commits = append(commits, Commit{
					ID:          stmt.ColumnInt64(0),
					CommittedAt: committedAt,
					Changes:     stmt.ColumnInt(2),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading commit history: %w", err)
	}
	return commits, nil
}
