// Copyright 2026 The Dualview Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store implements a relational resource store: images,
// collections, folders, the tag vocabulary, applied tags, net galleries and
// the action journal's backing rows, all behind a single SQLite file plus
// an auxiliary signatures file.
//
// Concurrency is delegated to database/sql itself: the *sql.DB is opened
// with SetMaxOpenConns(1), so the connection pool serialises every caller
// without reimplementing a recursive lock by hand. Methods that must
// compose (an action's Redo calling back into the store while a transaction
// is open) take an explicit *Tx token instead of re-acquiring anything.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/store/schema"
)

// DatabaseUncategorizedCollectionID is the fixed id of the sentinel
// collection that holds images which would otherwise belong to no
// collection. It is reserved: the schema's autoincrement sequence is
// primed so ordinary inserts never collide with it.
const DatabaseUncategorizedCollectionID = 1

// RootFolderID is the fixed id of the well-known root folder that always
// exists.
const RootFolderID = 1

// Store is the durable state of one library. The zero value is not usable;
// use Open.
type Store struct {
	db    *sql.DB
	aux   *sql.DB
	bus   *changebus.Bus
	paths PathResolver

	singleload *registry
}

// PathResolver expands and contracts the portable path prefixes (":?ocl/"
// public, ":?scl/" private) against the current installation's configured
// roots. Configuration of those roots is left to callers, who supply an
// implementation.
type PathResolver interface {
	ToFinal(portable string) string
	ToDatabase(final string) string
}

// Options configure Open beyond its required arguments.
type Options struct {
	// Paths resolves the portable path prefixes. Required.
	Paths PathResolver
	// Bus receives change notifications fired by mutating store methods.
	// May be nil, in which case events are simply not published.
	Bus *changebus.Bus
}

// Open opens (creating if absent) the primary database at dbPath and the
// auxiliary signatures database at auxPath, applies pragmas, and runs
// migrations up to schema.CurrentVersion.
func Open(ctx context.Context, dbPath, auxPath string, opts Options) (*Store, error) {
	if opts.Paths == nil {
		return nil, fmt.Errorf("store: %w: Options.Paths is required", errs.InvalidArgument)
	}

	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	aux, err := openSQLite(auxPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := aux.ExecContext(ctx, schema.Auxiliary); err != nil {
		db.Close()
		aux.Close()
		return nil, fmt.Errorf("store: creating auxiliary schema: %w: %s", errs.InvalidSQL, err)
	}

	s := &Store{
		db:         db,
		aux:        aux,
		bus:        opts.Bus,
		paths:      opts.Paths,
		singleload: newRegistry(),
	}
	if err := s.migrate(ctx, dbPath); err != nil {
		db.Close()
		aux.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_recursive_triggers=on&_journal_mode=DELETE&mode=rwc", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w: %s", path, errs.InvalidSQL, err)
	}
	// A pool size of one reproduces the original single-writer handle: every
	// caller serialises through this one connection instead of through a
	// hand-rolled recursive mutex.
	db.SetMaxOpenConns(1)
	return db, nil
}

// migrate brings the database at dbPath from whatever version it is
// currently stamped with up to schema.CurrentVersion, taking a timestamped
// backup copy before applying any migration step.
func (s *Store) migrate(ctx context.Context, dbPath string) error {
	var current int
	row := s.db.QueryRowContext(ctx, `SELECT schema_version FROM version WHERE id = 1`)
	err := row.Scan(&current)
	switch {
	case err == sql.ErrNoRows, isNoSuchTable(err):
		if _, err := s.db.ExecContext(ctx, schema.Primary); err != nil {
			return fmt.Errorf("store: creating schema: %w: %s", errs.InvalidSQL, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO version(id, schema_version) VALUES (1, ?)`, schema.CurrentVersion); err != nil {
			return fmt.Errorf("store: stamping schema version: %w: %s", errs.InvalidSQL, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO collections(id, name, added_at, modified_at) VALUES (?, 'Uncategorized', ?, ?)`,
			DatabaseUncategorizedCollectionID, time.Now().Unix(), time.Now().Unix()); err != nil {
			return fmt.Errorf("store: seeding uncategorized collection: %w: %s", errs.InvalidSQL, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO virtual_folders(id, name) VALUES (?, 'root')`, RootFolderID); err != nil {
			return fmt.Errorf("store: seeding root folder: %w: %s", errs.InvalidSQL, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: reading schema version: %w: %s", errs.InvalidSQL, err)
	}

	if current > schema.CurrentVersion {
		return fmt.Errorf("store: %w: database is at version %d, binary only knows version %d", errs.InvalidState, current, schema.CurrentVersion)
	}
	if current == schema.CurrentVersion {
		return nil
	}

	for _, m := range schema.Migrations {
		if m.From < current {
			continue
		}
		if err := s.backup(dbPath); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("store: migrating from version %d: %w: %s", m.From, errs.InvalidSQL, err)
		}
		current = m.From + 1
		if _, err := s.db.ExecContext(ctx, `UPDATE version SET schema_version = ? WHERE id = 1`, current); err != nil {
			return fmt.Errorf("store: stamping version %d: %w: %s", current, errs.InvalidSQL, err)
		}
	}
	return nil
}

func (s *Store) backup(dbPath string) error {
	data, err := os.ReadFile(dbPath)
	if err != nil {
		return fmt.Errorf("store: reading database for backup: %w", err)
	}
	dst := fmt.Sprintf("%s.%d.bak", dbPath, time.Now().Unix())
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("store: writing backup %s: %w", dst, err)
	}
	klog.Infof("store: wrote pre-migration backup to %s", dst)
	return nil
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Close releases both database handles.
func (s *Store) Close() error {
	err1 := s.db.Close()
	err2 := s.aux.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// fire publishes a change event if a bus was configured.
func (s *Store) fire(kind changebus.ChangeKind, event changebus.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Fire(kind, event)
}
