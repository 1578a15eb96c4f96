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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dualview/workstation/internal/errs"
)

// Tx is a scoped write transaction token. It issues BEGIN on construction
// (Begin) and COMMIT on Commit; ROLLBACK is never automatic — callers that
// detect a failure must call Rollback explicitly before letting the token
// go out of scope.
//
// Action implementations and other composing callers receive a *Tx and pass
// it into a method's "Tx variant" (e.g. InsertImageTx) instead of the store
// reacquiring anything, which is how this store avoids needing a recursive
// mutex.
type Tx struct {
	tx   *sql.Tx
	name string // non-empty for a savepoint
}

// Begin starts a new top-level write transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w: %s", errs.InvalidSQL, err)
	}
	return &Tx{tx: tx}, nil
}

// Savepoint opens a nested scoped acquisition identified by name, usable
// exactly like a top-level Tx but rolled back independently of its parent.
func (t *Tx) Savepoint(ctx context.Context, name string) (*Tx, error) {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+quoteIdent(name)); err != nil {
		return nil, fmt.Errorf("store: savepoint %s: %w: %s", name, errs.InvalidSQL, err)
	}
	return &Tx{tx: t.tx, name: name}, nil
}

// Commit commits a top-level Tx, or releases a savepoint.
func (t *Tx) Commit(ctx context.Context) error {
	if t.name != "" {
		if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+quoteIdent(t.name)); err != nil {
			return fmt.Errorf("store: release savepoint %s: %w: %s", t.name, errs.InvalidSQL, err)
		}
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w: %s", errs.InvalidSQL, err)
	}
	return nil
}

// Rollback rolls back a top-level Tx, or back to a savepoint.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.name != "" {
		if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(t.name)); err != nil {
			return fmt.Errorf("store: rollback to savepoint %s: %w: %s", t.name, errs.InvalidSQL, err)
		}
		return nil
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("store: rollback: %w: %s", errs.InvalidSQL, err)
	}
	return nil
}

// WithTx runs fn inside a fresh top-level transaction, committing on a nil
// return and rolling back otherwise. Most call sites that do not need to
// hand the token to anything else should use this instead of Begin/Commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func quoteIdent(name string) string {
	// Savepoint names are caller-chosen identifiers (not user input), but
	// quoting defensively costs nothing.
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' {
			b.WriteString(`""`)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
