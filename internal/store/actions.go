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
	"fmt"
	"time"

	"github.com/dualview/workstation/internal/errs"
)

// ActionRow is the persisted form of a journal entry. internal/journal owns
// the typed Action values; this is the store's row-level view used to persist
// and reload them.
type ActionRow struct {
	ID          int64
	Type        string
	Performed   bool
	JSONPayload string
	CreatedAt   time.Time
	Description string
}

// InsertAction persists a new action row.
func (s *Store) InsertAction(ctx context.Context, tx *Tx, a ActionRow) (int64, error) {
	exec := s.db.ExecContext
	if tx != nil {
		exec = tx.tx.ExecContext
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := exec(ctx, `
		INSERT INTO actions (type, performed, json_payload, created_at, description) VALUES (?, ?, ?, ?, ?)`,
		a.Type, boolToInt(a.Performed), a.JSONPayload, a.CreatedAt.Unix(), a.Description)
	if err != nil {
		return 0, fmt.Errorf("store: insert action: %w: %s", errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert action id: %w: %s", errs.InvalidSQL, err)
	}
	return id, nil
}

// SetActionPerformed flips an action row's performed flag.
func (s *Store) SetActionPerformed(ctx context.Context, id int64, performed bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE actions SET performed = ? WHERE id = ?`, boolToInt(performed), id)
	if err != nil {
		return fmt.Errorf("store: set action %d performed=%v: %w: %s", id, performed, errs.InvalidSQL, err)
	}
	return nil
}

// DeleteAction permanently removes an action row, used when it is purged
// from history.
func (s *Store) DeleteAction(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete action %d: %w: %s", id, errs.InvalidSQL, err)
	}
	return nil
}

// ListActions returns every persisted action in creation order, for
// reloading the undo/redo stack across sessions.
func (s *Store) ListActions(ctx context.Context) ([]ActionRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, performed, json_payload, created_at, description FROM actions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: listing actions: %w: %s", errs.InvalidSQL, err)
	}
	defer rows.Close()
	var out []ActionRow
	for rows.Next() {
		var a ActionRow
		var performed int
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Type, &performed, &a.JSONPayload, &createdAt, &a.Description); err != nil {
			return nil, fmt.Errorf("store: scanning action row: %w: %s", errs.InvalidSQL, err)
		}
		a.Performed = performed != 0
		a.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, a)
	}
	return out, nil
}
