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

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/errs"
)

// CreateTag inserts a new tag, rejecting a name already in use.
func (s *Store) CreateTag(ctx context.Context, name, description string, category int, isPrivate bool) (*Tag, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (name, description, category, is_private, deleted) VALUES (?, ?, ?, ?, 0)`,
		strings.ToLower(name), description, category, boolToInt(isPrivate))
	if err != nil {
		return nil, fmt.Errorf("store: create tag %q: %w: %s", name, errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create tag id: %w: %s", errs.InvalidSQL, err)
	}
	s.fire(changebus.TagCreated, id)
	return &Tag{ID: id, Name: strings.ToLower(name), Description: description, Category: category, IsPrivate: isPrivate}, nil
}

// TagByName looks up a tag by its lower-cased name.
func (s *Store) TagByName(ctx context.Context, name string) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, category, is_private, deleted FROM tags WHERE name = LOWER(?)`, name)
	return scanTag(row)
}

// TagByID looks up a tag by id.
func (s *Store) TagByID(ctx context.Context, id int64) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, description, category, is_private, deleted FROM tags WHERE id = ?`, id)
	return scanTag(row)
}

func scanTag(row *sql.Row) (*Tag, error) {
	var t Tag
	var isPrivate, deleted int
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &isPrivate, &deleted); err != nil {
		return nil, fmt.Errorf("store: %w", errs.NotFound)
	}
	t.IsPrivate = isPrivate != 0
	t.Deleted = deleted != 0
	return &t, nil
}

// AddAlias maps alias to tagID.
func (s *Store) AddAlias(ctx context.Context, alias string, tagID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tag_aliases (alias, tag_id) VALUES (?, ?)`, strings.ToLower(alias), tagID)
	if err != nil {
		return fmt.Errorf("store: add alias %q: %w: %s", alias, errs.InvalidSQL, err)
	}
	return nil
}

// RemoveAlias deletes an alias mapping.
func (s *Store) RemoveAlias(ctx context.Context, alias string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tag_aliases WHERE alias = LOWER(?)`, alias)
	if err != nil {
		return fmt.Errorf("store: remove alias %q: %w: %s", alias, errs.InvalidSQL, err)
	}
	return nil
}

// ResolveAlias returns the tag id an alias resolves to, if any.
func (s *Store) ResolveAlias(ctx context.Context, alias string) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT tag_id FROM tag_aliases WHERE alias = LOWER(?)`, alias)
	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: resolving alias %q: %w: %s", alias, errs.InvalidSQL, err)
	}
	return id, true, nil
}

// ResolveSuperAlias returns the free-text expansion registered for alias, if
// any; a super-alias is recursively parsed from its expansion by the caller.
func (s *Store) ResolveSuperAlias(ctx context.Context, alias string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT expansion FROM tag_super_aliases WHERE alias = LOWER(?)`, alias)
	var expansion string
	err := row.Scan(&expansion)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: resolving super alias %q: %w: %s", alias, errs.InvalidSQL, err)
	}
	return expansion, true, nil
}

// AddImplication records "applying tagID implies impliedID".
func (s *Store) AddImplication(ctx context.Context, tagID, impliedID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO tag_implies (tag_id, implied_tag_id) VALUES (?, ?)`, tagID, impliedID)
	if err != nil {
		return fmt.Errorf("store: add implication %d->%d: %w: %s", tagID, impliedID, errs.InvalidSQL, err)
	}
	return nil
}

// RemoveImplication deletes an implication.
func (s *Store) RemoveImplication(ctx context.Context, tagID, impliedID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tag_implies WHERE tag_id = ? AND implied_tag_id = ?`, tagID, impliedID)
	if err != nil {
		return fmt.Errorf("store: remove implication %d->%d: %w: %s", tagID, impliedID, errs.InvalidSQL, err)
	}
	return nil
}

// Implications returns the ids a tag implies.
func (s *Store) Implications(ctx context.Context, tagID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT implied_tag_id FROM tag_implies WHERE tag_id = ?`, tagID)
	if err != nil {
		return nil, fmt.Errorf("store: listing implications of %d: %w: %s", tagID, errs.InvalidSQL, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning implication: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// WildcardMatch is one ranked hit from SearchTags.
type WildcardMatch struct {
	Name   string
	TagID  int64
	Source string // "tag", "alias", "modifier", "break_rule", "super_alias"
}

// SearchTags union-ranks direct tag-name matches and alias matches for a
// wildcard prefix (a single trailing '*' is implicit), capped at max
// results. Ranking: exact match, then prefix match, then close-in-length,
// then case-insensitive lexicographic — the same order tagengine's
// suggestion generator uses, exposed here as the store's raw
// database-wildcard primitive.
func (s *Store) SearchTags(ctx context.Context, prefix string, max int) ([]WildcardMatch, error) {
	like := strings.ToLower(prefix) + "%"
	var out []WildcardMatch

	rows, err := s.db.QueryContext(ctx, `SELECT name, id FROM tags WHERE name LIKE ? AND deleted = 0`, like)
	if err != nil {
		return nil, fmt.Errorf("store: searching tags: %w: %s", errs.InvalidSQL, err)
	}
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scanning tag match: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, WildcardMatch{Name: name, TagID: id, Source: "tag"})
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT alias, tag_id FROM tag_aliases WHERE alias LIKE ?`, like)
	if err != nil {
		return nil, fmt.Errorf("store: searching aliases: %w: %s", errs.InvalidSQL, err)
	}
	for rows.Next() {
		var alias string
		var id int64
		if err := rows.Scan(&alias, &id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scanning alias match: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, WildcardMatch{Name: alias, TagID: id, Source: "alias"})
	}
	rows.Close()

	return rankAndCap(prefix, out, max), nil
}

// RankLess is the strict-weak-order comparator suggestion ranking requires:
// exact matches first, then prefix matches, then close-in-length, then
// case-insensitive lexicographic. Exported so internal/tagengine's
// suggestion ranker can reuse it verbatim against non-store candidate
// lists (modifier names, break-rule patterns).
func RankLess(query, a, b string) bool {
	rank := func(cand string) int {
		lq, lc := strings.ToLower(query), strings.ToLower(cand)
		switch {
		case lc == lq:
			return 0
		case strings.HasPrefix(lc, lq):
			return 1
		default:
			return 2
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	if ra == 2 {
		// Close-in-length tiebreak within the "neither exact nor prefix"
		// bucket.
		da := abs(len(a) - len(query))
		db := abs(len(b) - len(query))
		if da != db {
			return da < db
		}
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return false
	}
	return la < lb
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// FindOrCreateAppliedTag deduplicates applied-tag rows: before inserting, it
// looks for an existing row with the same main tag, modifier set, and
// combine partner, reusing its id on a match.
func (s *Store) FindOrCreateAppliedTag(ctx context.Context, tx *Tx, at AppliedTag) (int64, error) {
	exec := s.db.ExecContext
	query := s.db.QueryContext
	if tx != nil {
		exec = tx.tx.ExecContext
		query = tx.tx.QueryContext
	}

	rows, err := query(ctx, `SELECT id, combine_word, combined_with_id FROM applied_tag WHERE tag_id = ?`, at.TagID)
	if err != nil {
		return 0, fmt.Errorf("store: searching applied tags: %w: %s", errs.InvalidSQL, err)
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		var combineWord string
		var combinedWith sql.NullInt64
		if err := rows.Scan(&id, &combineWord, &combinedWith); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scanning applied tag candidate: %w: %s", errs.InvalidSQL, err)
		}
		if combineWord != at.CombineWord {
			continue
		}
		if (combinedWith.Valid != (at.CombinedID != nil)) || (combinedWith.Valid && combinedWith.Int64 != *at.CombinedID) {
			continue
		}
		candidates = append(candidates, id)
	}
	rows.Close()

	for _, id := range candidates {
		mods, err := s.appliedTagModifiers(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if equalInt64s(mods, at.Modifiers) {
			return id, nil
		}
	}

	var combinedWith any
	if at.CombinedID != nil {
		combinedWith = *at.CombinedID
	}
	res, err := exec(ctx, `INSERT INTO applied_tag (tag_id, combine_word, combined_with_id) VALUES (?, ?, ?)`, at.TagID, at.CombineWord, combinedWith)
	if err != nil {
		return 0, fmt.Errorf("store: insert applied tag: %w: %s", errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert applied tag id: %w: %s", errs.InvalidSQL, err)
	}
	for i, modID := range at.Modifiers {
		if _, err := exec(ctx, `INSERT INTO applied_tag_modifier (applied_tag_id, modifier_id, position) VALUES (?, ?, ?)`, id, modID, i); err != nil {
			return 0, fmt.Errorf("store: insert applied tag modifier: %w: %s", errs.InvalidSQL, err)
		}
	}
	return id, nil
}

func (s *Store) appliedTagModifiers(ctx context.Context, tx *Tx, appliedTagID int64) ([]int64, error) {
	query := s.db.QueryContext
	if tx != nil {
		query = tx.tx.QueryContext
	}
	rows, err := query(ctx, `SELECT modifier_id FROM applied_tag_modifier WHERE applied_tag_id = ? ORDER BY position ASC`, appliedTagID)
	if err != nil {
		return nil, fmt.Errorf("store: listing applied tag modifiers: %w: %s", errs.InvalidSQL, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scanning applied tag modifier: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func equalInt64s(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AddAppliedTagToImage links an already-deduplicated applied tag to an
// image.
func (s *Store) AddAppliedTagToImage(ctx context.Context, imageID, appliedTagID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO image_applied_tag (image_id, applied_tag_id) VALUES (?, ?)`, imageID, appliedTagID)
	if err != nil {
		return fmt.Errorf("store: link applied tag %d to image %d: %w: %s", appliedTagID, imageID, errs.InvalidSQL, err)
	}
	return nil
}

// RemoveAppliedTagFromImage removes a single image/applied-tag link.
func (s *Store) RemoveAppliedTagFromImage(ctx context.Context, imageID, appliedTagID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM image_applied_tag WHERE image_id = ? AND applied_tag_id = ?`, imageID, appliedTagID)
	if err != nil {
		return fmt.Errorf("store: unlink applied tag %d from image %d: %w: %s", appliedTagID, imageID, errs.InvalidSQL, err)
	}
	return nil
}

// ImageHasAppliedTag reports whether imageID already carries appliedTagID.
func (s *Store) ImageHasAppliedTag(ctx context.Context, imageID, appliedTagID int64) (bool, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM image_applied_tag WHERE image_id = ? AND applied_tag_id = ?`, imageID, appliedTagID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("store: checking applied tag %d on image %d: %w: %s", appliedTagID, imageID, errs.InvalidSQL, err)
	}
	return n > 0, nil
}

// CoalesceAppliedTags scans every applied-tag row and merges duplicates:
// for each set of rows sharing (tag, modifiers, combine partner), every
// referencing row (image_applied_tag, applied_tag_combine on both sides) is
// rewritten to the kept id and the redundant rows are deleted, then
// duplicate combine rows are removed. Preserves the set of
// (image, effective-tag-expression) relationships.
func (s *Store) CoalesceAppliedTags(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.QueryContext(ctx, `SELECT id, tag_id, combine_word, combined_with_id FROM applied_tag ORDER BY id ASC`)
		if err != nil {
			return fmt.Errorf("store: scanning applied tags for coalesce: %w: %s", errs.InvalidSQL, err)
		}
		type row struct {
			id, tagID    int64
			combineWord  string
			combinedWith sql.NullInt64
		}
		var all []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.tagID, &r.combineWord, &r.combinedWith); err != nil {
				rows.Close()
				return fmt.Errorf("store: scanning applied tag row: %w: %s", errs.InvalidSQL, err)
			}
			all = append(all, r)
		}
		rows.Close()

		keepOf := make(map[int64]int64) // redundant id -> kept id
		type key struct {
			tagID        int64
			combineWord  string
			combinedWith int64
			hasCombined  bool
			mods         string
		}
		seen := make(map[key]int64)
		for _, r := range all {
			mods, err := s.appliedTagModifiers(ctx, tx, r.id)
			if err != nil {
				return err
			}
			modKey := fmt.Sprint(mods)
			k := key{tagID: r.tagID, combineWord: r.combineWord, mods: modKey}
			if r.combinedWith.Valid {
				k.hasCombined = true
				k.combinedWith = r.combinedWith.Int64
			}
			if keepID, ok := seen[k]; ok {
				keepOf[r.id] = keepID
				continue
			}
			seen[k] = r.id
		}

		for redundant, keep := range keepOf {
			if _, err := tx.tx.ExecContext(ctx, `UPDATE OR IGNORE image_applied_tag SET applied_tag_id = ? WHERE applied_tag_id = ?`, keep, redundant); err != nil {
				return fmt.Errorf("store: rewriting image_applied_tag during coalesce: %w: %s", errs.InvalidSQL, err)
			}
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM image_applied_tag WHERE applied_tag_id = ?`, redundant); err != nil {
				return fmt.Errorf("store: cleaning image_applied_tag during coalesce: %w: %s", errs.InvalidSQL, err)
			}
			if _, err := tx.tx.ExecContext(ctx, `UPDATE OR IGNORE applied_tag_combine SET left_id = ? WHERE left_id = ?`, keep, redundant); err != nil {
				return fmt.Errorf("store: rewriting combine left during coalesce: %w: %s", errs.InvalidSQL, err)
			}
			if _, err := tx.tx.ExecContext(ctx, `UPDATE OR IGNORE applied_tag_combine SET right_id = ? WHERE right_id = ?`, keep, redundant); err != nil {
				return fmt.Errorf("store: rewriting combine right during coalesce: %w: %s", errs.InvalidSQL, err)
			}
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM applied_tag_combine WHERE left_id = ? OR right_id = ?`, redundant, redundant); err != nil {
				return fmt.Errorf("store: cleaning combine rows during coalesce: %w: %s", errs.InvalidSQL, err)
			}
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM applied_tag WHERE id = ?`, redundant); err != nil {
				return fmt.Errorf("store: deleting redundant applied tag: %w: %s", errs.InvalidSQL, err)
			}
		}

		_, err = tx.tx.ExecContext(ctx, `
			DELETE FROM applied_tag_combine
			WHERE rowid NOT IN (SELECT MIN(rowid) FROM applied_tag_combine GROUP BY left_id, right_id)`)
		if err != nil {
			return fmt.Errorf("store: deduplicating combine rows during coalesce: %w: %s", errs.InvalidSQL, err)
		}
		return nil
	})
}
