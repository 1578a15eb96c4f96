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
	"sort"
	"strings"

	"github.com/dualview/workstation/internal/errs"
)

// BreakRule is a wildcard literal pattern (common_composite_tags) that
// turns a matching free-text fragment straight into a (tag, modifiers)
// pair, bypassing the rest of tagengine's parse strategies.
type BreakRule struct {
	ID            int64
	Pattern       string
	TagID         int64
	ModifierNames []string
}

// CreateBreakRule inserts a break rule. modifierNames is stored as a
// comma-joined list and split back out on read.
func (s *Store) CreateBreakRule(ctx context.Context, pattern string, tagID int64, modifierNames []string) (*BreakRule, error) {
	joined := strings.Join(modifierNames, ",")
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO common_composite_tags (pattern, tag_id, modifier_names) VALUES (?, ?, ?)`,
		strings.ToLower(pattern), tagID, joined)
	if err != nil {
		return nil, fmt.Errorf("store: create break rule %q: %w: %s", pattern, errs.InvalidSQL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: create break rule id: %w: %s", errs.InvalidSQL, err)
	}
	return &BreakRule{ID: id, Pattern: strings.ToLower(pattern), TagID: tagID, ModifierNames: modifierNames}, nil
}

// RemoveBreakRule deletes a break rule by id.
func (s *Store) RemoveBreakRule(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM common_composite_tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: remove break rule %d: %w: %s", id, errs.InvalidSQL, err)
	}
	return nil
}

// MatchBreakRule returns the first break rule whose pattern GLOB-matches s
// (lower-cased), or errs.NotFound. Matching is pushed into SQLite's GLOB
// operator rather than a hand-rolled wildcard matcher, the same way
// SearchTags leaves prefix matching to LIKE.
func (s *Store) MatchBreakRule(ctx context.Context, str string) (*BreakRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pattern, tag_id, modifier_names FROM common_composite_tags WHERE LOWER(?) GLOB pattern LIMIT 1`,
		str)
	br, err := scanBreakRule(row)
	if err != nil {
		return nil, fmt.Errorf("store: no break rule matches %q: %w", str, errs.NotFound)
	}
	return br, nil
}

func scanBreakRule(row *sql.Row) (*BreakRule, error) {
	var br BreakRule
	var modifierNames string
	if err := row.Scan(&br.ID, &br.Pattern, &br.TagID, &modifierNames); err != nil {
		return nil, err
	}
	if modifierNames != "" {
		br.ModifierNames = strings.Split(modifierNames, ",")
	}
	return &br, nil
}

// SearchBreakRules union-ranks break-rule patterns for a wildcard prefix,
// mirroring SearchTags so tagengine's suggestion generator can merge both
// result sets with the same comparator.
func (s *Store) SearchBreakRules(ctx context.Context, prefix string, max int) ([]WildcardMatch, error) {
	like := strings.ToLower(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT pattern, tag_id FROM common_composite_tags WHERE pattern LIKE ?`, like)
	if err != nil {
		return nil, fmt.Errorf("store: searching break rules: %w: %s", errs.InvalidSQL, err)
	}
	defer rows.Close()

	var out []WildcardMatch
	for rows.Next() {
		var pattern string
		var tagID int64
		if err := rows.Scan(&pattern, &tagID); err != nil {
			return nil, fmt.Errorf("store: scanning break rule match: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, WildcardMatch{Name: pattern, TagID: tagID, Source: "break_rule"})
	}
	return rankAndCap(prefix, out, max), nil
}

// SearchModifiers union-ranks modifier names for a wildcard prefix,
// mirroring SearchTags so tagengine's suggestion generator can merge
// modifier candidates with the same comparator.
func (s *Store) SearchModifiers(ctx context.Context, prefix string, max int) ([]WildcardMatch, error) {
	like := strings.ToLower(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT name, id FROM tag_modifiers WHERE name LIKE ? AND deleted = 0`, like)
	if err != nil {
		return nil, fmt.Errorf("store: searching modifiers: %w: %s", errs.InvalidSQL, err)
	}
	defer rows.Close()

	var out []WildcardMatch
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("store: scanning modifier match: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, WildcardMatch{Name: name, TagID: id, Source: "modifier"})
	}
	return rankAndCap(prefix, out, max), nil
}

// SearchSuperAliases union-ranks super-alias names for a wildcard prefix,
// mirroring SearchTags so tagengine's suggestion generator can merge
// super-alias candidates with the same comparator.
func (s *Store) SearchSuperAliases(ctx context.Context, prefix string, max int) ([]WildcardMatch, error) {
	like := strings.ToLower(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT alias FROM tag_super_aliases WHERE alias LIKE ?`, like)
	if err != nil {
		return nil, fmt.Errorf("store: searching super aliases: %w: %s", errs.InvalidSQL, err)
	}
	defer rows.Close()

	var out []WildcardMatch
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("store: scanning super alias match: %w: %s", errs.InvalidSQL, err)
		}
		out = append(out, WildcardMatch{Name: alias, Source: "super_alias"})
	}
	return rankAndCap(prefix, out, max), nil
}

// rankAndCap applies RankLess and truncates to max, the tail shared by every
// Search* method here and by SearchTags.
func rankAndCap(prefix string, out []WildcardMatch, max int) []WildcardMatch {
	sort.SliceStable(out, func(i, j int) bool { return RankLess(prefix, out[i].Name, out[j].Name) })
	if len(out) > max {
		out = out[:max]
	}
	return out
}
