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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateBreakRuleRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tag, err := s.CreateTag(ctx, "ponytail", "", 0, false)
	require.NoError(t, err)

	br, err := s.CreateBreakRule(ctx, "*tail", tag.ID, []string{"pony"})
	require.NoError(t, err)
	require.Equal(t, "*tail", br.Pattern)
	require.Equal(t, []string{"pony"}, br.ModifierNames)

	got, err := s.MatchBreakRule(ctx, "ponytail")
	require.NoError(t, err)
	require.Equal(t, br.ID, got.ID)
	require.Equal(t, tag.ID, got.TagID)
	require.Equal(t, []string{"pony"}, got.ModifierNames)
}

func TestMatchBreakRuleNoMatchReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tag, _ := s.CreateTag(ctx, "hair", "", 0, false)
	_, err := s.CreateBreakRule(ctx, "*tail", tag.ID, nil)
	require.NoError(t, err)

	_, err = s.MatchBreakRule(ctx, "redhead")
	require.Error(t, err)
}

func TestRemoveBreakRuleDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tag, _ := s.CreateTag(ctx, "hair", "", 0, false)
	br, err := s.CreateBreakRule(ctx, "*tail", tag.ID, nil)
	require.NoError(t, err)

	require.NoError(t, s.RemoveBreakRule(ctx, br.ID))
	_, err = s.MatchBreakRule(ctx, "ponytail")
	require.Error(t, err)
}

func TestSearchBreakRulesHonoursPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tag, _ := s.CreateTag(ctx, "hair", "", 0, false)
	_, err := s.CreateBreakRule(ctx, "redtail", tag.ID, nil)
	require.NoError(t, err)
	_, err = s.CreateBreakRule(ctx, "bluetail", tag.ID, nil)
	require.NoError(t, err)

	matches, err := s.SearchBreakRules(ctx, "red", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "redtail", matches[0].Name)
	require.Equal(t, "break_rule", matches[0].Source)
}

func TestSearchModifiersHonoursPrefixAndDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tag_modifiers (name, deleted) VALUES (?, 0)`, "red")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `INSERT INTO tag_modifiers (name, deleted) VALUES (?, 0)`, "raven")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `INSERT INTO tag_modifiers (name, deleted) VALUES (?, 1)`, "removed")
	require.NoError(t, err)

	matches, err := s.SearchModifiers(ctx, "re", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "red", matches[0].Name)
}

func TestSearchSuperAliasesHonoursPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tag_super_aliases (alias, expansion) VALUES (?, ?)`, "redux", "hair")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `INSERT INTO tag_super_aliases (alias, expansion) VALUES (?, ?)`, "bluex", "eye")
	require.NoError(t, err)

	matches, err := s.SearchSuperAliases(ctx, "red", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "redux", matches[0].Name)
}
