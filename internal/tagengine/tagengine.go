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

// Package tagengine parses free-text tag expressions into structured
// AppliedTag values, and generates ranked suggestions for partial input.
package tagengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/store"
)

// Vocabulary is the subset of *store.Store the engine needs to resolve
// names, aliases, modifiers and break rules. Declared as an interface so
// tests can supply an in-memory fake instead of a real database.
type Vocabulary interface {
	TagByName(ctx context.Context, name string) (*store.Tag, error)
	TagByID(ctx context.Context, id int64) (*store.Tag, error)
	ResolveAlias(ctx context.Context, alias string) (int64, bool, error)
	ResolveSuperAlias(ctx context.Context, alias string) (string, bool, error)
	SearchTags(ctx context.Context, prefix string, max int) ([]store.WildcardMatch, error)
	FindOrCreateAppliedTag(ctx context.Context, tx *store.Tx, at store.AppliedTag) (int64, error)

	MatchBreakRule(ctx context.Context, s string) (*store.BreakRule, error)
	SearchBreakRules(ctx context.Context, prefix string, max int) ([]store.WildcardMatch, error)
	SearchModifiers(ctx context.Context, prefix string, max int) ([]store.WildcardMatch, error)
	SearchSuperAliases(ctx context.Context, prefix string, max int) ([]store.WildcardMatch, error)
}

// Engine parses user strings against a Vocabulary.
type Engine struct {
	vocab Vocabulary
}

// New returns an Engine backed by vocab.
func New(vocab Vocabulary) *Engine {
	return &Engine{vocab: vocab}
}

// Parsed is the structured result of a successful Parse: a tag id, its
// ordered modifier names, and an optional combine word plus right-hand
// side, mirroring store.AppliedTag but expressed over names rather than
// already-resolved modifier ids (resolution to ids happens in Resolve).
type Parsed struct {
	TagName     string
	Modifiers   []string
	CombineWord string
	Combined    *Parsed
}

// Parse tries each strategy in order, returning the first that succeeds. On
// total failure it returns an error aggregating every strategy's failure
// reason via go-multierror, the same "try several approaches, report all
// failures" pattern used when trying multiple registries in turn.
func (e *Engine) Parse(ctx context.Context, input string) (*Parsed, error) {
	var errsAcc *multierror.Error

	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return nil, fmt.Errorf("tagengine: %w: empty input", errs.InvalidArgument)
	}

	// 1. Whole string as a tag name or alias; recurse through super-aliases.
	if p, err := e.parseWholeString(ctx, trimmed); err == nil {
		return p, nil
	} else {
		errsAcc = multierror.Append(errsAcc, err)
	}

	// 2. Strip internal whitespace and retry step 1.
	collapsed := strings.Join(strings.Fields(trimmed), "")
	if collapsed != trimmed {
		if p, err := e.parseWholeString(ctx, collapsed); err == nil {
			return p, nil
		} else {
			errsAcc = multierror.Append(errsAcc, err)
		}
	}

	words := strings.Fields(trimmed)

	// 3. "modifier(s) then tag" and its symmetric "tag then modifier(s)".
	if p, err := e.parseModifiersAndTag(ctx, words); err == nil {
		return p, nil
	} else {
		errsAcc = multierror.Append(errsAcc, err)
	}

	// 4. Composite: split at an interior word as the combine word.
	if p, err := e.parseComposite(ctx, words); err == nil {
		return p, nil
	} else {
		errsAcc = multierror.Append(errsAcc, err)
	}

	// 5. Break rules over the whole trimmed string.
	if p, err := e.parseBreakRule(ctx, trimmed); err == nil {
		return p, nil
	} else {
		errsAcc = multierror.Append(errsAcc, err)
	}

	// 6. Strip a trailing 's' and recurse once.
	if strings.HasSuffix(trimmed, "s") && len(trimmed) > 1 {
		if p, err := e.Parse(ctx, trimmed[:len(trimmed)-1]); err == nil {
			return p, nil
		} else {
			errsAcc = multierror.Append(errsAcc, err)
		}
	}

	// 7. Fail with an aggregated reason.
	errsAcc = multierror.Append(errsAcc, fmt.Errorf("tagengine: %w: unknown tag %q", errs.NotFound, input))
	klog.V(4).Infof("tagengine: parse %q failed after all strategies: %s", input, errsAcc)
	return nil, errsAcc.ErrorOrNil()
}

func (e *Engine) parseWholeString(ctx context.Context, s string) (*Parsed, error) {
	if tag, err := e.vocab.TagByName(ctx, s); err == nil {
		return &Parsed{TagName: tag.Name}, nil
	}
	if tagID, ok, err := e.vocab.ResolveAlias(ctx, s); err != nil {
		return nil, err
	} else if ok {
		tag, err := e.vocab.TagByID(ctx, tagID)
		if err != nil {
			return nil, err
		}
		return &Parsed{TagName: tag.Name}, nil
	}
	if expansion, ok, err := e.vocab.ResolveSuperAlias(ctx, s); err != nil {
		return nil, err
	} else if ok {
		return e.Parse(ctx, expansion)
	}
	return nil, fmt.Errorf("tagengine: %q is not a known tag, alias, or super-alias", s)
}

func (e *Engine) parseModifiersAndTag(ctx context.Context, words []string) (*Parsed, error) {
	if len(words) < 2 {
		return nil, fmt.Errorf("tagengine: need at least two words for modifier+tag")
	}
	var lastErr error
	for split := 1; split < len(words); split++ {
		// modifiers then tag
		if p, err := e.tryModifiersTag(ctx, words[:split], words[split:]); err == nil {
			return p, nil
		} else {
			lastErr = err
		}
		// tag then modifiers (symmetric case)
		if p, err := e.tryModifiersTag(ctx, words[split:], words[:split]); err == nil {
			return p, nil
		} else {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("tagengine: no modifier+tag split matched: %w", lastErr)
}

func (e *Engine) tryModifiersTag(ctx context.Context, modWords, tagWords []string) (*Parsed, error) {
	for _, w := range modWords {
		matches, err := e.vocab.SearchModifiers(ctx, w, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 || matches[0].Name != w {
			return nil, fmt.Errorf("tagengine: %q is not a known modifier", w)
		}
	}
	tag, err := e.vocab.TagByName(ctx, strings.Join(tagWords, " "))
	if err != nil {
		return nil, err
	}
	return &Parsed{TagName: tag.Name, Modifiers: modWords}, nil
}

func (e *Engine) parseComposite(ctx context.Context, words []string) (*Parsed, error) {
	if len(words) < 3 {
		return nil, fmt.Errorf("tagengine: need at least three words for a composite")
	}
	var lastErr error
	for split := 1; split < len(words)-1; split++ {
		left, err := e.Parse(ctx, strings.Join(words[:split], " "))
		if err != nil {
			lastErr = err
			continue
		}
		combineWord := words[split]
		right, err := e.Parse(ctx, strings.Join(words[split+1:], " "))
		if err != nil {
			lastErr = err
			continue
		}
		left.CombineWord = combineWord
		left.Combined = right
		return left, nil
	}
	return nil, fmt.Errorf("tagengine: no composite split matched: %w", lastErr)
}

func (e *Engine) parseBreakRule(ctx context.Context, s string) (*Parsed, error) {
	br, err := e.vocab.MatchBreakRule(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("tagengine: %w: no break rule matched %q", errs.NotFound, s)
	}
	tag, err := e.vocab.TagByID(ctx, br.TagID)
	if err != nil {
		return nil, err
	}
	return &Parsed{TagName: tag.Name, Modifiers: br.ModifierNames}, nil
}

// Suggest lexes the longest leading run of words that Parse accepts as a
// complete applied tag, then generates ranked wildcard completions for
// whatever remains. Ordered exact match, prefix match, close-in-length,
// then case-insensitive lexicographic, via store.RankLess's strict-weak-order
// comparator.
func (e *Engine) Suggest(ctx context.Context, input string, max int) ([]store.WildcardMatch, error) {
	words := strings.Fields(strings.ToLower(input))
	if len(words) == 0 {
		return nil, nil
	}

	prefixLen := e.longestParsablePrefix(ctx, words)
	tailWords := words[prefixLen:]
	if len(tailWords) == 0 {
		return nil, nil
	}
	return e.suggestTail(ctx, tailWords, max)
}

// longestParsablePrefix returns the length, in words, of the longest
// leading run of words, short of the last word, that Parse accepts as a
// complete applied tag, or 0 if no such run parses. The last word is always
// left for suggestTail, so a single-word input yields 0.
func (e *Engine) longestParsablePrefix(ctx context.Context, words []string) int {
	for n := len(words) - 1; n >= 1; n-- {
		if _, err := e.Parse(ctx, strings.Join(words[:n], " ")); err == nil {
			return n
		}
	}
	return 0
}

// suggestTail merges wildcard completions for tailWords' last (partial)
// word across every vocabulary source — tag names, aliases, modifier
// names, break-rule patterns, super-aliases — then recurses on the tail's
// own tail (tailWords with that last word dropped), so an earlier word
// among tailWords that itself didn't fully resolve also contributes
// composite completions.
func (e *Engine) suggestTail(ctx context.Context, tailWords []string, max int) ([]store.WildcardMatch, error) {
	tail := tailWords[len(tailWords)-1]

	var out []store.WildcardMatch
	for _, search := range []func(context.Context, string, int) ([]store.WildcardMatch, error){
		e.vocab.SearchTags,
		e.vocab.SearchModifiers,
		e.vocab.SearchBreakRules,
		e.vocab.SearchSuperAliases,
	} {
		matches, err := search(ctx, tail, max)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}

	if len(tailWords) > 1 {
		rest, err := e.suggestTail(ctx, tailWords[:len(tailWords)-1], max)
		if err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}

	sort.SliceStable(out, func(i, j int) bool { return store.RankLess(tail, out[i].Name, out[j].Name) })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}
