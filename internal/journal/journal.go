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

// Package journal implements a bounded undo/redo stack of reversible store
// mutations. Each concrete action is a tagged variant implementing a small
// capability interface (Redo/Undo/SerializePayload/OnPurge) instead of a
// virtual-inheritance hierarchy.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/changebus"
	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/metrics"
	"github.com/dualview/workstation/internal/store"
)

// Type tags a concrete Action for persistence. Stored verbatim in the
// actions table's "type" column.
type Type string

const (
	TypeImageDelete               Type = "ImageDelete"
	TypeImageMerge                Type = "ImageMerge"
	TypeImageDeleteFromCollection Type = "ImageDeleteFromCollection"
	TypeCollectionReorder         Type = "CollectionReorder"
	TypeNetGalleryDelete          Type = "NetGalleryDelete"
	TypeCollectionDelete          Type = "CollectionDelete"
)

// Action is the capability interface every concrete action type
// implements. Redo performs (or re-performs) the operation; Undo reverses
// it; SerializePayload produces the self-contained JSON blob persisted
// alongside the row; OnPurge applies permanent side effects when the
// action is trimmed out of history (a no-op default is acceptable for
// actions with nothing irreversible to finalise).
type Action interface {
	Type() Type
	Description() string
	Redo(ctx context.Context, s *store.Store) error
	Undo(ctx context.Context, s *store.Store) error
	SerializePayload() ([]byte, error)
	OnPurge(ctx context.Context, s *store.Store) error
}

// Decoder reconstructs a concrete Action from its persisted type tag and
// JSON payload. Registered per Type in the package-level decoders table so
// Journal.Load can reconstitute history without a type switch living
// outside the package.
type Decoder func(payload []byte) (Action, error)

var decoders = map[Type]Decoder{}

func register(t Type, d Decoder) { decoders[t] = d }

// entry pairs an in-memory Action with the database row backing it.
type entry struct {
	action Action
	rowID  int64
}

// Journal is a bounded undo/redo stack over a single store. The zero value
// is not usable; use New.
type Journal struct {
	mu         sync.Mutex
	store      *store.Store
	bus        *changebus.Bus
	maxHistory int
	stack      []entry
	top        int // stack[:top] is performed; stack[top:] is undone but retained for redo
}

// New returns an empty journal bounded to maxHistory entries.
func New(s *store.Store, bus *changebus.Bus, maxHistory int) *Journal {
	return &Journal{store: s, bus: bus, maxHistory: maxHistory}
}

// Load reconstitutes history from persisted action rows, in creation
// order. Rows with performed=true become the performed prefix of the
// stack; rows with performed=false become the undone suffix. Loading an
// action must reconstitute an object whose Undo/Redo behave identically to
// an in-memory instance.
func (j *Journal) Load(ctx context.Context, rows []store.ActionRow) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stack = j.stack[:0]
	j.top = 0
	for _, row := range rows {
		dec, ok := decoders[Type(row.Type)]
		if !ok {
			return fmt.Errorf("journal: %w: unknown action type %q", errs.InvalidState, row.Type)
		}
		action, err := dec([]byte(row.JSONPayload))
		if err != nil {
			return fmt.Errorf("journal: decoding action %d: %w", row.ID, err)
		}
		j.stack = append(j.stack, entry{action: action, rowID: row.ID})
		if row.Performed {
			j.top = len(j.stack)
		}
	}
	return nil
}

// Record performs action via Redo; on success it is appended to the stack
// and any actions previously above the current top (redoable but
// superseded) are discarded: their rows are deleted and OnPurge is not run
// for them. Trims the oldest entry if history
// now exceeds maxHistory.
func (j *Journal) Record(ctx context.Context, action Action) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := action.Redo(ctx, j.store); err != nil {
		return fmt.Errorf("journal: record %s: %w", action.Type(), err)
	}

	for i := len(j.stack) - 1; i >= j.top; i-- {
		discarded := j.stack[i]
		if err := j.store.DeleteAction(ctx, discarded.rowID); err != nil {
			klog.Errorf("journal: deleting superseded action %d: %s", discarded.rowID, err)
		}
	}
	j.stack = j.stack[:j.top]

	payload, err := action.SerializePayload()
	if err != nil {
		return fmt.Errorf("journal: serialising %s: %w", action.Type(), err)
	}
	rowID, err := j.store.InsertAction(ctx, nil, store.ActionRow{
		Type:        string(action.Type()),
		Performed:   true,
		JSONPayload: string(payload),
		Description: action.Description(),
	})
	if err != nil {
		return err
	}
	j.stack = append(j.stack, entry{action: action, rowID: rowID})
	j.top = len(j.stack)
	j.fire(changebus.ActionRecorded, rowID)

	for len(j.stack) > j.maxHistory {
		if err := j.purgeOldestLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Undo reverses the most recently performed action.
func (j *Journal) Undo(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.top == 0 {
		return fmt.Errorf("journal: %w: nothing to undo", errs.InvalidState)
	}
	e := j.stack[j.top-1]
	if err := e.action.Undo(ctx, j.store); err != nil {
		return fmt.Errorf("journal: undo %s: %w", e.action.Type(), err)
	}
	if err := j.store.SetActionPerformed(ctx, e.rowID, false); err != nil {
		return err
	}
	j.top--
	metrics.ActionsUndone.Inc()
	j.fire(changebus.ActionUndone, e.rowID)
	return nil
}

// Redo re-performs the next undone action.
func (j *Journal) Redo(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.top >= len(j.stack) {
		return fmt.Errorf("journal: %w: nothing to redo", errs.InvalidState)
	}
	e := j.stack[j.top]
	if err := e.action.Redo(ctx, j.store); err != nil {
		return fmt.Errorf("journal: redo %s: %w", e.action.Type(), err)
	}
	if err := j.store.SetActionPerformed(ctx, e.rowID, true); err != nil {
		return err
	}
	j.top++
	metrics.ActionsRedone.Inc()
	j.fire(changebus.ActionRedone, e.rowID)
	return nil
}

// CanUndo reports whether Undo would have an action to operate on.
func (j *Journal) CanUndo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.top > 0
}

// CanRedo reports whether Redo would have an action to operate on.
func (j *Journal) CanRedo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.top < len(j.stack)
}

// purgeOldestLocked trims stack[0], applying its permanent side effects via
// OnPurge only if it is currently in the performed prefix — an undone
// entry being purged must not take its on-purge side effects, since the
// operation was reversed.
func (j *Journal) purgeOldestLocked(ctx context.Context) error {
	oldest := j.stack[0]
	if 0 < j.top {
		if err := oldest.action.OnPurge(ctx, j.store); err != nil {
			return fmt.Errorf("journal: purging %s: %w", oldest.action.Type(), err)
		}
	}
	if err := j.store.DeleteAction(ctx, oldest.rowID); err != nil {
		return err
	}
	j.stack = j.stack[1:]
	if j.top > 0 {
		j.top--
	}
	metrics.ActionsPurged.Inc()
	j.fire(changebus.ActionPurged, oldest.rowID)
	return nil
}

func (j *Journal) fire(kind changebus.ChangeKind, id int64) {
	if j.bus == nil {
		return
	}
	j.bus.Fire(kind, id)
}

func marshalPayload(v any) ([]byte, error) {
	return json.Marshal(v)
}
