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

package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dualview/workstation/internal/store"
)

func init() {
	register(TypeImageDelete, func(p []byte) (Action, error) {
		var a ImageDelete
		if err := json.Unmarshal(p, &a); err != nil {
			return nil, err
		}
		return &a, nil
	})
	register(TypeImageMerge, func(p []byte) (Action, error) {
		var a ImageMerge
		if err := json.Unmarshal(p, &a); err != nil {
			return nil, err
		}
		return &a, nil
	})
	register(TypeImageDeleteFromCollection, func(p []byte) (Action, error) {
		var a ImageDeleteFromCollection
		if err := json.Unmarshal(p, &a); err != nil {
			return nil, err
		}
		return &a, nil
	})
	register(TypeCollectionReorder, func(p []byte) (Action, error) {
		var a CollectionReorder
		if err := json.Unmarshal(p, &a); err != nil {
			return nil, err
		}
		return &a, nil
	})
	register(TypeNetGalleryDelete, func(p []byte) (Action, error) {
		var a NetGalleryDelete
		if err := json.Unmarshal(p, &a); err != nil {
			return nil, err
		}
		return &a, nil
	})
	register(TypeCollectionDelete, func(p []byte) (Action, error) {
		var a CollectionDelete
		if err := json.Unmarshal(p, &a); err != nil {
			return nil, err
		}
		return &a, nil
	})
}

// ImageDelete marks a set of images deleted, or reverts that.
type ImageDelete struct {
	Images []int64 `json:"images"`
}

func (a *ImageDelete) Type() Type          { return TypeImageDelete }
func (a *ImageDelete) Description() string { return fmt.Sprintf("delete %d image(s)", len(a.Images)) }

func (a *ImageDelete) Redo(ctx context.Context, s *store.Store) error {
	for _, id := range a.Images {
		if err := s.SetDeleted(ctx, nil, id, true); err != nil {
			return err
		}
	}
	return nil
}

func (a *ImageDelete) Undo(ctx context.Context, s *store.Store) error {
	for _, id := range a.Images {
		if err := s.SetDeleted(ctx, nil, id, false); err != nil {
			return err
		}
	}
	return nil
}

func (a *ImageDelete) SerializePayload() ([]byte, error) { return marshalPayload(a) }

// OnPurge permanently removes the image rows and files. Only called while
// the delete is still in effect (see Journal.purgeOldestLocked).
func (a *ImageDelete) OnPurge(ctx context.Context, s *store.Store) error {
	for _, id := range a.Images {
		if err := s.PurgeImage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// collectionMembership captures the (collection, show_order) pairs an
// image belonged to, so ImageMerge's undo can restore them exactly.
type collectionMembership struct {
	Collection int64 `json:"collection"`
	Order      int   `json:"order"`
}

// ImageMerge folds Sources into Target: distinct tags are copied onto
// Target, Target joins every collection a source was in (at the source's
// show_order) if not already present, and sources are marked deleted and
// merged. AddedAppliedTags/AddedCollections are captured at Redo time so Undo can
// reverse exactly those additions, not a recomputed guess.
type ImageMerge struct {
	Target      int64                  `json:"target"`
	Images      []int64                `json:"images"`
	Tags        []string               `json:"tags"`
	Collections []collectionMembership `json:"collections"`

	// AddedAppliedTags is resolved during Redo: exactly the applied-tag ids
	// that were newly attached to Target and did not already carry it, so
	// Undo detaches only those and not any tag Target already had.
	AddedAppliedTags []int64 `json:"added_applied_tags,omitempty"`

	// AddedCollections is resolved during Redo: the collections Target
	// joined because it was not already a member, so Undo removes Target
	// only from those.
	AddedCollections []int64 `json:"added_collections,omitempty"`
}

func (a *ImageMerge) Type() Type { return TypeImageMerge }
func (a *ImageMerge) Description() string {
	return fmt.Sprintf("merge %d image(s) into %d", len(a.Images), a.Target)
}

func (a *ImageMerge) Redo(ctx context.Context, s *store.Store) error {
	a.AddedAppliedTags = nil
	for _, tagName := range a.Tags {
		tag, err := s.TagByName(ctx, tagName)
		if err != nil {
			continue // tag vocabulary resolution belongs to tagengine; skip unknown names defensively
		}
		id, err := s.FindOrCreateAppliedTag(ctx, nil, store.AppliedTag{TagID: tag.ID})
		if err != nil {
			return err
		}
		already, err := s.ImageHasAppliedTag(ctx, a.Target, id)
		if err != nil {
			return err
		}
		if already {
			continue
		}
		if err := s.AddAppliedTagToImage(ctx, a.Target, id); err != nil {
			return err
		}
		a.AddedAppliedTags = append(a.AddedAppliedTags, id)
	}
	a.AddedCollections = nil
	for _, m := range a.Collections {
		members, err := s.ImagesInCollection(ctx, m.Collection)
		if err != nil {
			return err
		}
		if containsImage(members, a.Target) {
			continue
		}
		if err := s.AddImageToCollection(ctx, nil, m.Collection, a.Target, m.Order); err != nil {
			return err
		}
		a.AddedCollections = append(a.AddedCollections, m.Collection)
	}
	for _, id := range a.Images {
		if err := s.SetMerged(ctx, id, true); err != nil {
			return err
		}
		if err := s.SetDeleted(ctx, nil, id, true); err != nil {
			return err
		}
	}
	return nil
}

func (a *ImageMerge) Undo(ctx context.Context, s *store.Store) error {
	for _, id := range a.Images {
		if err := s.SetDeleted(ctx, nil, id, false); err != nil {
			return err
		}
		if err := s.SetMerged(ctx, id, false); err != nil {
			return err
		}
	}
	for _, c := range a.AddedCollections {
		if err := s.RemoveImageFromCollection(ctx, nil, c, a.Target, false); err != nil {
			return err
		}
	}
	for _, id := range a.AddedAppliedTags {
		if err := s.RemoveAppliedTagFromImage(ctx, a.Target, id); err != nil {
			return err
		}
	}
	return nil
}

func (a *ImageMerge) SerializePayload() ([]byte, error) { return marshalPayload(a) }

func (a *ImageMerge) OnPurge(ctx context.Context, s *store.Store) error {
	for _, id := range a.Images {
		if err := s.PurgeImage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ImageDeleteFromCollection removes a set of images from a collection.
// reparented records, per image, whether this action's Redo is what caused
// it to land in Uncategorized — Undo only removes it from there if so.
type ImageDeleteFromCollection struct {
	Collection  int64           `json:"collection"`
	Images      []int64         `json:"images"`
	Reparented  map[int64]bool  `json:"reparented"`
}

func (a *ImageDeleteFromCollection) Type() Type { return TypeImageDeleteFromCollection }
func (a *ImageDeleteFromCollection) Description() string {
	return fmt.Sprintf("remove %d image(s) from collection %d", len(a.Images), a.Collection)
}

func (a *ImageDeleteFromCollection) Redo(ctx context.Context, s *store.Store) error {
	if a.Reparented == nil {
		a.Reparented = make(map[int64]bool)
	}
	for _, id := range a.Images {
		before, err := s.ImagesInCollection(ctx, store.DatabaseUncategorizedCollectionID)
		if err != nil {
			return err
		}
		beforeHad := containsImage(before, id)
		if err := s.RemoveImageFromCollection(ctx, nil, a.Collection, id, true); err != nil {
			return err
		}
		after, err := s.ImagesInCollection(ctx, store.DatabaseUncategorizedCollectionID)
		if err != nil {
			return err
		}
		a.Reparented[id] = !beforeHad && containsImage(after, id)
	}
	return nil
}

func (a *ImageDeleteFromCollection) Undo(ctx context.Context, s *store.Store) error {
	for _, id := range a.Images {
		if a.Reparented[id] {
			if err := s.RemoveImageFromCollection(ctx, nil, store.DatabaseUncategorizedCollectionID, id, false); err != nil {
				return err
			}
		}
		if err := s.AddImageToCollection(ctx, nil, a.Collection, id, 0); err != nil {
			return err
		}
	}
	return nil
}

func (a *ImageDeleteFromCollection) SerializePayload() ([]byte, error) { return marshalPayload(a) }
func (a *ImageDeleteFromCollection) OnPurge(ctx context.Context, s *store.Store) error { return nil }

func containsImage(images []*store.Image, id int64) bool {
	for _, img := range images {
		if img.ID == id {
			return true
		}
	}
	return false
}

// CollectionReorder rewrites a collection's show_order; Undo restores the
// previous sequence symmetrically.
type CollectionReorder struct {
	Collection int64   `json:"collection"`
	OldOrder   []int64 `json:"old_order"`
	NewOrder   []int64 `json:"new_order"`
}

func (a *CollectionReorder) Type() Type          { return TypeCollectionReorder }
func (a *CollectionReorder) Description() string { return fmt.Sprintf("reorder collection %d", a.Collection) }

func (a *CollectionReorder) Redo(ctx context.Context, s *store.Store) error {
	return s.ReorderCollection(ctx, nil, a.Collection, a.NewOrder)
}

func (a *CollectionReorder) Undo(ctx context.Context, s *store.Store) error {
	return s.ReorderCollection(ctx, nil, a.Collection, a.OldOrder)
}

func (a *CollectionReorder) SerializePayload() ([]byte, error)                  { return marshalPayload(a) }
func (a *CollectionReorder) OnPurge(ctx context.Context, s *store.Store) error { return nil }

// NetGalleryDelete soft-deletes a net gallery; purge removes it permanently.
type NetGalleryDelete struct {
	Gallery int64 `json:"gallery"`
}

func (a *NetGalleryDelete) Type() Type          { return TypeNetGalleryDelete }
func (a *NetGalleryDelete) Description() string { return fmt.Sprintf("delete net gallery %d", a.Gallery) }

func (a *NetGalleryDelete) Redo(ctx context.Context, s *store.Store) error {
	return s.SetNetGalleryDeleted(ctx, a.Gallery, true)
}

func (a *NetGalleryDelete) Undo(ctx context.Context, s *store.Store) error {
	return s.SetNetGalleryDeleted(ctx, a.Gallery, false)
}

func (a *NetGalleryDelete) SerializePayload() ([]byte, error) { return marshalPayload(a) }

func (a *NetGalleryDelete) OnPurge(ctx context.Context, s *store.Store) error {
	return s.PurgeNetGallery(ctx, a.Gallery)
}

// CollectionDelete soft-deletes a collection; purge moves all contained
// non-deleted images to Uncategorized and permanently removes the row.
type CollectionDelete struct {
	Collection int64 `json:"collection"`
}

func (a *CollectionDelete) Type() Type          { return TypeCollectionDelete }
func (a *CollectionDelete) Description() string { return fmt.Sprintf("delete collection %d", a.Collection) }

func (a *CollectionDelete) Redo(ctx context.Context, s *store.Store) error {
	return s.SetDeletedCollection(ctx, a.Collection, true)
}

func (a *CollectionDelete) Undo(ctx context.Context, s *store.Store) error {
	return s.SetDeletedCollection(ctx, a.Collection, false)
}

func (a *CollectionDelete) SerializePayload() ([]byte, error) { return marshalPayload(a) }

func (a *CollectionDelete) OnPurge(ctx context.Context, s *store.Store) error {
	images, err := s.ImagesInCollection(ctx, a.Collection)
	if err != nil {
		return err
	}
	for _, img := range images {
		if err := s.RemoveImageFromCollection(ctx, nil, a.Collection, img.ID, true); err != nil {
			return err
		}
	}
	return s.PurgeCollection(ctx, a.Collection)
}
