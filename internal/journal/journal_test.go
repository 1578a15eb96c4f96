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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dualview/workstation/internal/store"
)

type identityPaths struct{}

func (identityPaths) ToFinal(p string) string    { return p }
func (identityPaths) ToDatabase(p string) string { return p }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "library.db"), filepath.Join(dir, "signatures.db"), store.Options{Paths: identityPaths{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImageDeleteRecordUndoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	j := New(s, nil, 100)

	col, err := s.CreateCollection(ctx, "test collection", false, 0)
	require.NoError(t, err)
	img1, err := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/1.jpg", FileHash: "hash1"})
	require.NoError(t, err)
	img2, err := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/2.jpg", FileHash: "hash2"})
	require.NoError(t, err)
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img1.ID, 0))
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img2.ID, 0))

	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img1.ID}}))
	require.True(t, j.CanUndo())

	images, err := s.ImagesInCollection(ctx, col.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, img2.ID, images[0].ID)

	deleted, err := s.ImageByID(ctx, img1.ID)
	require.NoError(t, err)
	require.True(t, deleted.Deleted)

	require.NoError(t, j.Undo(ctx))
	require.False(t, j.CanUndo())
	require.True(t, j.CanRedo())

	images, err = s.ImagesInCollection(ctx, col.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)

	restored, err := s.ImageByID(ctx, img1.ID)
	require.NoError(t, err)
	require.False(t, restored.Deleted)
}

func TestRecordDiscardsRedoTail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	j := New(s, nil, 100)

	img, err := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	require.NoError(t, err)

	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img.ID}}))
	require.NoError(t, j.Undo(ctx))
	require.True(t, j.CanRedo())

	img2, err := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/2.jpg", FileHash: "h2"})
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img2.ID}}))

	require.False(t, j.CanRedo())
}

func TestCollectionReorderUndoRedo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	j := New(s, nil, 100)

	col, err := s.CreateCollection(ctx, "reorder", false, 0)
	require.NoError(t, err)
	img1, _ := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	img2, _ := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/2.jpg", FileHash: "h2"})
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img1.ID, 0))
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img2.ID, 0))

	require.NoError(t, j.Record(ctx, &CollectionReorder{
		Collection: col.ID,
		OldOrder:   []int64{img1.ID, img2.ID},
		NewOrder:   []int64{img2.ID, img1.ID},
	}))

	images, err := s.ImagesInCollection(ctx, col.ID)
	require.NoError(t, err)
	require.Equal(t, img2.ID, images[0].ID)

	require.NoError(t, j.Undo(ctx))
	images, err = s.ImagesInCollection(ctx, col.ID)
	require.NoError(t, err)
	require.Equal(t, img1.ID, images[0].ID)
}

func TestUndoRedoIdentityOnObservableState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	j := New(s, nil, 100)

	img, err := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	require.NoError(t, err)

	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img.ID}}))
	require.NoError(t, j.Undo(ctx))
	require.NoError(t, j.Redo(ctx))

	got, err := s.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	require.True(t, got.Deleted)
}

func TestRecordDiscardsUndoneActionWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	j := New(s, nil, 1)

	img1, _ := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img1.ID}}))
	require.NoError(t, j.Undo(ctx))

	img2, _ := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/2.jpg", FileHash: "h2"})
	// img1's delete sits above the current top (it was undone); recording a
	// new action discards it outright rather than purging it, since an
	// undone action never took effect in the first place.
	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img2.ID}}))

	still, err := s.ImageByID(ctx, img1.ID)
	require.NoError(t, err)
	require.False(t, still.Deleted)
}

func TestMaxHistoryPurgesPerformedOldestPermanently(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	j := New(s, nil, 1)

	img1, _ := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img1.ID}}))

	img2, _ := s.InsertImage(ctx, store.Image{ResourcePath: "/tmp/2.jpg", FileHash: "h2"})
	// img1's delete is still performed (never undone) when the second
	// record pushes history past maxHistory=1, so it is purged for real:
	// its row and file are permanently removed.
	require.NoError(t, j.Record(ctx, &ImageDelete{Images: []int64{img2.ID}}))

	_, err := s.ImageByID(ctx, img1.ID)
	require.Error(t, err)
}
