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
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type identityPaths struct{}

func (identityPaths) ToFinal(p string) string    { return p }
func (identityPaths) ToDatabase(p string) string { return p }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "library.db"), filepath.Join(dir, "signatures.db"), Options{Paths: identityPaths{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertImageRequiresHash(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertImage(context.Background(), Image{ResourcePath: "/tmp/x.jpg"})
	require.Error(t, err)
}

func TestImageByIDReturnsSameObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	img, err := s.InsertImage(ctx, Image{ResourcePath: "/tmp/a.jpg", FileHash: "hash-a"})
	require.NoError(t, err)

	a, err := s.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	b, err := s.ImageByID(ctx, img.ID)
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestImportTwoFilesIntoCollectionPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	col, err := s.CreateCollection(ctx, "test collection", false, 0)
	require.NoError(t, err)

	img1, err := s.InsertImage(ctx, Image{ResourcePath: "/tmp/1.jpg", FileHash: "hash1"})
	require.NoError(t, err)
	img2, err := s.InsertImage(ctx, Image{ResourcePath: "/tmp/2.jpg", FileHash: "hash2"})
	require.NoError(t, err)

	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img1.ID, 0))
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img2.ID, 0))

	images, err := s.ImagesInCollection(ctx, col.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	require.Equal(t, img1.ID, images[0].ID)
	require.Equal(t, img2.ID, images[1].ID)
}

func TestRenameCollectionRejectsCaseInsensitiveConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "Collection 1", false, 0)
	require.NoError(t, err)
	col2, err := s.CreateCollection(ctx, "Collection 2", false, 0)
	require.NoError(t, err)

	err = s.RenameCollection(ctx, col2.ID, "collection 2")
	require.NoError(t, err) // renaming to itself (case-only) is not a conflict

	err = s.RenameCollection(ctx, col2.ID, "collection 1")
	require.Error(t, err)

	got, err := s.CollectionByID(ctx, col2.ID)
	require.NoError(t, err)
	require.NotEqual(t, "collection 1", got.Name)
}

func TestReorderCollectionMatchesRequestedSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	col, err := s.CreateCollection(ctx, "reorder", false, 0)
	require.NoError(t, err)
	img1, _ := s.InsertImage(ctx, Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	img2, _ := s.InsertImage(ctx, Image{ResourcePath: "/tmp/2.jpg", FileHash: "h2"})
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img1.ID, 0))
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img2.ID, 0))

	require.NoError(t, s.ReorderCollection(ctx, nil, col.ID, []int64{img2.ID, img1.ID}))

	images, err := s.ImagesInCollection(ctx, col.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{img2.ID, img1.ID}, []int64{images[0].ID, images[1].ID})
}

func TestRemoveImageFromLastCollectionReparentsToUncategorized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	col, _ := s.CreateCollection(ctx, "solo", false, 0)
	img, _ := s.InsertImage(ctx, Image{ResourcePath: "/tmp/1.jpg", FileHash: "h1"})
	require.NoError(t, s.AddImageToCollection(ctx, nil, col.ID, img.ID, 0))

	require.NoError(t, s.RemoveImageFromCollection(ctx, nil, col.ID, img.ID, true))

	images, err := s.ImagesInCollection(ctx, DatabaseUncategorizedCollectionID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	require.Equal(t, img.ID, images[0].ID)
}

func TestDeletingUncategorizedIsForbidden(t *testing.T) {
	s := newTestStore(t)
	err := s.SetDeletedCollection(context.Background(), DatabaseUncategorizedCollectionID, true)
	require.Error(t, err)
}

func TestRankLessOrdersExactPrefixThenLexicographic(t *testing.T) {
	names := []string{"redhead", "red", "reduce"}
	less := func(a, b string) bool { return RankLess("red", a, b) }
	require.True(t, less("red", "redhead"))
	require.True(t, less("redhead", "reduce"))
	_ = names
	require.False(t, less("red", "red"))
}

func TestSearchTagsHonoursPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateTag(ctx, "red", "", 0, false)
	require.NoError(t, err)
	_, err = s.CreateTag(ctx, "redhead", "", 0, false)
	require.NoError(t, err)
	_, err = s.CreateTag(ctx, "blue", "", 0, false)
	require.NoError(t, err)

	matches, err := s.SearchTags(ctx, "red", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.True(t, strings.HasPrefix(matches[0].Name, "red"))
}

func TestFindOrCreateAppliedTagDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tag, _ := s.CreateTag(ctx, "hair", "", 0, false)

	first, err := s.FindOrCreateAppliedTag(ctx, nil, AppliedTag{TagID: tag.ID})
	require.NoError(t, err)
	second, err := s.FindOrCreateAppliedTag(ctx, nil, AppliedTag{TagID: tag.ID})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
