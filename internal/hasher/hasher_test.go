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

package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/store"
)

type fakeStore struct {
	byHash   map[string]*store.Image
	inserted []store.Image
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: map[string]*store.Image{}}
}

func (f *fakeStore) ImageByHash(ctx context.Context, hash string) (*store.Image, error) {
	if img, ok := f.byHash[hash]; ok {
		return img, nil
	}
	return nil, fmt.Errorf("hasher test: %w: no image with hash %q", errs.NotFound, hash)
}

func (f *fakeStore) InsertImage(ctx context.Context, img store.Image) (*store.Image, error) {
	f.nextID++
	img.ID = f.nextID
	f.inserted = append(f.inserted, img)
	f.byHash[img.FileHash] = &img
	return &img, nil
}

func writeSolidJPEG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestHashMatchesBase64SHA256WithSlashesReplaced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 12, 8, color.White)

	hash, width, height, err := Hash(path)
	require.NoError(t, err)
	require.Equal(t, 12, width)
	require.Equal(t, 8, height)
	require.False(t, strings.Contains(hash, "/"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(raw)
	want := strings.ReplaceAll(base64.StdEncoding.EncodeToString(sum[:]), "/", "_")
	require.Equal(t, want, hash)
}

func TestImportInsertsNewImageOnFirstSight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 10, 10, color.White)

	st := newFakeStore()
	h := New(st)

	img, existing, err := h.Import(context.Background(), ImportTask{
		SourcePath:   path,
		ResourcePath: ":?ocl/a.jpg",
		DisplayName:  "a.jpg",
		Extension:    ".jpg",
	})
	require.NoError(t, err)
	require.False(t, existing)
	require.Equal(t, ":?ocl/a.jpg", img.ResourcePath)
	require.NotEmpty(t, img.FileHash)
}

func TestImportBecomesViewOverExistingHash(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.jpg")
	pathB := filepath.Join(dir, "b.jpg")
	writeSolidJPEG(t, pathA, 10, 10, color.Black)
	writeSolidJPEG(t, pathB, 10, 10, color.Black) // identical bytes, same hash

	st := newFakeStore()
	h := New(st)
	ctx := context.Background()

	first, existing, err := h.Import(ctx, ImportTask{SourcePath: pathA, ResourcePath: ":?ocl/a.jpg"})
	require.NoError(t, err)
	require.False(t, existing)

	second, existing, err := h.Import(ctx, ImportTask{SourcePath: pathB, ResourcePath: ":?ocl/b.jpg"})
	require.NoError(t, err)
	require.True(t, existing)
	require.Equal(t, first.ID, second.ID)

	_, err = os.Stat(pathB)
	require.True(t, os.IsNotExist(err), "duplicate source file should be removed")
}

func TestEnqueueDeliversResultOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 6, 6, color.White)

	st := newFakeStore()
	h := New(st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	ch := h.Enqueue(ImportTask{SourcePath: path, ResourcePath: ":?ocl/a.jpg"})
	result := <-ch
	require.NoError(t, result.Err)
	require.False(t, result.Existing)
	require.NotNil(t, result.Image)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after delivering its single result")
}
