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

package imagecache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dualview/workstation/internal/thumbnail"
)

func writeSolidJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 50, G: 60, B: 70, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newTestCache(t *testing.T) (*Cache, context.Context) {
	t.Helper()
	dir := t.TempDir()
	thumbs := thumbnail.New(dir)
	c := New(thumbs, Options{EvictTick: 20 * time.Millisecond, UnloadTime: 30 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.Start(ctx)
	t.Cleanup(c.Stop)
	return c, ctx
}

func waitTerminal(t *testing.T, img *LoadedImage) {
	t.Helper()
	select {
	case <-img.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("load did not reach a terminal state")
	}
}

func TestLoadFullIsIdempotentWhileAlive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 10, 10)

	c, _ := newTestCache(t)
	a := c.LoadFull(path)
	b := c.LoadFull(path)
	require.Same(t, a, b)
}

func TestLoadFullReachesLoaded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 10, 10)

	c, _ := newTestCache(t)
	img := c.LoadFull(path)
	waitTerminal(t, img)
	require.Equal(t, StateLoaded, img.State())
	require.True(t, img.IsValid())
}

func TestLoadFullMissingFileReachesError(t *testing.T) {
	c, _ := newTestCache(t)
	img := c.LoadFull("/nonexistent/path.jpg")
	waitTerminal(t, img)
	require.Equal(t, StateError, img.State())
	require.Error(t, img.Err())
}

func TestLoadThumbAlwaysNewHandle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 400, 300)

	c, _ := newTestCache(t)
	a := c.LoadThumb(path, "hash1")
	b := c.LoadThumb(path, "hash1")
	require.NotSame(t, a, b)
	waitTerminal(t, a)
	waitTerminal(t, b)
	require.Equal(t, StateLoaded, a.State())
	require.Equal(t, StateLoaded, b.State())
}

func TestGetCachedReturnsKeptEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 10, 10)

	c, _ := newTestCache(t)
	img := c.LoadFull(path)
	require.Same(t, img, c.GetCached(path))
	require.Nil(t, c.GetCached("/never/loaded.jpg"))
}

func TestNotifyMovedUpdatesPath(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a.jpg")
	newPath := filepath.Join(dir, "b.jpg")
	writeSolidJPEG(t, oldPath, 10, 10)

	c, _ := newTestCache(t)
	img := c.LoadFull(oldPath)
	c.NotifyMoved(oldPath, newPath)
	require.Equal(t, newPath, img.Path)
	require.Same(t, img, c.GetCached(newPath))
	require.Nil(t, c.GetCached(oldPath))
}

func TestSetLoadedAfterErrorIsNoOp(t *testing.T) {
	img := newLoadedImage("/x.jpg")
	img.setError(require.AnError)
	img.setLoaded(nil)
	require.Equal(t, StateError, img.State())
}

func TestEvictionDropsStaleEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeSolidJPEG(t, path, 10, 10)

	c, _ := newTestCache(t)
	c.LoadFull(path)
	require.NotNil(t, c.GetCached(path))

	require.Eventually(t, func() bool {
		return c.GetCached(path) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResourceIconsStableAcrossCalls(t *testing.T) {
	c, _ := newTestCache(t)
	a := c.ResourceIcons()
	b := c.ResourceIcons()
	require.Same(t, a["folder"], b["folder"])
}
