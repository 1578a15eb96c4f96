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

package thumbnail

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

	"github.com/dualview/workstation/internal/codec"
)

func writeSolidJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestExtensionPreservesAnimatedSet(t *testing.T) {
	require.Equal(t, ".gif", Extension(".gif"))
	require.Equal(t, ".webp", Extension(".WEBP"))
	require.Equal(t, ".jpg", Extension(".png"))
	require.Equal(t, ".jpg", Extension(".bmp"))
}

func TestTargetWidthTiers(t *testing.T) {
	require.Equal(t, HugeWidth, targetWidth(5000, 100))
	require.Equal(t, BigWidth, targetWidth(2100, 2100))
	require.Equal(t, TallWidth, targetWidth(300, 1500))
	require.Equal(t, OtherWidth, targetWidth(800, 600))
}

func TestGetGeneratesAndCaches(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.jpg")
	writeSolidJPEG(t, srcPath, 400, 300)

	p := New(dir)
	fs, err := p.Get(context.Background(), srcPath, "deadbeef", ".jpg")
	require.NoError(t, err)
	require.Len(t, fs.Frames, 1)

	target := p.TargetPath("deadbeef", ".jpg")
	_, err = os.Stat(target)
	require.NoError(t, err)

	fs2, err := p.Get(context.Background(), srcPath, "deadbeef", ".jpg")
	require.NoError(t, err)
	require.Len(t, fs2.Frames, 1)
}

func TestGetRetriesOnceOnCorruptCache(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.jpg")
	writeSolidJPEG(t, srcPath, 100, 100)

	p := New(dir)
	target := p.TargetPath("deadbeef", ".jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("not an image"), 0o644))

	fs, err := p.Get(context.Background(), srcPath, "deadbeef", ".jpg")
	require.NoError(t, err)
	require.Len(t, fs.Frames, 1)
}

func TestDropEveryOtherFoldsDelay(t *testing.T) {
	frames := []codec.Frame{
		{Delay: 10 * time.Millisecond},
		{Delay: 20 * time.Millisecond},
		{Delay: 10 * time.Millisecond},
		{Delay: 5 * time.Millisecond},
	}
	out := dropEveryOther(frames)
	require.Len(t, out, 2)
	require.Equal(t, 30*time.Millisecond, out[0].Delay)
	require.Equal(t, 15*time.Millisecond, out[1].Delay)
}

func TestAspectBelowThreshold(t *testing.T) {
	require.True(t, aspectBelow(100, 300, TallAspect))
	require.False(t, aspectBelow(300, 100, TallAspect))
}
