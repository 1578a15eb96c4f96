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

package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDecodeSingleFrame(t *testing.T) {
	data := solidJPEG(t, 20, 10, color.White)
	fs, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.False(t, fs.Animated)
	require.Len(t, fs.Frames, 1)
	require.Equal(t, 20, fs.Frames[0].Image.Bounds().Dx())
}

func TestDecodeAnimatedGIF(t *testing.T) {
	var buf bytes.Buffer
	g := &gif.GIF{}
	for i := 0; i < 3; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 4, 4), []color.Color{color.White, color.Black})
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 10)
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	require.NoError(t, gif.EncodeAll(&buf, g))

	fs, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, fs.Animated)
	require.Len(t, fs.Frames, 3)
}

func TestResizePreservesAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	out := Resize(img, 50)
	require.Equal(t, 50, out.Bounds().Dx())
	require.Equal(t, 25, out.Bounds().Dy())
}

func TestResizeClampsToOne(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 1000))
	out := Resize(img, 1)
	require.Equal(t, 1, out.Bounds().Dx())
	require.GreaterOrEqual(t, out.Bounds().Dy(), 1)
}

func TestPremultiplyOpaqueUntouched(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 0xff})
	out := Premultiply(img, color.White, 0x1000)
	r, g, b, a := out.At(0, 0).RGBA()
	require.Equal(t, uint32(0xff), a>>8)
	require.Equal(t, uint32(10), r>>8)
	require.Equal(t, uint32(20), g>>8)
	require.Equal(t, uint32(30), b>>8)
}

func TestPremultiplyBelowCutoffSnapsToBackground(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 1})
	bg := color.RGBA{R: 255, G: 0, B: 0, A: 0xff}
	out := Premultiply(img, bg, 0x1000)
	r, g, b, _ := out.At(0, 0).RGBA()
	require.Equal(t, uint32(255), r>>8)
	require.Equal(t, uint32(0), g>>8)
	require.Equal(t, uint32(0), b>>8)
}

func TestEncodeJPEGRoundTrips(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 5))
	var buf bytes.Buffer
	require.NoError(t, EncodeJPEG(&buf, img, 85))
	_, err := jpeg.Decode(&buf)
	require.NoError(t, err)
}

func TestEncodeGIFRoundTrips(t *testing.T) {
	frames := []Frame{
		{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))},
		{Image: image.NewRGBA(image.Rect(0, 0, 4, 4))},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeGIF(&buf, frames))
	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 2)
}
