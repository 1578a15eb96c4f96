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

// Package codec defines the mechanical image surface — decode a file into
// frames, resize a frame, premultiply against a background, encode — that
// internal/thumbnail and internal/imagecache invoke, independent of any
// particular pixel algorithm.
//
// Decode/resize is backed by golang.org/x/image (draw.CatmullRom for
// resampling, x/image/webp for WebP decode) plus the standard
// image/{jpeg,png,gif} codecs (see DESIGN.md).
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"time"

	ximgdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

func init() {
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// AnimatedExtensions names the formats whose on-disk extension is preserved
// rather than normalised to .jpg.
var AnimatedExtensions = map[string]bool{
	".gif":  true,
	".webp": true,
	".apng": true,
}

// Frame is a single decoded image plus, for animated sources, how long it
// should be displayed before the next frame.
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// FrameSet is the result of a decode: one frame for ordinary images, several
// for animated sources.
type FrameSet struct {
	Frames   []Frame
	Animated bool
	Format   string
}

// Decode reads a full image from r, coalescing animated frames into a
// FrameSet when the source format is multi-frame. Format-specific animation
// support is only available for GIF; WebP and APNG sources decode to their
// first frame only (no locally vetted ecosystem package in the retrieved
// pack provides full WebP/APNG animation decoding — see DESIGN.md).
func Decode(r io.Reader) (*FrameSet, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: read source: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("codec: decode config: %w", err)
	}

	if format == "gif" {
		g, err := gif.DecodeAll(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("codec: decode gif: %w", err)
		}
		return gifToFrameSet(g), nil
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", format, err)
	}
	return &FrameSet{Frames: []Frame{{Image: img}}, Format: format}, nil
}

func gifToFrameSet(g *gif.GIF) *FrameSet {
	fs := &FrameSet{Animated: len(g.Image) > 1, Format: "gif"}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	var canvas *image.RGBA
	for i, frame := range g.Image {
		if canvas == nil {
			canvas = image.NewRGBA(bounds)
		} else if g.Disposal[i] == gif.DisposalBackground {
			canvas = image.NewRGBA(bounds)
		}
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		cp := image.NewRGBA(bounds)
		draw.Draw(cp, bounds, canvas, image.Point{}, draw.Src)
		delay := time.Duration(g.Delay[i]) * 10 * time.Millisecond
		fs.Frames = append(fs.Frames, Frame{Image: cp, Delay: delay})
	}
	return fs
}

// Resize scales img to width w, computing height to preserve aspect ratio
// (both dimensions clamped to >= 1), using draw.CatmullRom.
func Resize(img image.Image, w int) image.Image {
	if w < 1 {
		w = 1
	}
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 {
		srcW = 1
	}
	h := int(float64(w) * float64(srcH) / float64(srcW))
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	ximgdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, ximgdraw.Over, nil)
	return dst
}

// ResizeTo scales img to the exact w x h, used for animated frames where
// every frame must share dimensions.
func ResizeTo(img image.Image, w, h int) image.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	ximgdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), ximgdraw.Over, nil)
	return dst
}

// Premultiply mixes img against bg: pixels below
// cutoff alpha snap fully to bg, opaque pixels (alpha == 0xffff) are left
// untouched, and partial-alpha pixels are linearly interpolated towards bg by
// their transparency. The returned image carries no alpha channel.
func Premultiply(img image.Image, bg color.Color, cutoff uint32) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	br, bgc, bb, _ := bg.RGBA()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			switch {
			case a < cutoff:
				out.Set(x, y, color.RGBA{
					R: uint8(br >> 8), G: uint8(bgc >> 8), B: uint8(bb >> 8), A: 0xff,
				})
			case a >= 0xffff:
				out.Set(x, y, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 0xff})
			default:
				frac := float64(a) / 0xffff
				mix := func(c, bgChan uint32) uint8 {
					v := float64(c)*frac + float64(bgChan)*(1-frac)
					return uint8(v / 256)
				}
				out.Set(x, y, color.RGBA{
					R: mix(r, br), G: mix(g, bgc), B: mix(bl, bb), A: 0xff,
				})
			}
		}
	}
	return out
}

// EncodeJPEG writes img as a JPEG at the given quality (0-100).
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// EncodePNG writes img as a PNG using best compression.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// EncodeGIF writes an animated frame sequence, consuming each Frame's Delay
// (truncated to whole 10ms GIF ticks).
func EncodeGIF(w io.Writer, frames []Frame) error {
	g := &gif.GIF{}
	for _, f := range frames {
		b := f.Image.Bounds()
		pal := image.NewPaletted(b, palette.Plan9)
		draw.FloydSteinberg.Draw(pal, b, f.Image, image.Point{})
		g.Image = append(g.Image, pal)
		g.Delay = append(g.Delay, int(f.Delay/(10*time.Millisecond)))
		g.Disposal = append(g.Disposal, gif.DisposalNone)
	}
	return gif.EncodeAll(w, g)
}
