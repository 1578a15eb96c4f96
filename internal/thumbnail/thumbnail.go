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

// Package thumbnail implements an on-demand resize-and-persist pipeline:
// for each (path, hash) request it produces or retrieves a thumbnail file
// on disk under the private collection root's thumbnails/ subtree.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/codec"
	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/fsutil"
	"github.com/dualview/workstation/internal/metrics"
)

// Width tiers and thresholds the resize algorithm selects between.
const (
	HugeThreshold = 4000
	HugeWidth     = 1200

	BigThreshold   = 2000
	AlmostBig      = 1600
	BigWidth       = 800

	TallHeightThreshold = 1400
	TallAspect          = 0.5
	TallWidth           = 500

	OtherWidth = 350

	AnimatedWidth = 320

	// ThumbnailJPGQuality is the JPEG quality used for non-PNG, non-animated
	// thumbnail output.
	ThumbnailJPGQuality = 82

	// animatedFrameDropDelayCeiling and animatedFrameDropMinCount gate the
	// "drop every other frame" rule from step 4.
	animatedFrameDropDelayCeiling = 40 * time.Millisecond
	animatedFrameDropMinCount     = 10
)

// Background is the colour alpha is premultiplied against for non-PNG
// thumbnails. White, matching the default viewer background.
var Background color.Color = color.White

// Pipeline generates and retrieves thumbnails under root/thumbnails.
type Pipeline struct {
	root string
}

// New returns a Pipeline rooted at privateCollectionRoot/thumbnails.
func New(privateCollectionRoot string) *Pipeline {
	return &Pipeline{root: filepath.Join(privateCollectionRoot, "thumbnails")}
}

// Extension picks the on-disk extension for hash per step 1: the source
// extension if animated-set, else .jpg.
func Extension(sourceExt string) string {
	lower := strings.ToLower(sourceExt)
	if codec.AnimatedExtensions[lower] {
		return lower
	}
	return ".jpg"
}

// TargetPath returns the thumbnail file path for (hash, sourceExt).
func (p *Pipeline) TargetPath(hash, sourceExt string) string {
	return filepath.Join(p.root, hash+Extension(sourceExt))
}

// Get produces or retrieves the thumbnail for sourcePath (hash, sourceExt
// identify and name it) and returns the decoded frame set ready for display,
// including the bounded delete-and-retry-once recovery from a corrupt
// cached thumbnail.
func (p *Pipeline) Get(ctx context.Context, sourcePath, hash, sourceExt string) (*codec.FrameSet, error) {
	return p.get(ctx, sourcePath, hash, sourceExt, true)
}

func (p *Pipeline) get(ctx context.Context, sourcePath, hash, sourceExt string, allowRetry bool) (*codec.FrameSet, error) {
	target := p.TargetPath(hash, sourceExt)

	if f, err := os.Open(target); err == nil {
		defer f.Close()
		fs, decErr := codec.Decode(f)
		if decErr == nil {
			return fs, nil
		}
		klog.Warningf("thumbnail: cached file %s failed to decode: %s", target, decErr)
		if !allowRetry {
			return nil, fmt.Errorf("thumbnail: %w: corrupt cached thumbnail for %s", errs.LoadFailed, hash)
		}
		if rmErr := fsutil.Remove(target); rmErr != nil {
			return nil, fmt.Errorf("thumbnail: removing corrupt cache entry: %w", rmErr)
		}
		return p.get(ctx, sourcePath, hash, sourceExt, false)
	}

	start := time.Now()
	fs, err := p.generate(sourcePath, sourceExt, target)
	metrics.ThumbnailLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailFailures.Inc()
		return nil, err
	}
	return fs, nil
}

func (p *Pipeline) generate(sourcePath, sourceExt, target string) (*codec.FrameSet, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: %w: open source %s: %s", errs.InvalidArgument, sourcePath, err)
	}
	defer src.Close()

	decoded, err := codec.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: %w: decode %s: %s", errs.LoadFailed, sourcePath, err)
	}

	animated := decoded.Animated
	var out *codec.FrameSet
	if animated {
		out = generateAnimated(decoded)
	} else {
		out = generateSingle(decoded, Extension(sourceExt))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("thumbnail: mkdir %s: %w", filepath.Dir(target), err)
	}
	if err := writeAtomic(target, out); err != nil {
		return nil, err
	}
	return out, nil
}

func generateSingle(fs *codec.FrameSet, ext string) *codec.FrameSet {
	img := fs.Frames[0].Image
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	width := targetWidth(w, h)
	resized := codec.Resize(img, width)

	if ext != ".png" {
		resized = codec.Premultiply(resized, Background, 0x1000)
	}
	return &codec.FrameSet{Frames: []codec.Frame{{Image: resized}}, Format: fs.Format}
}

// targetWidth selects the output width tier for an image of the given
// dimensions.
func targetWidth(w, h int) int {
	switch {
	case w >= HugeThreshold || h >= HugeThreshold:
		return HugeWidth
	case (w >= BigThreshold && h >= BigThreshold) ||
		(w >= BigThreshold && h >= AlmostBig) ||
		(h >= BigThreshold && w >= AlmostBig):
		return BigWidth
	case h >= TallHeightThreshold || aspectBelow(w, h, TallAspect):
		return TallWidth
	default:
		return OtherWidth
	}
}

func aspectBelow(w, h int, threshold float64) bool {
	if h == 0 {
		return false
	}
	return float64(w)/float64(h) < threshold
}

func generateAnimated(fs *codec.FrameSet) *codec.FrameSet {
	frames := fs.Frames
	if len(frames) > animatedFrameDropMinCount && allDelaysBelow(frames, animatedFrameDropDelayCeiling) {
		frames = dropEveryOther(frames)
	}

	out := &codec.FrameSet{Animated: true, Format: fs.Format}
	for _, f := range frames {
		resized := codec.ResizeTo(f.Image, AnimatedWidth, animatedHeight(f.Image, AnimatedWidth))
		out.Frames = append(out.Frames, codec.Frame{Image: resized, Delay: f.Delay})
	}
	return out
}

func animatedHeight(img image.Image, width int) int {
	b := img.Bounds()
	if b.Dx() == 0 {
		return width
	}
	h := int(float64(width) * float64(b.Dy()) / float64(b.Dx()))
	if h < 1 {
		h = 1
	}
	return h
}

func allDelaysBelow(frames []codec.Frame, ceiling time.Duration) bool {
	for _, f := range frames {
		if f.Delay >= ceiling {
			return false
		}
	}
	return true
}

// dropEveryOther removes every other frame, folding the dropped frame's
// delay into its predecessor.
func dropEveryOther(frames []codec.Frame) []codec.Frame {
	var out []codec.Frame
	for i := 0; i < len(frames); i += 2 {
		f := frames[i]
		if i+1 < len(frames) {
			f.Delay += frames[i+1].Delay
		}
		out = append(out, f)
	}
	return out
}

// writeAtomic writes fs to path via a temp file plus rename, so a reader
// never observes a partially-written thumbnail.
func writeAtomic(path string, fs *codec.FrameSet) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("thumbnail: create temp file: %w", err)
	}

	var encErr error
	switch {
	case fs.Animated:
		encErr = codec.EncodeGIF(f, fs.Frames)
	case strings.HasSuffix(path, ".png"):
		encErr = codec.EncodePNG(f, fs.Frames[0].Image)
	default:
		encErr = codec.EncodeJPEG(f, fs.Frames[0].Image, ThumbnailJPGQuality)
	}
	if encErr != nil {
		f.Close()
		_ = fsutil.Remove(tmp)
		return fmt.Errorf("thumbnail: encode %s: %w", path, encErr)
	}
	if err := f.Close(); err != nil {
		_ = fsutil.Remove(tmp)
		return fmt.Errorf("thumbnail: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = fsutil.Remove(tmp)
		return fmt.Errorf("thumbnail: rename into place: %w", err)
	}
	return nil
}
