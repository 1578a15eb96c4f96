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

// Package imagecache implements the process-wide registry of loaded
// full-size images: a background loader thread, a periodic eviction
// thread, and the LoadedImage state machine viewers poll.
//
// The single-load table uses a stdlib weak pointer: a second LoadFull for a
// path still held by some caller returns the same *LoadedImage rather than
// constructing a duplicate in Waiting state.
package imagecache

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"
	"weak"

	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/codec"
	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/metrics"
	"github.com/dualview/workstation/internal/taskqueue"
	"github.com/dualview/workstation/internal/thumbnail"
)

// State is one of LoadedImage's three possible states. Waiting is the only
// non-terminal one.
type State int32

const (
	StateWaiting State = iota
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadedImage is a handle to a full or thumbnail image load in progress or
// complete. Once Loaded or Error it never changes state again.
type LoadedImage struct {
	Path string

	mu         sync.Mutex
	state      State
	frames     *codec.FrameSet
	err        error
	lastUsedAt time.Time
	done       chan struct{}

	handle *taskqueue.Handle[*LoadedImage]
}

func newLoadedImage(path string) *LoadedImage {
	return &LoadedImage{
		Path:       path,
		lastUsedAt: time.Now(),
		done:       make(chan struct{}),
	}
}

// State returns the current state.
func (li *LoadedImage) State() State {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.state
}

// Frames returns the decoded frame set, or nil before Loaded.
func (li *LoadedImage) Frames() *codec.FrameSet {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.frames
}

// Err returns the load failure, or nil before Error.
func (li *LoadedImage) Err() error {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.err
}

// IsValid reports Loaded with a non-nil decoded buffer.
func (li *LoadedImage) IsValid() bool {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.state == StateLoaded && li.frames != nil
}

// Done is closed once the object reaches a terminal state, for callers that
// want to block rather than poll.
func (li *LoadedImage) Done() <-chan struct{} {
	return li.done
}

// Touch refreshes last_used_at, called by the viewer on every display.
func (li *LoadedImage) Touch() {
	li.mu.Lock()
	li.lastUsedAt = time.Now()
	li.mu.Unlock()
}

// LastUsedAt returns the last Touch (or construction) time.
func (li *LoadedImage) LastUsedAt() time.Time {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.lastUsedAt
}

// BumpPriority re-prioritises this image's still-queued load task. A no-op
// once loading has started or finished.
func (li *LoadedImage) BumpPriority() {
	li.mu.Lock()
	h := li.handle
	waiting := li.state == StateWaiting
	li.mu.Unlock()
	if waiting && h != nil {
		h.Bump()
	}
}

// setLoaded transitions Waiting -> Loaded. Calling this again on an
// already-terminal object (including after setError) is a no-op logged at
// debug rather than an error: reopening a terminal state is never correct
// for a viewer that may already be rendering the first result.
func (li *LoadedImage) setLoaded(fs *codec.FrameSet) {
	li.mu.Lock()
	defer li.mu.Unlock()
	if li.state != StateWaiting {
		klog.V(4).Infof("imagecache: ignoring load success for %s already in state %s", li.Path, li.state)
		return
	}
	li.frames = fs
	li.state = StateLoaded
	close(li.done)
}

// setError transitions Waiting -> Error. See setLoaded for terminal-state
// handling.
func (li *LoadedImage) setError(err error) {
	li.mu.Lock()
	defer li.mu.Unlock()
	if li.state != StateWaiting {
		klog.V(4).Infof("imagecache: ignoring load failure for %s already in state %s", li.Path, li.state)
		return
	}
	li.err = err
	li.state = StateError
	close(li.done)
}

// Cache is the process-wide full-image registry plus thumbnail loader.
type Cache struct {
	mu      sync.Mutex
	dedup   map[string]func() *LoadedImage
	entries map[string]*LoadedImage
	lastGain time.Time

	queue  *taskqueue.TaskQueue[*LoadedImage]
	thumbs *thumbnail.Pipeline

	iconsOnce sync.Once
	icons     map[string]*codec.FrameSet

	unloadTime   time.Duration
	unloadAnyway time.Duration
	maxCached    int
	evictTick    time.Duration
	evictBatch   int

	quit chan struct{}
	wg   sync.WaitGroup
}

// Options configures eviction thresholds; zero values take the package
// defaults.
type Options struct {
	UnloadTime   time.Duration
	UnloadAnyway time.Duration
	MaxCached    int
	EvictTick    time.Duration
	EvictBatch   int
}

const (
	defaultUnloadTime   = 60 * time.Second
	defaultUnloadAnyway = 5 * time.Minute
	defaultMaxCached    = 64
	defaultEvictTick    = 10 * time.Second
	defaultEvictBatch   = 4
)

// New returns a Cache backed by thumbs for thumbnail generation.
func New(thumbs *thumbnail.Pipeline, opts Options) *Cache {
	if opts.UnloadTime <= 0 {
		opts.UnloadTime = defaultUnloadTime
	}
	if opts.UnloadAnyway <= 0 {
		opts.UnloadAnyway = defaultUnloadAnyway
	}
	if opts.MaxCached <= 0 {
		opts.MaxCached = defaultMaxCached
	}
	if opts.EvictTick <= 0 {
		opts.EvictTick = defaultEvictTick
	}
	if opts.EvictBatch <= 0 {
		opts.EvictBatch = defaultEvictBatch
	}
	return &Cache{
		dedup:        make(map[string]func() *LoadedImage),
		entries:      make(map[string]*LoadedImage),
		queue:        taskqueue.New[*LoadedImage](),
		thumbs:       thumbs,
		unloadTime:   opts.UnloadTime,
		unloadAnyway: opts.UnloadAnyway,
		maxCached:    opts.MaxCached,
		evictTick:    opts.EvictTick,
		evictBatch:   opts.EvictBatch,
		quit:         make(chan struct{}),
		lastGain:     time.Now(),
	}
}

// LoadFull is idempotent: two calls for the same path, while the first's
// result is still alive, return the same object. Otherwise a new Waiting
// LoadedImage is registered and a load task queued.
func (c *Cache) LoadFull(path string) *LoadedImage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if peek, ok := c.dedup[path]; ok {
		if img := peek(); img != nil {
			metrics.CacheHits.Inc()
			return img
		}
		delete(c.dedup, path)
	}

	metrics.CacheMisses.Inc()
	img := newLoadedImage(path)
	wp := weak.Make(img)
	c.dedup[path] = func() *LoadedImage {
		if v := wp.Value(); v != nil {
			return v
		}
		return nil
	}
	c.keep(path, img)
	img.handle = c.queue.Push(img, time.Now().UnixNano())
	return img
}

// LoadThumb always produces a new handle; thumbnails are not deduplicated
// across callers.
func (c *Cache) LoadThumb(path, hash string) *LoadedImage {
	metrics.CacheMisses.Inc()
	img := newLoadedImage(path)
	img.handle = c.queue.Push(img, time.Now().UnixNano())
	go c.runThumbLoad(img, hash)
	return img
}

// GetCached returns the cache's own currently-kept entry for path, or nil.
func (c *Cache) GetCached(path string) *LoadedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[path]
}

// NotifyMoved updates the path recorded on any cached entry for oldPath.
func (c *Cache) NotifyMoved(oldPath, newPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.entries[oldPath]
	if !ok {
		return
	}
	delete(c.entries, oldPath)
	img.Path = newPath
	c.entries[newPath] = img
	if peek, ok := c.dedup[oldPath]; ok {
		delete(c.dedup, oldPath)
		c.dedup[newPath] = peek
	}
}

// keep registers img as the cache's strong-held entry for path. Must be
// called with c.mu held.
func (c *Cache) keep(path string, img *LoadedImage) {
	c.entries[path] = img
	c.lastGain = time.Now()
	metrics.CacheSize.Set(float64(len(c.entries)))
}

// ResourceIcons returns shared folder/collection icon placeholders, built
// once on first use. This module ships no binary assets, so a small set of
// solid-colour placeholders stands in for embedded bitmap resources,
// generated once and cached behind a lazy-init singleton (see DESIGN.md).
func (c *Cache) ResourceIcons() map[string]*codec.FrameSet {
	c.iconsOnce.Do(func() {
		c.icons = map[string]*codec.FrameSet{
			"folder":     placeholderIcon(color.RGBA{R: 0xe8, G: 0xc3, B: 0x6a, A: 0xff}),
			"collection": placeholderIcon(color.RGBA{R: 0x6a, G: 0x9c, B: 0xe8, A: 0xff}),
		}
	})
	return c.icons
}

func placeholderIcon(c color.Color) *codec.FrameSet {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return &codec.FrameSet{Frames: []codec.Frame{{Image: img}}, Format: "placeholder"}
}

// Start launches the loader and eviction threads. Both stop when ctx is
// cancelled or Stop is called.
func (c *Cache) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.loaderLoop(ctx)
	go c.evictorLoop(ctx)
}

// Stop signals the loader and eviction threads to exit and waits for them.
func (c *Cache) Stop() {
	close(c.quit)
	c.wg.Wait()
}

func (c *Cache) loaderLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		case <-ticker.C:
			img, ok := c.queue.Pop()
			if !ok {
				continue
			}
			c.runFullLoad(img)
		}
	}
}

func (c *Cache) runFullLoad(img *LoadedImage) {
	f, err := os.Open(img.Path)
	if err != nil {
		img.setError(fmt.Errorf("imagecache: %w: open %s: %s", errs.InvalidArgument, img.Path, err))
		return
	}
	defer f.Close()

	fs, err := codec.Decode(f)
	if err != nil {
		img.setError(fmt.Errorf("imagecache: %w: decode %s: %s", errs.LoadFailed, img.Path, err))
		return
	}
	img.setLoaded(fs)
}

func (c *Cache) runThumbLoad(img *LoadedImage, hash string) {
	ext := filepath.Ext(img.Path)
	fs, err := c.thumbs.Get(context.Background(), img.Path, hash, ext)
	if err != nil {
		img.setError(fmt.Errorf("imagecache: %w: %s", errs.LoadFailed, err))
		return
	}
	img.setLoaded(fs)
}

func (c *Cache) evictorLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.evictTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		case <-ticker.C:
			c.evictOnce()
		}
	}
}

// evictOnce runs three eviction passes. Refcount introspection ("held only
// by the cache") has no public Go API, so every kept entry is treated as
// cache-exclusive for the age-based pass — a documented simplification (see
// DESIGN.md).
func (c *Cache) evictOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for path, img := range c.entries {
		if now.Sub(img.LastUsedAt()) > c.unloadTime {
			c.evictLocked(path)
		}
	}

	if now.Sub(c.lastGain) > c.unloadAnyway && len(c.entries) > 0 {
		c.evictLocked(c.oldestLocked())
	}

	dropped := 0
	for len(c.entries) > c.maxCached && dropped < c.evictBatch {
		c.evictLocked(c.oldestLocked())
		dropped++
	}
}

func (c *Cache) oldestLocked() string {
	var oldestPath string
	var oldestAt time.Time
	for path, img := range c.entries {
		at := img.LastUsedAt()
		if oldestPath == "" || at.Before(oldestAt) {
			oldestPath, oldestAt = path, at
		}
	}
	return oldestPath
}

func (c *Cache) evictLocked(path string) {
	if path == "" {
		return
	}
	delete(c.entries, path)
	delete(c.dedup, path)
	metrics.CacheEvictions.Inc()
	metrics.CacheSize.Set(float64(len(c.entries)))
}
