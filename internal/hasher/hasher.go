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

// Package hasher implements the hash-calculation worker: for each queued
// import it reads the source file once, computes its content hash and pixel
// dimensions, and either folds the import into a pre-existing row sharing
// that hash or inserts a new one.
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/codec"
	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/fsutil"
	"github.com/dualview/workstation/internal/metrics"
	"github.com/dualview/workstation/internal/store"
	"github.com/dualview/workstation/internal/taskqueue"
)

// Store is the subset of *store.Store the hasher needs to dedupe and
// insert imported images. Declared as an interface so tests can supply an
// in-memory fake instead of a real database.
type Store interface {
	ImageByHash(ctx context.Context, hash string) (*store.Image, error)
	InsertImage(ctx context.Context, img store.Image) (*store.Image, error)
}

// ImportTask names a single already-placed file to fold into the library.
// SourcePath must already sit at its permanent on-disk location (the
// downloader and the local-import command are both responsible for placing
// the file there before enqueuing); the hasher never moves files, it only
// decides whether the placement becomes a new row or a duplicate.
type ImportTask struct {
	SourcePath   string
	ResourcePath string // portable path recorded on a new row
	DisplayName  string
	Extension    string
	ImportedFrom string
	IsPrivate    bool
}

// Result is what a completed import reports.
type Result struct {
	Task     ImportTask
	Image    *store.Image
	Existing bool // true if Image is a view over a pre-existing row
	Err      error
}

type job struct {
	task     ImportTask
	resultCh chan Result
}

// Hasher is the single hash-calculation worker thread, serialising file
// reads and store lookups through one taskqueue.
type Hasher struct {
	store Store
	queue *taskqueue.TaskQueue[job]

	quit chan struct{}
	done chan struct{}
}

// New returns a Hasher backed by st.
func New(st Store) *Hasher {
	return &Hasher{
		store: st,
		queue: taskqueue.New[job](),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Enqueue schedules task and returns a channel that receives exactly one
// Result once the import resolves.
func (h *Hasher) Enqueue(task ImportTask) <-chan Result {
	ch := make(chan Result, 1)
	metrics.QueueDepth.WithLabelValues("hash").Set(float64(h.queue.Len() + 1))
	h.queue.Push(job{task: task, resultCh: ch}, time.Now().UnixNano())
	return ch
}

// Start runs the hasher loop until ctx is cancelled or Stop is called.
func (h *Hasher) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop signals the loop to exit and waits for it to drain.
func (h *Hasher) Stop() {
	close(h.quit)
	<-h.done
}

func (h *Hasher) run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return
		case <-ticker.C:
			j, ok := h.queue.Pop()
			if !ok {
				continue
			}
			metrics.QueueDepth.WithLabelValues("hash").Set(float64(h.queue.Len()))
			h.process(ctx, j)
		}
	}
}

func (h *Hasher) process(ctx context.Context, j job) {
	start := time.Now()
	img, existing, err := h.Import(ctx, j.task)
	metrics.HashLatency.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.HashFailures.Inc()
		klog.Warningf("hasher: importing %s failed: %s", j.task.SourcePath, err)
	case existing:
		metrics.HashDuplicates.Inc()
	default:
		metrics.HashSuccesses.Inc()
	}
	j.resultCh <- Result{Task: j.task, Image: img, Existing: existing, Err: err}
	close(j.resultCh)
}

// Import hashes task's source file and either binds it to an existing
// non-deleted image sharing that hash or inserts a new row. Exported so
// callers that don't need queuing (synchronous CLI import, tests) can drive
// it directly.
func (h *Hasher) Import(ctx context.Context, task ImportTask) (*store.Image, bool, error) {
	hash, width, height, err := Hash(task.SourcePath)
	if err != nil {
		return nil, false, err
	}

	existing, err := h.store.ImageByHash(ctx, hash)
	if err == nil {
		if rmErr := fsutil.Remove(task.SourcePath); rmErr != nil {
			klog.Warningf("hasher: removing duplicate of image %d at %s: %s", existing.ID, task.SourcePath, rmErr)
		}
		return existing, true, nil
	}
	if !errors.Is(err, errs.NotFound) {
		return nil, false, err
	}

	img, err := h.store.InsertImage(ctx, store.Image{
		ResourcePath: task.ResourcePath,
		DisplayName:  task.DisplayName,
		Extension:    task.Extension,
		Width:        width,
		Height:       height,
		FileHash:     hash,
		ImportedFrom: task.ImportedFrom,
		IsPrivate:    task.IsPrivate,
	})
	if err != nil {
		return nil, false, err
	}
	return img, false, nil
}

// Hash computes path's content hash — base-64 encoding of the file's
// SHA-256 digest with '/' replaced by '_' to make it path-safe — and the
// pixel dimensions of the image it decodes to.
func Hash(path string) (hash string, width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, 0, fmt.Errorf("hasher: %w: open %s: %s", errs.InvalidArgument, path, err)
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", 0, 0, fmt.Errorf("hasher: %w: hashing %s: %s", errs.LoadFailed, path, err)
	}
	encoded := base64.StdEncoding.EncodeToString(sum.Sum(nil))
	hash = strings.ReplaceAll(encoded, "/", "_")

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", 0, 0, fmt.Errorf("hasher: %w: rewinding %s: %s", errs.LoadFailed, path, err)
	}
	fs, err := codec.Decode(f)
	if err != nil {
		return "", 0, 0, fmt.Errorf("hasher: %w: decode %s: %s", errs.LoadFailed, path, err)
	}
	b := fs.Frames[0].Image.Bounds()
	return hash, b.Dx(), b.Dy(), nil
}
