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

package main

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/downloader"
	"github.com/dualview/workstation/internal/hasher"
	"github.com/dualview/workstation/internal/store"
	"github.com/dualview/workstation/internal/workers"
)

// netSync periodically scans for net galleries awaiting download, enqueues
// their files on the downloader, and hands each completed download to the
// hasher. A gallery's completion depends on an unknown number of per-file
// downloader channels resolving at unrelated times, so the handoff is
// driven by a workers.ConditionalPoller rather than a goroutine per file:
// exactly the "deferred work waiting on async completion" case the poller
// exists for.
type netSync struct {
	store *store.Store
	dl    *downloader.Downloader
	hsh   *hasher.Hasher
	paths rootPaths
	poll  *workers.ConditionalPoller

	interval time.Duration
}

func newNetSync(st *store.Store, dl *downloader.Downloader, hsh *hasher.Hasher, paths rootPaths, poll *workers.ConditionalPoller) *netSync {
	return &netSync{store: st, dl: dl, hsh: hsh, paths: paths, poll: poll, interval: 30 * time.Second}
}

// Name and Run implement workers.Worker.
func (n *netSync) Name() string { return "net-sync" }

func (n *netSync) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.scan(ctx)
		}
	}
}

func (n *netSync) scan(ctx context.Context) {
	galleries, err := n.store.PendingNetGalleries(ctx)
	if err != nil {
		klog.Warningf("netsync: listing pending galleries: %s", err)
		return
	}
	for _, g := range galleries {
		n.sync(ctx, g)
	}
}

func (n *netSync) sync(ctx context.Context, g *store.NetGallery) {
	files, err := n.store.NetFilesForGallery(ctx, g.ID)
	if err != nil {
		klog.Warningf("netsync: listing files for gallery %d: %s", g.ID, err)
		return
	}
	if len(files) == 0 {
		if err := n.store.SetNetGalleryDownloaded(ctx, g.ID); err != nil {
			klog.Warningf("netsync: marking empty gallery %d downloaded: %s", g.ID, err)
		}
		return
	}

	destDir := n.paths.ToFinal(g.TargetPath)
	pending := int32(len(files))
	for _, f := range files {
		task := downloader.NetFileTask{GalleryID: g.ID, File: *f, DestDir: destDir}
		n.watch(ctx, g.ID, f, n.dl.Enqueue(task), &pending)
	}
}

// watch registers a predicate/action pair with the poller: the predicate
// performs a non-blocking receive on resultCh and latches the value once it
// arrives, so the action (which runs exactly once) always sees the result
// that made the predicate true.
func (n *netSync) watch(ctx context.Context, galleryID int64, file *store.NetFile, resultCh <-chan downloader.Result, pending *int32) {
	var result downloader.Result
	n.poll.Add(
		func() bool {
			select {
			case r, ok := <-resultCh:
				if ok {
					result = r
				}
				return true
			default:
				return false
			}
		},
		func() { n.handleDownload(ctx, galleryID, file, result, pending) },
	)
}

func (n *netSync) handleDownload(ctx context.Context, galleryID int64, file *store.NetFile, result downloader.Result, pending *int32) {
	defer n.maybeFinish(ctx, galleryID, pending)

	if result.Err != nil {
		klog.Warningf("netsync: download of %s failed: %s", file.FileURL, result.Err)
		return
	}

	importCh := n.hsh.Enqueue(hasher.ImportTask{
		SourcePath:   result.Path,
		ResourcePath: n.paths.ToDatabase(result.Path),
		DisplayName:  file.PreferredFilename,
		Extension:    strings.ToLower(filepath.Ext(result.Path)),
		ImportedFrom: file.FileURL,
	})
	go n.awaitImport(result.Path, importCh)
}

func (n *netSync) awaitImport(sourcePath string, importCh <-chan hasher.Result) {
	imp := <-importCh
	switch {
	case imp.Err != nil:
		klog.Warningf("netsync: importing %s failed: %s", sourcePath, imp.Err)
	case imp.Existing:
		klog.V(2).Infof("netsync: %s duplicates image %d", sourcePath, imp.Image.ID)
	default:
		klog.V(2).Infof("netsync: %s imported as image %d", sourcePath, imp.Image.ID)
	}
}

func (n *netSync) maybeFinish(ctx context.Context, galleryID int64, pending *int32) {
	if atomic.AddInt32(pending, -1) > 0 {
		return
	}
	if err := n.store.SetNetGalleryDownloaded(ctx, galleryID); err != nil {
		klog.Warningf("netsync: marking gallery %d downloaded: %s", galleryID, err)
	}
}
