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

// Package downloader fetches NetFile targets, retries with backoff, and
// reports a terminal Result down the queue/store boundary.
//
// Retries use an explicit outcome returned from each attempt, driven by
// github.com/cenkalti/backoff/v4 rather than a hand-rolled retry loop.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vbauerster/mpb/v6"
	"github.com/vbauerster/mpb/v6/decor"
	"k8s.io/klog/v2"

	"github.com/dualview/workstation/internal/errs"
	"github.com/dualview/workstation/internal/fsutil"
	"github.com/dualview/workstation/internal/metrics"
	"github.com/dualview/workstation/internal/store"
	"github.com/dualview/workstation/internal/taskqueue"
)

// Retry tuning: base 350ms, doubling, HTTP 429 adds a linear extra delay
// before the exponential wait kicks in.
const (
	baseInterval    = 350 * time.Millisecond
	backoffFactor   = 2.0
	maxAttempts     = 6
	rateLimitStep   = 500 * time.Millisecond
)

// Result is what a completed (successful or exhausted) download reports.
type Result struct {
	File NetFileTask
	Path string
	Err  error
}

// NetFileTask names a single net file download, scoped to its gallery and a
// destination directory the caller resolved from the store's portable path
// prefixes.
type NetFileTask struct {
	GalleryID int64
	File      store.NetFile
	DestDir   string
}

// Downloader is the single downloader worker thread, serialising HTTP work
// through one taskqueue.
type Downloader struct {
	client *http.Client
	queue  *taskqueue.TaskQueue[job]

	progress *mpb.Progress

	quit chan struct{}
	done chan struct{}
}

type job struct {
	task     NetFileTask
	resultCh chan Result
}

// New returns a Downloader using client for requests, or http.DefaultClient
// if nil.
func New(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		client:   client,
		queue:    taskqueue.New[job](),
		progress: mpb.New(mpb.WithWidth(48)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue schedules task and returns a channel that receives exactly one
// Result once the download finishes or exhausts its retries.
func (d *Downloader) Enqueue(task NetFileTask) <-chan Result {
	ch := make(chan Result, 1)
	metrics.QueueDepth.WithLabelValues("download").Set(float64(d.queue.Len() + 1))
	d.queue.Push(job{task: task, resultCh: ch}, time.Now().UnixNano())
	return ch
}

// Start runs the downloader loop until ctx is cancelled or Stop is called.
func (d *Downloader) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop signals the loop to exit and waits for it to drain.
func (d *Downloader) Stop() {
	close(d.quit)
	<-d.done
}

func (d *Downloader) run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.quit:
			return
		case <-ticker.C:
			j, ok := d.queue.Pop()
			if !ok {
				continue
			}
			metrics.QueueDepth.WithLabelValues("download").Set(float64(d.queue.Len()))
			d.process(ctx, j)
		}
	}
}

func (d *Downloader) process(ctx context.Context, j job) {
	start := time.Now()
	path, err := d.fetchWithRetry(ctx, j.task)
	metrics.DownloadLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DownloadFailures.Inc()
		klog.Warningf("downloader: %s failed after retries: %s", j.task.File.FileURL, err)
	} else {
		metrics.DownloadSuccesses.Inc()
	}
	j.resultCh <- Result{File: j.task, Path: path, Err: err}
	close(j.resultCh)
}

// fetchWithRetry drives a bounded exponential backoff. HTTP 429 sleeps an
// additional linear delay (attempt * rateLimitStep) before backoff's own
// exponential wait, approximating the spec's "extra linear delay" without
// reimplementing the retry loop by hand.
func (d *Downloader) fetchWithRetry(ctx context.Context, task NetFileTask) (string, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseInterval
	eb.Multiplier = backoffFactor
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts-1), ctx)

	var attempt int
	var dest string
	var attemptErrs *multierror.Error

	op := func() error {
		attempt++
		path, status, err := d.attempt(ctx, task)
		if err == nil {
			dest = path
			return nil
		}
		attemptErrs = multierror.Append(attemptErrs, fmt.Errorf("attempt %d: %w", attempt, err))
		if status == http.StatusTooManyRequests {
			time.Sleep(time.Duration(attempt) * rateLimitStep)
		}
		if status != 0 && status < 500 && status != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("downloader: %w: %s", errs.LoadFailed, attemptErrs.ErrorOrNil())
	}
	return dest, nil
}

// attempt performs a single HTTP GET and writes the body to a uniquely named
// file under task.DestDir, returning the response status code alongside any
// error so the retry driver can distinguish retryable from permanent
// failures.
func (d *Downloader) attempt(ctx context.Context, task NetFileTask) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.File.FileURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: building request: %s", errs.InvalidArgument, err)
	}
	if task.File.ReferrerURL != "" {
		req.Header.Set("Referer", task.File.ReferrerURL)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(task.DestDir, 0o755); err != nil {
		return "", resp.StatusCode, fmt.Errorf("mkdir %s: %w", task.DestDir, err)
	}

	name := task.File.PreferredFilename
	if name == "" {
		name = uuid.NewString()
	}
	tmp := filepath.Join(task.DestDir, uuid.NewString()+".part")
	final := filepath.Join(task.DestDir, name)

	bar := d.progress.Add(resp.ContentLength,
		mpb.NewBarFiller(" ▮▮▯ "),
		mpb.PrependDecorators(decor.Name(name)),
		mpb.AppendDecorators(decor.CountersKiloByte("%d %d")),
	)
	defer bar.Abort(true)

	f, err := os.Create(tmp)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("create temp file: %w", err)
	}
	proxy := bar.ProxyReader(resp.Body)
	defer proxy.Close()

	if _, err := io.Copy(f, proxy); err != nil {
		f.Close()
		_ = fsutil.Remove(tmp)
		return "", resp.StatusCode, fmt.Errorf("writing body: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = fsutil.Remove(tmp)
		return "", resp.StatusCode, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = fsutil.Remove(tmp)
		return "", resp.StatusCode, fmt.Errorf("renaming into place: %w", err)
	}
	return final, resp.StatusCode, nil
}
